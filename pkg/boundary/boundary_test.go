package boundary_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/aasc/pkg/boundary"
	"github.com/openclaw/aasc/pkg/contracts"
)

func TestCheckAccessOutsideReadableIsDenied(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	b := boundary.New(contracts.FilesystemBoundaryConfig{
		Readable: []string{home},
	})

	check := b.CheckAccess("/etc/passwd", contracts.ModeRead)
	assert.False(t, check.Allowed)
}

func TestCheckAccessDeniedDominatesWritable(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	sshDir := filepath.Join(home, ".ssh")

	b := boundary.New(contracts.FilesystemBoundaryConfig{
		Writable: []string{home},
		Denied:   []string{sshDir},
	})

	check := b.CheckAccess(filepath.Join(sshDir, "id_rsa"), contracts.ModeWrite)
	assert.False(t, check.Allowed)
}

func TestCheckAccessComponentContainmentNotStringPrefix(t *testing.T) {
	b := boundary.New(contracts.FilesystemBoundaryConfig{
		Denied: []string{"/home/alic"},
	})

	check := b.CheckAccess("/home/alice/secrets", contracts.ModeRead)
	assert.True(t, check.Allowed, "a denied prefix must not match a sibling directory by string prefix")
}

func TestCheckAccessWritableCoversItsOwnSubtree(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	writable := filepath.Join(home, ".openclaw")

	b := boundary.New(contracts.FilesystemBoundaryConfig{
		Writable: []string{writable},
	})

	inside := b.CheckAccess(filepath.Join(writable, "autonomy-rules.json"), contracts.ModeWrite)
	assert.True(t, inside.Allowed)

	outside := b.CheckAccess(filepath.Join(home, "file.txt"), contracts.ModeWrite)
	assert.False(t, outside.Allowed)
}

func TestExtractToolPathPriorityOrder(t *testing.T) {
	path, ok := boundary.ExtractToolPath(map[string]any{
		"filePath": "second",
		"path":     "first",
	})
	assert.True(t, ok)
	assert.Equal(t, "first", path)
}

func TestExtractToolPathAbsentReturnsFalse(t *testing.T) {
	_, ok := boundary.ExtractToolPath(map[string]any{"unrelated": "value"})
	assert.False(t, ok)
}

func TestToolFilesystemMode(t *testing.T) {
	writeMode := boundary.ToolFilesystemMode("write")
	require.NotNil(t, writeMode)
	assert.Equal(t, contracts.ModeWrite, *writeMode)

	readMode := boundary.ToolFilesystemMode("grep")
	require.NotNil(t, readMode)
	assert.Equal(t, contracts.ModeRead, *readMode)

	assert.Nil(t, boundary.ToolFilesystemMode("message"))
}
