package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/aasc/pkg/config"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "low", cfg.Autonomy.Level)
	assert.InDelta(t, 0.7, cfg.Autonomy.ConfidenceThreshold, 0.0001)
	assert.EqualValues(t, 120000, cfg.Autonomy.ApprovalTimeoutMs)
	assert.Equal(t, 50, cfg.Autonomy.Progression.MinApprovals)
	assert.Equal(t, []string{"~"}, cfg.Security.Filesystem.Readable)
}

func TestLoadOverlaysYamlOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aasc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("autonomy:\n  level: high\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "high", cfg.Autonomy.Level)
	assert.InDelta(t, 0.7, cfg.Autonomy.ConfidenceThreshold, 0.0001, "unrelated defaults survive a partial overlay")
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "low", cfg.Autonomy.Level)
}

func TestLoadEnvOverridesLevel(t *testing.T) {
	t.Setenv("AASC_AUTONOMY_LEVEL", "medium")
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "medium", cfg.Autonomy.Level)
}

func TestStateDirUsesOpenclawName(t *testing.T) {
	assert.Equal(t, config.DefaultStateDirName, ".openclaw")
	assert.Contains(t, config.StateDir(), ".openclaw")
}

func TestDeniedDefaultsCoverStandardCredentialDirs(t *testing.T) {
	cfg := config.Default()
	home, _ := os.UserHomeDir()
	assert.Contains(t, cfg.Security.Filesystem.Denied, filepath.Join(home, ".ssh")+string(filepath.Separator))
}
