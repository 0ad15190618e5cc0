package trace_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/aasc/pkg/trace"
)

func TestWriteThenFlushProducesNLinesInOrder(t *testing.T) {
	dir := t.TempDir()
	w := trace.NewWriter(dir, nil)
	defer w.Close()

	for i := 0; i < 5; i++ {
		w.Write("session-1", "agent-1", map[string]int{"seq": i})
	}
	w.Flush()

	data, err := os.ReadFile(filepath.Join(dir, "agent-1", "session-1.jsonl"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 5)
	for i, line := range lines {
		assert.Contains(t, line, `"seq":`+string(rune('0'+i)))
	}
}

func TestWriteWithEmptyAgentIDUsesDefaultDirectory(t *testing.T) {
	dir := t.TempDir()
	w := trace.NewWriter(dir, nil)
	defer w.Close()

	w.Write("session-1", "", map[string]string{"k": "v"})
	w.Flush()

	_, err := os.Stat(filepath.Join(dir, "default", "session-1.jsonl"))
	assert.NoError(t, err)
}

func TestFlushIsABarrierEvenWithNoPriorWrites(t *testing.T) {
	dir := t.TempDir()
	w := trace.NewWriter(dir, nil)
	defer w.Close()

	done := make(chan struct{})
	go func() {
		w.Flush()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Flush did not return")
	}
}
