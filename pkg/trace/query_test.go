package trace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/aasc/pkg/contracts"
	"github.com/openclaw/aasc/pkg/trace"
)

func seedTraces(t *testing.T, dir string) {
	t.Helper()
	w := trace.NewWriter(dir, nil)
	defer w.Close()

	parent := "parent-1"
	w.Write("s1", "a1", contracts.ReasoningTrace{
		ID: "t1", Timestamp: "2026-01-01T00:00:00Z",
		Decision: contracts.TraceDecision{Action: "bash", Classification: "ephemeral_compute"},
	})
	w.Write("s1", "a1", contracts.ReasoningTrace{
		ID: "t2", Timestamp: "2026-01-02T00:00:00Z",
		Input:    contracts.TraceInput{SubtaskOf: &parent},
		Decision: contracts.TraceDecision{Action: "read", Classification: "cached_pattern"},
	})
	w.Write("s1", "a1", contracts.ReasoningTrace{
		ID: "t3", Timestamp: "2026-01-03T00:00:00Z",
		Input:    contracts.TraceInput{SubtaskOf: &parent},
		Decision: contracts.TraceDecision{Action: "write", Classification: "ephemeral_compute"},
	})
	w.Flush()
}

func TestQueryTracesFiltersByClassification(t *testing.T) {
	dir := t.TempDir()
	seedTraces(t, dir)

	results := trace.QueryTraces(trace.QueryParams{BaseDir: dir, Classification: "cached_pattern"})
	require.Len(t, results, 1)
	assert.Equal(t, "t2", results[0].ID)
}

func TestQueryTracesPaginates(t *testing.T) {
	dir := t.TempDir()
	seedTraces(t, dir)

	page := trace.QueryTraces(trace.QueryParams{BaseDir: dir, Limit: 1, Offset: 1})
	require.Len(t, page, 1)
}

func TestGetSubtasksReturnsAscendingOrder(t *testing.T) {
	dir := t.TempDir()
	seedTraces(t, dir)

	subtasks := trace.GetSubtasks(dir, "parent-1")
	require.Len(t, subtasks, 2)
	assert.Equal(t, "t2", subtasks[0].ID)
	assert.Equal(t, "t3", subtasks[1].ID)
}

func TestGetSubtasksUsesIndexWhenProvided(t *testing.T) {
	dir := t.TempDir()
	idx := trace.OpenIndex(dir, nil)
	require.NotNil(t, idx)
	defer idx.Close()

	w := trace.NewWriter(dir, nil)
	w.SetIndex(idx)
	defer w.Close()

	parent := "parent-1"
	w.Write("s1", "a1", contracts.ReasoningTrace{
		ID: "t1", Timestamp: "2026-01-01T00:00:00Z",
		Input:    contracts.TraceInput{SubtaskOf: &parent},
		Decision: contracts.TraceDecision{Action: "read"},
	})
	w.Write("s1", "a1", contracts.ReasoningTrace{
		ID: "t2", Timestamp: "2026-01-02T00:00:00Z",
		Decision: contracts.TraceDecision{Action: "bash"},
	})
	w.Flush()

	subtasks := trace.GetSubtasks(dir, "parent-1", idx)
	require.Len(t, subtasks, 1)
	assert.Equal(t, "t1", subtasks[0].ID)
}

func TestGetTraceFindsByID(t *testing.T) {
	dir := t.TempDir()
	seedTraces(t, dir)

	tr, ok := trace.GetTrace(dir, "t3")
	require.True(t, ok)
	assert.Equal(t, "write", tr.Decision.Action)

	_, ok = trace.GetTrace(dir, "does-not-exist")
	assert.False(t, ok)
}
