package trace_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/aasc/pkg/contracts"
	"github.com/openclaw/aasc/pkg/trace"
)

func TestNewTracerReturnsNilWhenDisabled(t *testing.T) {
	tracer := trace.NewTracer(trace.TracerConfig{Enabled: false})
	assert.Nil(t, tracer)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	tracer := trace.NewTracer(trace.TracerConfig{Enabled: true, BaseDir: dir})
	require.NotNil(t, tracer)
	defer tracer.Close()

	ctx := tracer.StartDecision(trace.StartDecisionParams{SessionID: "s1", AgentID: "a1", AutonomyLevel: contracts.LevelLow})
	ctx.Finalize(trace.FinalizeParams{Success: true})
	ctx.Finalize(trace.FinalizeParams{Success: false}) // no-op
	tracer.Flush()

	data, err := os.ReadFile(filepath.Join(dir, "a1", "s1.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 1)

	var tr contracts.ReasoningTrace
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &tr))
	assert.True(t, tr.Outcome.Success)
}

func TestAssembleDerivesActionFromFirstGateRecord(t *testing.T) {
	dir := t.TempDir()
	tracer := trace.NewTracer(trace.TracerConfig{Enabled: true, BaseDir: dir})
	require.NotNil(t, tracer)
	defer tracer.Close()

	ctx := tracer.StartDecision(trace.StartDecisionParams{SessionID: "s2", AgentID: "a2", AutonomyLevel: contracts.LevelMedium})
	confidence := 0.9
	ctx.RecordGateDecision(contracts.GateRecord{
		ToolName:       "bash",
		Evaluation:     contracts.GateEvaluation{Decision: contracts.DecisionNeedsApproval, Confidence: &confidence},
		Classification: "ephemeral_compute",
	})
	ctx.Finalize(trace.FinalizeParams{Success: true})
	tracer.Flush()

	data, err := os.ReadFile(filepath.Join(dir, "a2", "s2.jsonl"))
	require.NoError(t, err)
	var tr contracts.ReasoningTrace
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &tr))

	assert.Equal(t, "bash", tr.Decision.Action)
	assert.Equal(t, "ephemeral_compute", tr.Decision.Classification)
	assert.True(t, tr.Decision.ApprovalRequired)
	assert.InDelta(t, 0.9, tr.Decision.Confidence, 0.0001)
}

func TestFinalizeStampsApprovalOutcomeOntoFirstGateRecord(t *testing.T) {
	dir := t.TempDir()
	tracer := trace.NewTracer(trace.TracerConfig{Enabled: true, BaseDir: dir})
	require.NotNil(t, tracer)
	defer tracer.Close()

	ctx := tracer.StartDecision(trace.StartDecisionParams{SessionID: "s4", AgentID: "a4", AutonomyLevel: contracts.LevelLow})
	ctx.RecordGateDecision(contracts.GateRecord{
		ToolName:   "exec",
		Evaluation: contracts.GateEvaluation{Decision: contracts.DecisionNeedsApproval},
	})
	ctx.SetApprovalOutcome("approved")
	ctx.Finalize(trace.FinalizeParams{Success: true})
	tracer.Flush()

	data, err := os.ReadFile(filepath.Join(dir, "a4", "s4.jsonl"))
	require.NoError(t, err)
	var tr contracts.ReasoningTrace
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &tr))

	require.NotNil(t, tr.Decision.ApprovalOutcome)
	assert.Equal(t, "approved", *tr.Decision.ApprovalOutcome)
}

func TestNewTracerOpensAnIndex(t *testing.T) {
	dir := t.TempDir()
	tracer := trace.NewTracer(trace.TracerConfig{Enabled: true, BaseDir: dir})
	require.NotNil(t, tracer)
	defer tracer.Close()

	assert.NotNil(t, tracer.Index())

	ctx := tracer.StartDecision(trace.StartDecisionParams{SessionID: "s5", AgentID: "a5", AutonomyLevel: contracts.LevelLow})
	ctx.Finalize(trace.FinalizeParams{Success: true})
	tracer.Flush()

	_, err := os.Stat(filepath.Join(dir, "index.sqlite"))
	assert.NoError(t, err)
}

func TestAssembleTruncatesResultToMaxLength(t *testing.T) {
	dir := t.TempDir()
	tracer := trace.NewTracer(trace.TracerConfig{Enabled: true, BaseDir: dir, MaxResultLength: 10})
	require.NotNil(t, tracer)
	defer tracer.Close()

	ctx := tracer.StartDecision(trace.StartDecisionParams{SessionID: "s3", AgentID: "a3", AutonomyLevel: contracts.LevelLow})
	long := "0123456789abcdefgh"
	ctx.Finalize(trace.FinalizeParams{Success: true, Result: &long})
	tracer.Flush()

	data, err := os.ReadFile(filepath.Join(dir, "a3", "s3.jsonl"))
	require.NoError(t, err)
	var tr contracts.ReasoningTrace
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &tr))

	require.NotNil(t, tr.Outcome.Result)
	assert.True(t, strings.HasSuffix(*tr.Outcome.Result, "…"))
	assert.LessOrEqual(t, len([]rune(*tr.Outcome.Result)), 11)
}
