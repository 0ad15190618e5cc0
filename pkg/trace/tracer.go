package trace

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/aasc/pkg/contracts"
)

// TracerConfig gates whether tracing is active and controls
// finalisation behavior (spec §4.13).
type TracerConfig struct {
	Enabled          bool
	BaseDir          string
	IncludeReasoning *bool
	MaxResultLength  int
}

func (c TracerConfig) includeReasoning() bool {
	return c.IncludeReasoning == nil || *c.IncludeReasoning
}

func (c TracerConfig) maxResultLength() int {
	if c.MaxResultLength > 0 {
		return c.MaxResultLength
	}
	return 2000
}

// Tracer produces TraceContexts and owns the underlying Writer and its
// SQLite side-index.
type Tracer struct {
	cfg    TracerConfig
	writer *Writer
	index  *Index
	guard  *SchemaGuard
	now    func() time.Time
}

// NewTracer returns a tracer only when cfg.Enabled is true; callers
// use the nil-conditional pattern (`if tracer != nil { ... }`) rather
// than a no-op tracer, per spec §4.13.
//
// It opens the SQLite side-index alongside the JSONL writer (a failed
// open falls back to a nil index, and the writer degrades to a pure
// JSONL append, per index.go's documented best-effort contract) and
// compiles the schema guard used to validate a trace immediately
// before it is handed to the writer.
func NewTracer(cfg TracerConfig) *Tracer {
	if !cfg.Enabled {
		return nil
	}
	idx := OpenIndex(cfg.BaseDir, nil)
	writer := NewWriter(cfg.BaseDir, nil)
	writer.SetIndex(idx)
	return &Tracer{cfg: cfg, writer: writer, index: idx, guard: NewSchemaGuard(nil), now: time.Now}
}

// Index exposes the side-index so query callers (e.g. GetSubtasks) can
// use it as a fast pre-filter. Nil if the index failed to open.
func (t *Tracer) Index() *Index {
	return t.index
}

// Flush awaits the writer's queue tail.
func (t *Tracer) Flush() {
	t.writer.Flush()
}

// Close stops the underlying writer's drain goroutine and releases the
// side-index handle.
func (t *Tracer) Close() {
	t.writer.Close()
	t.index.Close()
}

// StartDecisionParams seeds a new TraceContext.
type StartDecisionParams struct {
	SessionID      string
	AgentID        string
	UserMessage    *string
	SystemEvent    *string
	SubtaskOf      *string
	AvailableTools []string
	ActiveUserModel string
	CharacterState  string
	AutonomyLevel   contracts.AutonomyLevel
	RelevantMemories []string
}

// StartDecision begins accumulating a new decision's records.
func (t *Tracer) StartDecision(params StartDecisionParams) *Context {
	return &Context{
		traceID: uuid.NewString(),
		tracer:  t,
		params:  params,
	}
}

// Context accumulates gate/tool/LLM records for a single decision
// until Finalize hands the assembled trace to the writer.
type Context struct {
	mu         sync.Mutex
	traceID    string
	tracer     *Tracer
	params     StartDecisionParams
	gates      []contracts.GateRecord
	outcomes   []contracts.ToolOutcomeRecord
	llm        []contracts.LlmResponseRecord
	finalized  bool
}

// TraceID returns the id assigned at construction.
func (c *Context) TraceID() string {
	return c.traceID
}

// RecordGateDecision appends a gate evaluation. No-op after Finalize.
func (c *Context) RecordGateDecision(r contracts.GateRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalized {
		return
	}
	c.gates = append(c.gates, r)
}

// SetApprovalOutcome stamps the human decision onto the first gate
// record, matching spec §4.13's rule that a trace's approvalOutcome
// comes from the first gate record. No-op after Finalize or if no gate
// decision has been recorded yet.
func (c *Context) SetApprovalOutcome(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalized || len(c.gates) == 0 {
		return
	}
	c.gates[0].ApprovalOutcome = &outcome
}

// RecordToolOutcome appends a tool execution outcome. No-op after Finalize.
func (c *Context) RecordToolOutcome(r contracts.ToolOutcomeRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalized {
		return
	}
	c.outcomes = append(c.outcomes, r)
}

// RecordLlmResponse appends an LLM usage record. No-op after Finalize.
func (c *Context) RecordLlmResponse(r contracts.LlmResponseRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalized {
		return
	}
	c.llm = append(c.llm, r)
}

// FinalizeParams is the outcome summary passed to Finalize.
type FinalizeParams struct {
	Success bool
	Result  *string
	Error   *string
}

// Finalize assembles and writes the ReasoningTrace. Idempotent: only
// the first call has any effect.
func (c *Context) Finalize(params FinalizeParams) {
	c.mu.Lock()
	if c.finalized {
		c.mu.Unlock()
		return
	}
	c.finalized = true
	gates := c.gates
	outcomes := c.outcomes
	llmRecords := c.llm
	c.mu.Unlock()

	tr := c.assemble(gates, outcomes, llmRecords, params)
	c.tracer.guard.Validate(tr)
	c.tracer.writer.Write(c.params.SessionID, c.params.AgentID, tr)
}

func (c *Context) assemble(gates []contracts.GateRecord, outcomes []contracts.ToolOutcomeRecord, llmRecords []contracts.LlmResponseRecord, params FinalizeParams) contracts.ReasoningTrace {
	action := "response"
	if len(gates) > 0 {
		action = gates[0].ToolName
	} else if len(llmRecords) > 0 && llmRecords[0].StopReason != "" {
		action = llmRecords[0].StopReason
	}

	reasoning := ""
	if c.tracer.cfg.includeReasoning() && len(llmRecords) > 0 {
		reasoning = llmRecords[0].Reasoning
	}

	confidence := 1.0
	if len(gates) > 0 && gates[0].Evaluation.Confidence != nil {
		confidence = *gates[0].Evaluation.Confidence
	}

	classification := "unknown"
	if len(gates) > 0 && gates[0].Classification != "" {
		classification = gates[0].Classification
	}

	approvalRequired := false
	var approvalOutcome *string
	for _, g := range gates {
		if g.Evaluation.Decision == contracts.DecisionNeedsApproval {
			approvalRequired = true
		}
	}
	if len(gates) > 0 {
		approvalOutcome = gates[0].ApprovalOutcome
	}

	var duration int64
	success := params.Success
	var result *string
	var errStr *string
	if len(outcomes) > 0 {
		last := outcomes[len(outcomes)-1]
		duration = last.DurationMs
		if last.Result != nil {
			truncated := truncateResult(*last.Result, c.tracer.cfg.maxResultLength())
			result = &truncated
		}
		errStr = last.Error
	}
	if params.Result != nil {
		truncated := truncateResult(*params.Result, c.tracer.cfg.maxResultLength())
		result = &truncated
	}
	if params.Error != nil {
		errStr = params.Error
	}

	tokenCount := 0
	estimatedCost := 0.0
	for _, l := range llmRecords {
		tokenCount += l.TokenCount
		estimatedCost += l.EstimatedCost
	}

	return contracts.ReasoningTrace{
		ID:        c.traceID,
		Timestamp: c.tracer.now().UTC().Format(time.RFC3339Nano),
		Input: contracts.TraceInput{
			UserMessage: c.params.UserMessage,
			SystemEvent: c.params.SystemEvent,
			SubtaskOf:   c.params.SubtaskOf,
		},
		Context: contracts.TraceContextSnapshot{
			AvailableTools:   nonNilStrings(c.params.AvailableTools),
			ActiveUserModel:  c.params.ActiveUserModel,
			CharacterState:   c.params.CharacterState,
			AutonomyLevel:    c.params.AutonomyLevel,
			RelevantMemories: nonNilStrings(c.params.RelevantMemories),
		},
		Decision: contracts.TraceDecision{
			Action:           action,
			Reasoning:        reasoning,
			Confidence:       confidence,
			Classification:   classification,
			ApprovalRequired: approvalRequired,
			ApprovalOutcome:  approvalOutcome,
		},
		Outcome: contracts.TraceOutcome{
			Success:       success,
			Result:        result,
			Error:         errStr,
			DurationMs:    duration,
			TokenCount:    tokenCount,
			EstimatedCost: estimatedCost,
		},
	}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func truncateResult(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimRight(string(runes[:max]), " \t\n") + "…"
}
