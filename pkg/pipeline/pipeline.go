package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openclaw/aasc/pkg/approval"
	"github.com/openclaw/aasc/pkg/autoapprove"
	"github.com/openclaw/aasc/pkg/boundary"
	"github.com/openclaw/aasc/pkg/classifier"
	"github.com/openclaw/aasc/pkg/contracts"
	"github.com/openclaw/aasc/pkg/escalation"
	"github.com/openclaw/aasc/pkg/gate"
	"github.com/openclaw/aasc/pkg/observability"
	"github.com/openclaw/aasc/pkg/progression"
	"github.com/openclaw/aasc/pkg/ratelimit"
	"github.com/openclaw/aasc/pkg/scanner"
	"github.com/openclaw/aasc/pkg/trace"
)

// ToolExecutor performs the actual tool call. Its error is never turned
// into a PipelineError: it is captured as a {status:"error"} result per
// spec §7 so the caller's decision trail still gets a finalised trace.
type ToolExecutor func(ctx context.Context, toolName string, params map[string]any) (string, error)

// BeforeHook may block a call outright. A non-nil error aborts the
// pipeline with CodeBeforeHookBlocked before any state changes.
type BeforeHook func(ctx context.Context, toolName string, params map[string]any) error

// AfterHook observes a completed call. Its error is logged at Debug and
// never surfaced to the caller, per spec §7's best-effort recovery policy.
type AfterHook func(ctx context.Context, toolName string, params map[string]any, result string)

// Config bundles the tunables spec §6 lists under autonomy.* and
// diagnostics.reasoningTrace.*, resolved down to primitives so Pipeline
// itself stays free of any YAML-shaped type.
type Config struct {
	Level               contracts.AutonomyLevel
	ConfidenceThreshold *float64
	ApprovalTimeoutMs   int64
	Progression         progression.Config

	OutputScanning scanner.OutputScannerConfig
	DataFlow       scanner.DataFlowConfig
	ExtraSensitivePatterns []string
}

// Deps bundles every collaborator Execute wires together. ApprovalMgr,
// Escalation, Tracer, and Metrics may all be nil: the pipeline fails
// open on a missing Approval Manager (spec §9's Open Question,
// deliberately, logged loudly) and simply skips the other three.
type Deps struct {
	Classifier   *classifier.Classifier
	Gate         func(level contracts.AutonomyLevel, tier contracts.ActionTier, confidence, threshold *float64) contracts.GateEvaluation
	Boundary     *boundary.Boundary
	AutoApprove  *autoapprove.Store
	ApprovalMgr  *approval.Manager
	Escalation   *escalation.Evaluator
	Progression  *progression.Tracker
	Tracer       *trace.Tracer
	Metrics      *observability.Metrics
	RateLimiter  *ratelimit.Limiter
	Log          *slog.Logger
}

// Pipeline is the constructed orchestrator for a single process.
type Pipeline struct {
	cfg   Config
	deps  Deps
	log   *slog.Logger
	clock func() time.Time
}

// New constructs a Pipeline. deps.Gate defaults to gate.Evaluate.
func New(cfg Config, deps Deps) *Pipeline {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Gate == nil {
		deps.Gate = gate.Evaluate
	}
	if deps.RateLimiter != nil && cfg.DataFlow.Limiter == nil {
		cfg.DataFlow.Limiter = deps.RateLimiter
	}
	return &Pipeline{cfg: cfg, deps: deps, log: deps.Log, clock: time.Now}
}

// Request is a single tool call submitted to the pipeline.
type Request struct {
	ToolName    string
	Params      map[string]any
	AgentID     *string
	SessionID   string
	SessionKey  *string
	Confidence  *float64
	Hint        *classifier.ToolAutonomyHint
	UserMessage *string
	SystemEvent *string
	SubtaskOf   *string

	AvailableTools  []string
	ActiveUserModel string
	CharacterState  string
	RelevantMemories []string

	Before   BeforeHook
	After    AfterHook
	Executor ToolExecutor
}

// Result is what a successful (or tool-level-failed) Execute call returns.
type Result struct {
	Status         string // "ok" or "error"
	Output         string
	ToolError      string
	GateEvaluation contracts.GateEvaluation
	Tier           contracts.ActionTier
	TraceID        string
	AutoApproved   bool
	ApprovalRecord *contracts.AutonomyApprovalRecord
}

func agentIDOf(agentID *string) string {
	if agentID == nil {
		return autoapprove.DefaultAgentID
	}
	return *agentID
}

// Execute runs the full nine-step pipeline described in spec §4.16:
// before-hook, filesystem boundary, classification, auto-approve rule
// lookup, gate evaluation (with escalation-trigger overlay), the
// approval suspension point, tool execution, output sanitisation, and
// trace/progression bookkeeping, in that order.
func (p *Pipeline) Execute(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	agent := agentIDOf(req.AgentID)

	var tctx *trace.Context
	if p.deps.Tracer != nil {
		tctx = p.deps.Tracer.StartDecision(trace.StartDecisionParams{
			SessionID:        req.SessionID,
			AgentID:          agent,
			UserMessage:      req.UserMessage,
			SystemEvent:      req.SystemEvent,
			SubtaskOf:        req.SubtaskOf,
			AvailableTools:   req.AvailableTools,
			ActiveUserModel:  req.ActiveUserModel,
			CharacterState:   req.CharacterState,
			AutonomyLevel:    p.cfg.Level,
			RelevantMemories: req.RelevantMemories,
		})
	}

	// Step 1: before-hook.
	if req.Before != nil {
		if err := req.Before(ctx, req.ToolName, req.Params); err != nil {
			return Result{}, newError(CodeBeforeHookBlocked, err.Error(), err)
		}
	}

	// Step 2: filesystem boundary.
	if p.deps.Boundary != nil {
		if check := p.deps.Boundary.ValidateToolFilesystemAccess(req.ToolName, req.Params); check != nil && !check.Allowed {
			return Result{}, newError(CodeFilesystemBoundary, check.Reason, nil)
		}
	}

	// Step 3: classification.
	tier := contracts.ActionTier(classifier.FallbackTier)
	if p.deps.Classifier != nil {
		tier = p.deps.Classifier.ClassifyAction(req.ToolName, req.Hint)
	}

	// Step 4: persisted auto-approve rule lookup.
	autoApproved := false
	if p.deps.AutoApprove != nil {
		if rule := p.deps.AutoApprove.Check(req.ToolName, tier, req.AgentID); rule != nil {
			autoApproved = true
		}
	}

	eval := contracts.GateEvaluation{
		Decision: contracts.DecisionAutoApprove,
		Reason:   "auto-approved by a persisted rule",
		Level:    p.cfg.Level,
		Tier:     tier,
	}

	if !autoApproved {
		// Step 5: gate evaluation.
		eval = p.deps.Gate(p.cfg.Level, tier, req.Confidence, p.cfg.ConfidenceThreshold)

		// Escalation triggers only ever push auto_approve to
		// needs_approval; they never loosen a denial or an existing
		// approval requirement.
		if p.deps.Escalation != nil && eval.Decision == contracts.DecisionAutoApprove {
			decCtx := escalation.DecisionContext{
				Tier:     string(tier),
				Level:    string(p.cfg.Level),
				ToolName: req.ToolName,
				ParamsSummary: contracts.SummarizeParams(fmt.Sprintf("%v", req.Params)),
			}
			if req.Confidence != nil {
				decCtx.HasConfidence = true
				decCtx.Confidence = *req.Confidence
			}
			if triggered, name := p.deps.Escalation.AnyTriggered(decCtx); triggered {
				eval.Decision = contracts.DecisionNeedsApproval
				eval.Reason = fmt.Sprintf("escalation trigger %q forced approval", name)
			}
		}
	}

	p.recordMetricsDecision(ctx, tier, eval.Decision)

	if tctx != nil {
		classification := string(tier)
		tctx.RecordGateDecision(contracts.GateRecord{
			ToolName:       req.ToolName,
			Evaluation:     eval,
			Classification: classification,
		})
	}

	if eval.Decision == contracts.DecisionDenied {
		p.finalizeError(tctx, "denied by the autonomy gate")
		return Result{GateEvaluation: eval, Tier: tier, TraceID: traceIDOf(tctx)}, newError(CodeGateDenied, eval.Reason, nil)
	}

	var approvalRecord *contracts.AutonomyApprovalRecord

	// Step 6/7: approval suspension point.
	if eval.Decision == contracts.DecisionNeedsApproval {
		outcome, record, err := p.awaitApproval(ctx, req, eval, agent, traceIDOf(tctx))
		if err != nil {
			p.recordProgression(false, agent)
			if tctx != nil {
				tctx.SetApprovalOutcome("rejected")
			}
			p.finalizeError(tctx, err.Error())
			return Result{GateEvaluation: eval, Tier: tier, TraceID: traceIDOf(tctx), ApprovalRecord: record}, err
		}
		approvalRecord = record

		p.recordProgression(true, agent)
		if tctx != nil {
			tctx.SetApprovalOutcome("approved")
		}

		if outcome != nil && *outcome == contracts.DecisionAllowAlways && p.deps.AutoApprove != nil {
			p.deps.AutoApprove.Add(req.ToolName, tier, req.AgentID)
		}
	}

	// Step 8: tool execution.
	if req.Executor == nil {
		return Result{}, newError(CodeToolExecutionError, "no tool executor configured", nil)
	}

	start := p.clock()
	output, execErr := req.Executor(ctx, req.ToolName, req.Params)
	duration := p.clock().Sub(start).Milliseconds()

	result := Result{Status: "ok", Output: output, GateEvaluation: eval, Tier: tier, AutoApproved: autoApproved, ApprovalRecord: approvalRecord}

	if execErr != nil {
		result.Status = "error"
		result.ToolError = execErr.Error()
	}

	// Step 9: output sanitisation, only over successful output.
	if execErr == nil {
		sanitized := scanner.Sanitize(output, req.ToolName, p.cfg.ExtraSensitivePatterns)
		result.Output = sanitized.Sanitized
		if sanitized.Modified {
			for range sanitized.InjectionPatterns {
				p.recordMetricsScannerHit(ctx, "injection_pattern")
			}
			if sanitized.HasSensitiveData {
				p.recordMetricsScannerHit(ctx, "sensitive_data")
			}
		}
	}

	if tctx != nil {
		var resPtr, errPtr *string
		if result.Output != "" {
			out := result.Output
			resPtr = &out
		}
		if result.ToolError != "" {
			e := result.ToolError
			errPtr = &e
		}
		tctx.RecordToolOutcome(contracts.ToolOutcomeRecord{
			Success:    execErr == nil,
			Result:     resPtr,
			Error:      errPtr,
			DurationMs: duration,
		})
		tctx.Finalize(trace.FinalizeParams{Success: execErr == nil, Result: resPtr, Error: errPtr})
	}

	// Step 9b: after-hook, best effort.
	if req.After != nil {
		req.After(ctx, req.ToolName, req.Params, result.Output)
	}

	result.TraceID = traceIDOf(tctx)
	return result, nil
}

// awaitApproval creates and registers an approval record, then blocks
// until it resolves, times out, or ctx is cancelled. A nil
// ApprovalMgr fails open: per spec §9 this is deliberate but must
// surface loudly, so it is logged at Warn rather than silently allowed.
func (p *Pipeline) awaitApproval(ctx context.Context, req Request, eval contracts.GateEvaluation, agent string, traceID string) (*contracts.ApprovalDecision, *contracts.AutonomyApprovalRecord, error) {
	if p.deps.ApprovalMgr == nil {
		p.log.Warn("pipeline: no approval manager configured, failing open on a needs_approval decision",
			"tool", req.ToolName, "tier", eval.Tier, "level", eval.Level)
		once := contracts.DecisionAllowOnce
		return &once, nil, nil
	}

	request := contracts.AutonomyApprovalRequest{
		ToolName:      req.ToolName,
		ParamsSummary: contracts.SummarizeParams(fmt.Sprintf("%v", req.Params)),
		Tier:          eval.Tier,
		Level:         eval.Level,
		GateReason:    eval.Reason,
		Confidence:    req.Confidence,
		AgentID:       req.AgentID,
		SessionKey:    req.SessionKey,
	}
	// spec §9: trace ids must thread through the approval request
	// payload itself rather than being looked up ambiently later.
	if traceID != "" {
		request.TraceID = &traceID
	}

	timeoutMs := p.cfg.ApprovalTimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 120000
	}

	record := p.deps.ApprovalMgr.Create(request, timeoutMs, nil)

	waitStart := p.clock()
	future, err := p.deps.ApprovalMgr.Register(ctx, record, timeoutMs)
	if err != nil {
		return nil, &record, newError(CodeApprovalDenied, err.Error(), err)
	}

	select {
	case <-ctx.Done():
		return nil, &record, ctx.Err()
	case out := <-future:
		p.recordMetricsApprovalWait(ctx, float64(p.clock().Sub(waitStart).Milliseconds()))
		if out.Decision == nil {
			return nil, &record, newError(CodeApprovalTimedOut, fmt.Sprintf("Approval timed out for tool call %s", req.ToolName), nil)
		}
		if *out.Decision == contracts.DecisionDeny {
			return nil, &record, newError(CodeApprovalDenied, "a human denied this call", nil)
		}
		return out.Decision, &record, nil
	}
}

func (p *Pipeline) recordProgression(approved bool, agent string) {
	if p.deps.Progression != nil {
		p.deps.Progression.RecordApprovalOutcome(approved, agent)
	}
}

func (p *Pipeline) recordMetricsDecision(ctx context.Context, tier contracts.ActionTier, decision contracts.GateDecision) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordDecision(ctx, string(p.cfg.Level), string(tier), string(decision))
	}
}

func (p *Pipeline) recordMetricsApprovalWait(ctx context.Context, ms float64) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordApprovalWait(ctx, ms)
	}
}

func (p *Pipeline) recordMetricsScannerHit(ctx context.Context, kind string) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordScannerHit(ctx, kind)
	}
}

func (p *Pipeline) finalizeError(tctx *trace.Context, message string) {
	if tctx == nil {
		return
	}
	tctx.Finalize(trace.FinalizeParams{Success: false, Error: &message})
}

func traceIDOf(tctx *trace.Context) string {
	if tctx == nil {
		return ""
	}
	return tctx.TraceID()
}

// ValidateOutboundData runs the Data Flow Validator described in spec
// §2 as an independent check at outbound API boundaries, separate from
// the per-tool-call Execute path above.
func (p *Pipeline) ValidateOutboundData(data, provider string) scanner.DataFlowResult {
	return scanner.Validate(data, provider, p.cfg.DataFlow)
}
