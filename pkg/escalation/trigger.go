// Package escalation implements the Escalation Trigger Evaluator
// (SPEC_FULL.md §4.17): CEL-expression conditions that can force
// approval beyond the Autonomy Gate's static policy matrix.
//
// Grounded on the teacher's core/pkg/governance/policy_engine.go,
// which builds one shared cel.Env, compiles named policies into
// cel.Program once, and caches them for repeated evaluation. AASC's
// escalation triggers are the one genuinely dynamic policy surface in
// the spec (the gate matrix itself is fixed, per spec §6), so this is
// where the corpus's CEL dependency earns its keep.
package escalation

import (
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
)

// DecisionContext is the variable set exposed to trigger expressions.
type DecisionContext struct {
	Tier          string
	Level         string
	Confidence    float64
	HasConfidence bool
	ToolName      string
	ParamsSummary string
}

func (d DecisionContext) toCelVars() map[string]any {
	confidence := 1.0
	if d.HasConfidence {
		confidence = d.Confidence
	}
	return map[string]any{
		"tier":          d.Tier,
		"level":         d.Level,
		"confidence":    confidence,
		"toolName":      d.ToolName,
		"paramsSummary": d.ParamsSummary,
	}
}

// Trigger is one named CEL condition that escalates auto_approve to
// needs_approval when it evaluates true.
type Trigger struct {
	Name       string
	Expression string
}

// Evaluator compiles and evaluates the configured triggers.
type Evaluator struct {
	mu       sync.RWMutex
	env      *cel.Env
	programs map[string]cel.Program
	invalid  map[string]bool
	log      *slog.Logger
}

// NewEvaluator builds the shared CEL environment and compiles every
// trigger up front. Triggers that fail to compile are marked invalid
// and treated as "always requires approval" for the actions they would
// have guarded — fail closed, logged at Warn, per SPEC_FULL.md §4.17.
func NewEvaluator(triggers []Trigger, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}

	env, err := cel.NewEnv(
		cel.Variable("tier", cel.StringType),
		cel.Variable("level", cel.StringType),
		cel.Variable("confidence", cel.DoubleType),
		cel.Variable("toolName", cel.StringType),
		cel.Variable("paramsSummary", cel.StringType),
	)
	if err != nil {
		logger.Warn("escalation: failed to build CEL environment; all triggers fail closed", "error", err)
		return &Evaluator{programs: map[string]cel.Program{}, invalid: allInvalid(triggers), log: logger}
	}

	e := &Evaluator{env: env, programs: map[string]cel.Program{}, invalid: map[string]bool{}, log: logger}
	for _, t := range triggers {
		ast, issues := env.Compile(t.Expression)
		if issues != nil && issues.Err() != nil {
			logger.Warn("escalation: trigger failed to compile, forcing approval for its guarded actions", "trigger", t.Name, "error", issues.Err())
			e.invalid[t.Name] = true
			continue
		}
		prg, err := env.Program(ast)
		if err != nil {
			logger.Warn("escalation: trigger failed to build program, forcing approval for its guarded actions", "trigger", t.Name, "error", err)
			e.invalid[t.Name] = true
			continue
		}
		e.programs[t.Name] = prg
	}
	return e
}

func allInvalid(triggers []Trigger) map[string]bool {
	m := make(map[string]bool, len(triggers))
	for _, t := range triggers {
		m[t.Name] = true
	}
	return m
}

// AnyTriggered evaluates every configured trigger against ctx and
// reports whether at least one fired (or failed to compile, since an
// invalid trigger fails closed). Returns the name of the first
// triggering entry for logging.
func (e *Evaluator) AnyTriggered(ctx DecisionContext) (bool, string) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for name := range e.invalid {
		return true, name
	}

	vars := ctx.toCelVars()
	for name, prg := range e.programs {
		out, _, err := prg.Eval(vars)
		if err != nil {
			e.log.Debug("escalation: trigger evaluation error, treating as not triggered", "trigger", name, "error", err)
			continue
		}
		if b, ok := out.Value().(bool); ok && b {
			return true, name
		}
	}
	return false, ""
}
