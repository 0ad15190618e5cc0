package trace

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/openclaw/aasc/pkg/contracts"
)

// reasoningTraceSchemaJSON mirrors spec §6's on-disk shape. It is
// intentionally permissive on the optional fields; its job is to catch
// drift in the required fields, not to be a strict contract test.
const reasoningTraceSchemaJSON = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["id", "timestamp", "input", "context", "decision", "outcome"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"timestamp": {"type": "string", "minLength": 1},
		"decision": {
			"type": "object",
			"required": ["action", "reasoning", "confidence", "classification", "approvalRequired"]
		},
		"outcome": {
			"type": "object",
			"required": ["success", "duration", "tokenCount", "estimatedCost"]
		}
	}
}`

// SchemaGuard validates a ReasoningTrace against the on-disk shape
// before it is handed to the Writer (SPEC_FULL.md §4.21). Validation
// never blocks the append-only guarantee: drift is logged at Warn and
// the trace is written regardless.
type SchemaGuard struct {
	schema *jsonschema.Schema
	log    *slog.Logger
}

// NewSchemaGuard compiles the built-in schema. Returns nil (skip
// validation) if compilation somehow fails, which should not happen
// for the fixed built-in document.
func NewSchemaGuard(logger *slog.Logger) *SchemaGuard {
	if logger == nil {
		logger = slog.Default()
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("reasoning-trace.json", strings.NewReader(reasoningTraceSchemaJSON)); err != nil {
		logger.Warn("trace schema guard: failed to load schema", "error", err)
		return nil
	}
	schema, err := compiler.Compile("reasoning-trace.json")
	if err != nil {
		logger.Warn("trace schema guard: failed to compile schema", "error", err)
		return nil
	}
	return &SchemaGuard{schema: schema, log: logger}
}

// Validate logs at Warn on drift and always returns; it never signals
// the caller to withhold the write.
func (g *SchemaGuard) Validate(tr contracts.ReasoningTrace) {
	if g == nil {
		return
	}
	data, err := json.Marshal(tr)
	if err != nil {
		g.log.Warn("trace schema guard: failed to marshal trace for validation", "error", err)
		return
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return
	}
	if err := g.schema.Validate(v); err != nil {
		g.log.Warn("trace schema guard: trace does not match the expected shape", "error", err, "trace_id", tr.ID)
	}
}
