// Package observability wires the pipeline's decision, approval-wait,
// and scanner-hit counters into OpenTelemetry (SPEC_FULL.md §4.20).
//
// Grounded on the teacher's blanket use of go.opentelemetry.io/otel
// across core/go.mod. AASC ships no exporter or SDK wiring of its
// own — the host process supplies the MeterProvider, matching spec
// §1's framing of the surrounding runtime as an external collaborator.
// The default global provider is a safe no-op until a real one is set.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

func attrString(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

const meterName = "github.com/openclaw/aasc"

// Metrics bundles the instruments the pipeline records against.
type Metrics struct {
	decisions      metric.Int64Counter
	approvalWaitMs metric.Float64Histogram
	scannerHits    metric.Int64Counter
}

// New creates instruments against the global otel MeterProvider. Never
// fails: instrument-creation errors fall back to no-op instruments so
// the pipeline never depends on a metrics backend being configured.
func New() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	decisions, err := meter.Int64Counter("aasc.gate.decisions", metric.WithDescription("Gate decisions by level, tier, and outcome"))
	if err != nil {
		decisions, _ = noopMeter().Int64Counter("aasc.gate.decisions")
	}
	approvalWaitMs, err := meter.Float64Histogram("aasc.approval.wait_ms", metric.WithDescription("Time spent waiting for a human approval decision"))
	if err != nil {
		approvalWaitMs, _ = noopMeter().Float64Histogram("aasc.approval.wait_ms")
	}
	scannerHits, err := meter.Int64Counter("aasc.scanner.hits", metric.WithDescription("Sensitive-data and injection-pattern hits by type"))
	if err != nil {
		scannerHits, _ = noopMeter().Int64Counter("aasc.scanner.hits")
	}

	return &Metrics{decisions: decisions, approvalWaitMs: approvalWaitMs, scannerHits: scannerHits}
}

func noopMeter() metric.Meter {
	return noop.NewMeterProvider().Meter(meterName)
}

// RecordDecision increments the gate-decisions counter.
func (m *Metrics) RecordDecision(ctx context.Context, level, tier, decision string) {
	if m == nil {
		return
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attrString("level", level),
		attrString("tier", tier),
		attrString("decision", decision),
	))
}

// RecordApprovalWait records how long a call waited for a human decision.
func (m *Metrics) RecordApprovalWait(ctx context.Context, ms float64) {
	if m == nil {
		return
	}
	m.approvalWaitMs.Record(ctx, ms)
}

// RecordScannerHit increments the scanner-hits counter for kind.
func (m *Metrics) RecordScannerHit(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.scannerHits.Add(ctx, 1, metric.WithAttributes(attrString("kind", kind)))
}
