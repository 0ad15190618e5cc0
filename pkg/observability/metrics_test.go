package observability_test

import (
	"context"
	"testing"

	"github.com/openclaw/aasc/pkg/observability"
)

// Plain testing, no assertions beyond "does not panic": there is no
// exporter wired in tests, so these only exercise the nil-safety and
// no-op fallback paths.

func TestMetricsRecordDecisionDoesNotPanicWithoutExporter(t *testing.T) {
	m := observability.New()
	m.RecordDecision(context.Background(), "low", "cached_pattern", "auto_approve")
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *observability.Metrics
	m.RecordDecision(context.Background(), "low", "cached_pattern", "auto_approve")
	m.RecordApprovalWait(context.Background(), 12.5)
	m.RecordScannerHit(context.Background(), "injection_pattern")
}
