// Package approval implements the Approval Manager: the single-process
// coordinator that suspends tool calls pending a human decision with a
// bounded timeout.
//
// The create/resolve/timeout/receipt-retention lifecycle is grounded on
// the teacher's core/pkg/escalation/manager.go (injectable clock,
// pending map, one-way pending→resolved transition). That teacher file
// only polls for timeouts (CheckTimeouts), which cannot implement
// spec §4.5's register()→future<Decision|null> suspension point. The
// awaitable mechanics — a per-record channel, an armed timer, and
// cancellation via context — are grounded instead on
// core/pkg/governance/swarm_pdp.go, which is the teacher's proof that
// the corpus's idiomatic concurrency is channel-and-goroutine based,
// not polling based.
package approval

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/aasc/pkg/contracts"
)

// ErrAlreadyResolved is returned by Register when the record it was
// given has already been resolved.
var ErrAlreadyResolved = errors.New("already resolved")

// GraceDuration is how long a resolved (or timed-out) record is
// retained for late awaitDecision callers before eviction.
const GraceDuration = 15 * time.Second

// Outcome is what a future completes with. A nil Decision represents
// the timeout sentinel (spec's `null`).
type Outcome struct {
	Decision *contracts.ApprovalDecision
}

type entry struct {
	record     contracts.AutonomyApprovalRecord
	future     chan Outcome
	completed  *Outcome
	timer      *time.Timer
	graceTimer *time.Timer
}

// Manager coordinates pending approval records for a single process.
type Manager struct {
	mu      sync.Mutex
	pending map[string]*entry
	clock   func() time.Time
	log     *slog.Logger
}

// New returns an empty Manager using the wall clock.
func New(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{pending: make(map[string]*entry), clock: time.Now, log: logger}
}

// WithClock overrides the manager's clock, for deterministic tests.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

// Create builds a new record. It does not arm a timer or register it
// as pending — call Register for that.
func (m *Manager) Create(request contracts.AutonomyApprovalRequest, timeoutMs int64, id *string) contracts.AutonomyApprovalRecord {
	recordID := uuid.NewString()
	if id != nil {
		trimmed := strings.TrimSpace(*id)
		if trimmed != "" {
			recordID = trimmed
		}
	}
	now := m.clock().UnixMilli()
	return contracts.AutonomyApprovalRecord{
		ID:          recordID,
		Request:     request,
		CreatedAtMs: now,
		ExpiresAtMs: now + timeoutMs,
	}
}

// Register arms the timer for record and returns a future that
// completes with the human decision, or the timeout sentinel.
//
// Idempotent: registering the same pending id again returns the
// existing future. Registering an id that is already resolved (still
// within its grace period) fails with ErrAlreadyResolved.
func (m *Manager) Register(ctx context.Context, record contracts.AutonomyApprovalRecord, timeoutMs int64) (<-chan Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.pending[record.ID]; ok {
		if e.completed != nil {
			return nil, ErrAlreadyResolved
		}
		return e.future, nil
	}

	e := &entry{
		record: record,
		future: make(chan Outcome, 1),
	}
	m.pending[record.ID] = e

	e.timer = time.AfterFunc(time.Duration(timeoutMs)*time.Millisecond, func() {
		m.onTimeout(record.ID)
	})

	// Per spec §5, an aborted tool call does not cancel the pending
	// approval record itself — it is left to be resolved or timed out
	// normally, so ctx is accepted for symmetry with the pipeline's
	// other suspension points but is not wired to any cancellation here.
	_ = ctx

	return e.future, nil
}

func (m *Manager) onTimeout(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.pending[id]
	if !ok || e.completed != nil {
		return
	}
	m.completeLocked(e, Outcome{Decision: nil})
}

// Resolve records a human decision. Returns false if the record is
// unknown or already resolved.
func (m *Manager) Resolve(id string, decision contracts.ApprovalDecision, resolvedBy *string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.pending[id]
	if !ok || e.completed != nil {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}

	now := m.clock().UnixMilli()
	e.record.ResolvedAtMs = &now
	d := decision
	e.record.Decision = &d
	e.record.ResolvedBy = resolvedBy

	m.completeLocked(e, Outcome{Decision: &d})
	return true
}

// completeLocked stamps the entry resolved, delivers the outcome to
// the future (non-blocking, buffered 1), and schedules grace eviction.
// Caller must hold m.mu.
func (m *Manager) completeLocked(e *entry, outcome Outcome) {
	e.completed = &outcome
	select {
	case e.future <- outcome:
	default:
	}
	e.graceTimer = time.AfterFunc(GraceDuration, func() {
		m.evict(e.record.ID)
	})
}

func (m *Manager) evict(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, id)
}

// GetSnapshot returns a copy of the record's current state, or false
// if it is unknown (never registered, or evicted past its grace).
func (m *Manager) GetSnapshot(id string) (contracts.AutonomyApprovalRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.pending[id]
	if !ok {
		return contracts.AutonomyApprovalRecord{}, false
	}
	return e.record, true
}

// AwaitDecision returns the already-completed outcome for a resolved
// or timed-out record (useful within the grace window), or false if
// still pending or unknown.
func (m *Manager) AwaitDecision(id string) (Outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.pending[id]
	if !ok || e.completed == nil {
		return Outcome{}, false
	}
	return *e.completed, true
}

// ListPending returns records still awaiting a decision, excluding
// resolved-but-grace-retained entries.
func (m *Manager) ListPending() []contracts.AutonomyApprovalRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]contracts.AutonomyApprovalRecord, 0, len(m.pending))
	for _, e := range m.pending {
		if e.completed == nil {
			out = append(out, e.record)
		}
	}
	return out
}

// PendingCount excludes resolved-but-grace-retained entries.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.pending {
		if e.completed == nil {
			n++
		}
	}
	return n
}
