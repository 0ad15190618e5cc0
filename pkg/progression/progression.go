// Package progression implements the per-agent approval track record
// and autonomy-upgrade proposal logic.
//
// Grounded on the sequential fail-closed guard chain of the teacher's
// core/pkg/budget/enforcer.go Check method (fetch state, apply
// defaults if new, check each guard in order, persist), adapted from a
// spend-limit check to an upgrade-eligibility check.
package progression

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/openclaw/aasc/pkg/contracts"
)

const fileVersion = 1

// Config are the tunable guards from spec §4.12 / §6.
type Config struct {
	Enabled         *bool
	MinApprovals    int
	MinApprovalRate float64
	CooldownDays    int
}

// DefaultConfig mirrors the spec §6 defaults.
func DefaultConfig() Config {
	return Config{MinApprovals: 50, MinApprovalRate: 0.95, CooldownDays: 7}
}

func (c Config) enabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c Config) minApprovals() int {
	if c.MinApprovals > 0 {
		return c.MinApprovals
	}
	return 50
}

func (c Config) minApprovalRate() float64 {
	if c.MinApprovalRate > 0 {
		return c.MinApprovalRate
	}
	return 0.95
}

func (c Config) cooldownDays() int {
	if c.CooldownDays > 0 {
		return c.CooldownDays
	}
	return 7
}

// ProposalResult is what shouldProposeUpgrade returns.
type ProposalResult struct {
	Propose   bool
	FromLevel contracts.AutonomyLevel
	ToLevel   contracts.AutonomyLevel
	Stats     contracts.ProgressionStats
	Reason    string
}

// Tracker is a file-backed, per-agent progression store.
type Tracker struct {
	mu   sync.Mutex
	path string
	log  *slog.Logger
	now  func() time.Time
}

// New returns a Tracker persisting to path.
func New(path string, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{path: path, log: logger, now: time.Now}
}

func (t *Tracker) load() contracts.ProgressionFile {
	empty := contracts.ProgressionFile{Version: fileVersion, Agents: map[string]contracts.ProgressionStats{}}

	data, err := os.ReadFile(t.path)
	if err != nil {
		return empty
	}
	var f contracts.ProgressionFile
	if err := json.Unmarshal(data, &f); err != nil {
		t.log.Debug("progression: malformed file, treating as empty", "error", err)
		return empty
	}
	if f.Version != fileVersion {
		return empty
	}
	if f.Agents == nil {
		f.Agents = map[string]contracts.ProgressionStats{}
	}
	return f
}

func (t *Tracker) save(f contracts.ProgressionFile) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(t.path, data, 0o600); err != nil {
		return err
	}
	return os.Chmod(t.path, 0o600)
}

// RecordApprovalOutcome increments the appropriate counter for agentID.
// consecutiveSuccesses resets to 0 on any denial.
func (t *Tracker) RecordApprovalOutcome(approved bool, agentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f := t.load()
	stats := f.Agents[agentID]
	if approved {
		stats.TotalApprovals++
		stats.ConsecutiveSuccesses++
	} else {
		stats.TotalDenials++
		stats.ConsecutiveSuccesses = 0
	}
	f.Agents[agentID] = stats

	if err := t.save(f); err != nil {
		t.log.Debug("progression: failed to persist outcome", "error", err)
	}
}

// ShouldProposeUpgrade evaluates the short-circuit guard chain from
// spec §4.12.
func (t *Tracker) ShouldProposeUpgrade(currentLevel contracts.AutonomyLevel, cfg Config, agentID string) ProposalResult {
	t.mu.Lock()
	f := t.load()
	stats := f.Agents[agentID]
	t.mu.Unlock()

	next, ok := currentLevel.Next()
	if !ok {
		return ProposalResult{Propose: false, Stats: stats, Reason: "already at maximum autonomy level"}
	}

	if !cfg.enabled() {
		return ProposalResult{Propose: false, Stats: stats, Reason: "progression is disabled"}
	}

	total := stats.TotalApprovals + stats.TotalDenials
	minApprovals := cfg.minApprovals()
	if total < minApprovals {
		return ProposalResult{Propose: false, Stats: stats, Reason: percentReason(minApprovals, total)}
	}

	rate := float64(stats.TotalApprovals) / float64(total)
	minRate := cfg.minApprovalRate()
	if rate < minRate {
		return ProposalResult{Propose: false, Stats: stats, Reason: "approval rate is below the required threshold"}
	}

	if stats.LastProposalAtMs != nil {
		cooldownMs := int64(cfg.cooldownDays()) * 86400000
		if t.now().UnixMilli()-*stats.LastProposalAtMs < cooldownMs {
			return ProposalResult{Propose: false, Stats: stats, Reason: "still within the cooldown window since the last proposal"}
		}
	}

	return ProposalResult{
		Propose:   true,
		FromLevel: currentLevel,
		ToLevel:   next,
		Stats:     stats,
		Reason:    "approval track record clears all upgrade guards",
	}
}

func percentReason(min, total int) string {
	return "Need at least " + strconv.Itoa(min) + " resolved decisions; have " + strconv.Itoa(total)
}

// MarkProposalSurfaced stamps lastProposalAtMs=now for agentID.
func (t *Tracker) MarkProposalSurfaced(agentID string, toLevel contracts.AutonomyLevel) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f := t.load()
	stats := f.Agents[agentID]
	now := t.now().UnixMilli()
	stats.LastProposalAtMs = &now
	level := toLevel
	stats.LastProposalLevel = &level
	f.Agents[agentID] = stats

	if err := t.save(f); err != nil {
		t.log.Debug("progression: failed to persist proposal surfaced marker", "error", err)
	}
}

// ResetProgressionStats deletes agentID's entry entirely.
func (t *Tracker) ResetProgressionStats(agentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f := t.load()
	delete(f.Agents, agentID)

	if err := t.save(f); err != nil {
		t.log.Debug("progression: failed to persist reset", "error", err)
	}
}
