package autoapprove

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/aasc/pkg/contracts"
)

// DefaultAgentID is used whenever a caller does not name an agent.
const DefaultAgentID = "main"

// wildcardAgentID rules apply to every agent as a fallback tier.
const wildcardAgentID = "*"

const fileVersion = 1

// Store is a file-backed, per-agent auto-approve rule set. All reads
// fail soft: a missing, unparseable, or wrong-version file is treated
// as empty. Writes are best-effort; failures are logged and never
// propagate to the caller per spec §4.4/§7.
type Store struct {
	mu   sync.Mutex
	path string
	log  *slog.Logger
	now  func() time.Time
}

// New returns a Store persisting to path (which may contain a leading
// "~/", expanded at resolve time on every access rather than once, so
// a changed HOME is picked up).
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, log: logger, now: time.Now}
}

func (s *Store) resolvedPath() string {
	return expandHome(s.path)
}

func expandHome(p string) string {
	if p == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return p
	}
	if len(p) >= 2 && p[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

func (s *Store) load() contracts.AutoApproveFile {
	empty := contracts.AutoApproveFile{Version: fileVersion, Agents: map[string]contracts.AutoApproveAgentRules{}}

	data, err := os.ReadFile(s.resolvedPath())
	if err != nil {
		return empty
	}

	var f contracts.AutoApproveFile
	if err := json.Unmarshal(data, &f); err != nil {
		s.log.Debug("autoapprove: malformed rule file, treating as empty", "error", err)
		return empty
	}
	if f.Version != fileVersion {
		return empty
	}
	if f.Agents == nil {
		f.Agents = map[string]contracts.AutoApproveAgentRules{}
	}
	return f
}

func (s *Store) save(f contracts.AutoApproveFile) error {
	path := s.resolvedPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

func agentKey(agentID *string) string {
	if agentID == nil || *agentID == "" {
		return DefaultAgentID
	}
	return *agentID
}

// Add dedupes on (pattern, tier, agent). Returns the existing rule if
// one already matches; otherwise creates and persists a new one.
func (s *Store) Add(toolName string, tier contracts.ActionTier, agentID *string) contracts.AutoApproveRule {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent := agentKey(agentID)
	f := s.load()
	bucket := f.Agents[agent]

	for _, r := range bucket.Rules {
		if r.ToolPattern == toolName && r.Tier == tier {
			return r
		}
	}

	rule := contracts.AutoApproveRule{
		ID:          uuid.NewString(),
		ToolPattern: toolName,
		Tier:        tier,
		CreatedAtMs: s.now().UnixMilli(),
		UseCount:    0,
	}
	bucket.Rules = append(bucket.Rules, rule)
	f.Agents[agent] = bucket

	if err := s.save(f); err != nil {
		s.log.Debug("autoapprove: failed to persist new rule", "error", err)
	}
	return rule
}

// Check searches the agent's rules first, then the wildcard-agent
// rules, for the first rule whose pattern matches toolName and whose
// tier equals tier. A match fires a best-effort usage-count update.
func (s *Store) Check(toolName string, tier contracts.ActionTier, agentID *string) *contracts.AutoApproveRule {
	s.mu.Lock()
	f := s.load()
	agent := agentKey(agentID)
	name := NormalizeToolName(toolName)

	search := func(bucket contracts.AutoApproveAgentRules) *contracts.AutoApproveRule {
		for i := range bucket.Rules {
			r := bucket.Rules[i]
			if r.Tier == tier && MatchesToolPattern(r.ToolPattern, name) {
				return &r
			}
		}
		return nil
	}

	found := search(f.Agents[agent])
	foundAgent := agent
	if found == nil && agent != wildcardAgentID {
		found = search(f.Agents[wildcardAgentID])
		foundAgent = wildcardAgentID
	}
	s.mu.Unlock()

	if found != nil {
		s.touch(found.ID, foundAgent)
	}
	return found
}

// touch fires-and-forgets a usage-count bump; failures are logged and
// swallowed, matching spec §4.4's "best-effort write" contract.
func (s *Store) touch(ruleID, agent string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.load()
	bucket := f.Agents[agent]
	for i := range bucket.Rules {
		if bucket.Rules[i].ID == ruleID {
			now := s.now().UnixMilli()
			bucket.Rules[i].LastUsedAtMs = &now
			bucket.Rules[i].UseCount++
			break
		}
	}
	f.Agents[agent] = bucket
	if err := s.save(f); err != nil {
		s.log.Debug("autoapprove: failed to persist usage update", "error", err)
	}
}

// Remove deletes a rule by id. Returns false if the rule was absent.
func (s *Store) Remove(ruleID string, agentID *string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent := agentKey(agentID)
	f := s.load()
	bucket := f.Agents[agent]

	for i, r := range bucket.Rules {
		if r.ID == ruleID {
			bucket.Rules = append(bucket.Rules[:i], bucket.Rules[i+1:]...)
			f.Agents[agent] = bucket
			if err := s.save(f); err != nil {
				s.log.Debug("autoapprove: failed to persist rule removal", "error", err)
			}
			return true
		}
	}
	return false
}

// List returns a snapshot of an agent's rules.
func (s *Store) List(agentID *string) []contracts.AutoApproveRule {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent := agentKey(agentID)
	f := s.load()
	rules := f.Agents[agent].Rules
	out := make([]contracts.AutoApproveRule, len(rules))
	copy(out, rules)
	return out
}
