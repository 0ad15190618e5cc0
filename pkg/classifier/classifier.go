// Package classifier maps tool calls to an ActionTier.
//
// Grounded on the registry-plus-lookup shape of the teacher's
// core/pkg/tiers package: a static seeded map, a process-wide mutable
// override layer, and a total lookup function that never fails closed
// to the most permissive tier.
package classifier

import (
	"sync"

	"github.com/openclaw/aasc/pkg/contracts"
)

// defaultTiers is the seeded static registry (spec §6, case-sensitive
// exact tool names).
var defaultTiers = map[string]contracts.ActionTier{
	"read":              contracts.TierCachedPattern,
	"grep":              contracts.TierCachedPattern,
	"find":              contracts.TierCachedPattern,
	"ls":                contracts.TierCachedPattern,
	"web_search":        contracts.TierCachedPattern,
	"web_fetch":         contracts.TierCachedPattern,
	"memory_search":     contracts.TierCachedPattern,
	"memory_get":        contracts.TierCachedPattern,
	"agents_list":       contracts.TierCachedPattern,
	"sessions_list":     contracts.TierCachedPattern,
	"sessions_history":  contracts.TierCachedPattern,
	"session_status":    contracts.TierCachedPattern,
	"write":             contracts.TierEphemeralCompute,
	"edit":              contracts.TierEphemeralCompute,
	"apply_patch":       contracts.TierEphemeralCompute,
	"exec":              contracts.TierEphemeralCompute,
	"bash":              contracts.TierEphemeralCompute,
	"process":           contracts.TierEphemeralCompute,
	"image":             contracts.TierEphemeralCompute,
	"tts":               contracts.TierEphemeralCompute,
	"cron":              contracts.TierPersistentService,
	"gateway":           contracts.TierPersistentService,
	"nodes":             contracts.TierPersistentService,
	"subagents":         contracts.TierPersistentService,
	"sessions_spawn":    contracts.TierPersistentService,
	"browser":           contracts.TierSandboxedWorkspace,
	"canvas":            contracts.TierSandboxedWorkspace,
	"message":           contracts.TierIrreversible,
	"sessions_send":     contracts.TierIrreversible,
	"whatsapp_login":    contracts.TierIrreversible,
}

// FallbackTier is used when a tool has no registered tier anywhere.
// Deliberately conservative: never falls back to cached_pattern.
const FallbackTier = contracts.TierPersistentService

// ToolAutonomyHint lets a caller override tier resolution for a single
// call without mutating process-wide state.
type ToolAutonomyHint struct {
	Tier *contracts.ActionTier
}

// Classifier holds the process-wide runtime override layer on top of
// the static registry.
type Classifier struct {
	mu        sync.RWMutex
	overrides map[string]contracts.ActionTier
}

// New returns a Classifier with an empty override layer.
func New() *Classifier {
	return &Classifier{overrides: make(map[string]contracts.ActionTier)}
}

// RegisterToolTier mutates the process-wide override mapping. Safe for
// concurrent use.
func (c *Classifier) RegisterToolTier(name string, tier contracts.ActionTier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides[name] = tier
}

// UnregisterToolTier removes a process-wide override, if any.
func (c *Classifier) UnregisterToolTier(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.overrides, name)
}

// GetClassificationMap returns a read-only merged snapshot: the static
// registry overlaid with the current runtime overrides.
func (c *Classifier) GetClassificationMap() map[string]contracts.ActionTier {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]contracts.ActionTier, len(defaultTiers)+len(c.overrides))
	for k, v := range defaultTiers {
		snapshot[k] = v
	}
	for k, v := range c.overrides {
		snapshot[k] = v
	}
	return snapshot
}

// ClassifyAction resolves (toolName, hint) to a tier. Resolution
// priority, top down: caller-supplied hint, runtime override, static
// registry, conservative fallback. Total and pure given the snapshot
// of overrides at call time.
func (c *Classifier) ClassifyAction(toolName string, hint *ToolAutonomyHint) contracts.ActionTier {
	if hint != nil && hint.Tier != nil {
		return *hint.Tier
	}

	c.mu.RLock()
	tier, ok := c.overrides[toolName]
	c.mu.RUnlock()
	if ok {
		return tier
	}

	if tier, ok := defaultTiers[toolName]; ok {
		return tier
	}

	return FallbackTier
}
