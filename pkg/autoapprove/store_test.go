package autoapprove_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/aasc/pkg/autoapprove"
	"github.com/openclaw/aasc/pkg/contracts"
)

func newStore(t *testing.T) *autoapprove.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "autonomy-rules.json")
	return autoapprove.New(path, nil)
}

func TestStoreAddDedupesOnPatternAndTier(t *testing.T) {
	s := newStore(t)

	first := s.Add("bash", contracts.TierEphemeralCompute, nil)
	second := s.Add("bash", contracts.TierEphemeralCompute, nil)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, s.List(nil), 1)
}

func TestStoreCheckMatchesAgentThenWildcard(t *testing.T) {
	s := newStore(t)
	agent := "agent-1"
	s.Add("bash", contracts.TierEphemeralCompute, &agent)

	found := s.Check("bash", contracts.TierEphemeralCompute, &agent)
	require.NotNil(t, found)

	other := "agent-2"
	assert.Nil(t, s.Check("bash", contracts.TierEphemeralCompute, &other))
}

func TestStoreCheckFallsBackToWildcardAgent(t *testing.T) {
	s := newStore(t)
	wildcard := "*"
	s.Add("bash", contracts.TierEphemeralCompute, &wildcard)

	agent := "any-agent"
	found := s.Check("bash", contracts.TierEphemeralCompute, &agent)
	require.NotNil(t, found)
}

func TestStoreCheckBumpsUsage(t *testing.T) {
	s := newStore(t)
	rule := s.Add("bash", contracts.TierEphemeralCompute, nil)
	assert.Equal(t, 0, rule.UseCount)

	s.Check("bash", contracts.TierEphemeralCompute, nil)

	rules := s.List(nil)
	require.Len(t, rules, 1)
	assert.Equal(t, 1, rules[0].UseCount)
	assert.NotNil(t, rules[0].LastUsedAtMs)
}

func TestStoreRoundTripsThroughDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autonomy-rules.json")
	first := autoapprove.New(path, nil)
	first.Add("bash", contracts.TierEphemeralCompute, nil)

	second := autoapprove.New(path, nil)
	rules := second.List(nil)
	require.Len(t, rules, 1)
	assert.Equal(t, "bash", rules[0].ToolPattern)
}

func TestStoreLoadFailsSoftOnMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	s := autoapprove.New(path, nil)
	assert.Empty(t, s.List(nil))
}

func TestStoreRemove(t *testing.T) {
	s := newStore(t)
	rule := s.Add("bash", contracts.TierEphemeralCompute, nil)

	assert.True(t, s.Remove(rule.ID, nil))
	assert.False(t, s.Remove(rule.ID, nil))
	assert.Empty(t, s.List(nil))
}
