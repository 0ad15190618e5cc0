package gate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openclaw/aasc/pkg/contracts"
	"github.com/openclaw/aasc/pkg/gate"
)

func TestEvaluateMatrixLowLevel(t *testing.T) {
	eval := gate.Evaluate(contracts.LevelLow, contracts.TierCachedPattern, nil, nil)
	assert.Equal(t, contracts.DecisionAutoApprove, eval.Decision)

	eval = gate.Evaluate(contracts.LevelLow, contracts.TierEphemeralCompute, nil, nil)
	assert.Equal(t, contracts.DecisionNeedsApproval, eval.Decision)
}

func TestEvaluateMatrixHighLevelStillGatesIrreversible(t *testing.T) {
	eval := gate.Evaluate(contracts.LevelHigh, contracts.TierIrreversible, nil, nil)
	assert.Equal(t, contracts.DecisionNeedsApproval, eval.Decision)

	eval = gate.Evaluate(contracts.LevelHigh, contracts.TierPersistentService, nil, nil)
	assert.Equal(t, contracts.DecisionAutoApprove, eval.Decision)
}

func TestEvaluateConfidenceThresholdIsInclusive(t *testing.T) {
	atThreshold := 0.7
	eval := gate.Evaluate(contracts.LevelMedium, contracts.TierEphemeralCompute, &atThreshold, nil)
	assert.Equal(t, contracts.DecisionAutoApprove, eval.Decision)

	belowThreshold := 0.69
	eval = gate.Evaluate(contracts.LevelMedium, contracts.TierEphemeralCompute, &belowThreshold, nil)
	assert.Equal(t, contracts.DecisionNeedsApproval, eval.Decision)
}

func TestEvaluateConfidenceNeverUpgradesNeedsApproval(t *testing.T) {
	high := 0.99
	eval := gate.Evaluate(contracts.LevelLow, contracts.TierEphemeralCompute, &high, nil)
	assert.Equal(t, contracts.DecisionNeedsApproval, eval.Decision)
}

func TestEvaluateCustomThreshold(t *testing.T) {
	confidence := 0.5
	threshold := 0.4
	eval := gate.Evaluate(contracts.LevelMedium, contracts.TierEphemeralCompute, &confidence, &threshold)
	assert.Equal(t, contracts.DecisionAutoApprove, eval.Decision)
}
