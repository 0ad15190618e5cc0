// Package gate evaluates the autonomy policy matrix.
//
// Grounded on the default-deny, pure-function shape of the teacher's
// core/pkg/governance/policy_engine.go Evaluate method, adapted from a
// CEL-compiled program lookup to a fixed 3x5 table lookup — AASC's
// matrix is static per spec §6, so no expression engine is warranted
// here (CEL is reserved for the dynamic escalation-trigger layer in
// pkg/escalation).
package gate

import (
	"fmt"

	"github.com/openclaw/aasc/pkg/contracts"
)

// DefaultConfidenceThreshold is used when the caller does not supply one.
const DefaultConfidenceThreshold = 0.7

// policyMatrix is the fixed table from spec §6 (row=level, col=tier).
var policyMatrix = map[contracts.AutonomyLevel]map[contracts.ActionTier]contracts.GateDecision{
	contracts.LevelLow: {
		contracts.TierCachedPattern:      contracts.DecisionAutoApprove,
		contracts.TierEphemeralCompute:   contracts.DecisionNeedsApproval,
		contracts.TierPersistentService:  contracts.DecisionNeedsApproval,
		contracts.TierSandboxedWorkspace: contracts.DecisionNeedsApproval,
		contracts.TierIrreversible:       contracts.DecisionNeedsApproval,
	},
	contracts.LevelMedium: {
		contracts.TierCachedPattern:      contracts.DecisionAutoApprove,
		contracts.TierEphemeralCompute:   contracts.DecisionAutoApprove,
		contracts.TierPersistentService:  contracts.DecisionNeedsApproval,
		contracts.TierSandboxedWorkspace: contracts.DecisionNeedsApproval,
		contracts.TierIrreversible:       contracts.DecisionNeedsApproval,
	},
	contracts.LevelHigh: {
		contracts.TierCachedPattern:      contracts.DecisionAutoApprove,
		contracts.TierEphemeralCompute:   contracts.DecisionAutoApprove,
		contracts.TierPersistentService:  contracts.DecisionAutoApprove,
		contracts.TierSandboxedWorkspace: contracts.DecisionAutoApprove,
		contracts.TierIrreversible:       contracts.DecisionNeedsApproval,
	},
}

// tierDescription supplies the human-readable clause embedded in
// confidence-downgrade reasons.
var tierDescription = map[contracts.ActionTier]string{
	contracts.TierCachedPattern:      "a cached, read-only pattern",
	contracts.TierEphemeralCompute:   "ephemeral compute with local side effects",
	contracts.TierPersistentService:  "a persistent service action",
	contracts.TierSandboxedWorkspace: "a sandboxed workspace action",
	contracts.TierIrreversible:       "an irreversible action",
}

// Evaluate computes the gate decision for (level, tier, confidence).
// threshold defaults to DefaultConfidenceThreshold when nil.
//
// baseDecision comes from the fixed matrix. When the base decision is
// auto_approve and a confidence value is supplied below threshold, the
// decision is downgraded to needs_approval; the comparison at exactly
// threshold is inclusive and stays auto_approve. needs_approval and
// denied are never upgraded by confidence.
func Evaluate(level contracts.AutonomyLevel, tier contracts.ActionTier, confidence *float64, threshold *float64) contracts.GateEvaluation {
	t := DefaultConfidenceThreshold
	if threshold != nil {
		t = *threshold
	}

	base, ok := policyMatrix[level][tier]
	if !ok {
		base = contracts.DecisionNeedsApproval
	}

	eval := contracts.GateEvaluation{
		Decision:   base,
		Level:      level,
		Tier:       tier,
		Confidence: confidence,
	}

	if base == contracts.DecisionAutoApprove && confidence != nil && *confidence < t {
		eval.Decision = contracts.DecisionNeedsApproval
		eval.Reason = fmt.Sprintf(
			"confidence %.0f%% is below the %.0f%% threshold for %s; requiring approval",
			*confidence*100, t*100, tierDescription[tier],
		)
		return eval
	}

	switch base {
	case contracts.DecisionAutoApprove:
		eval.Reason = fmt.Sprintf("autonomy level %q auto-approves %s", level, tierDescription[tier])
	case contracts.DecisionNeedsApproval:
		eval.Reason = fmt.Sprintf("autonomy level %q requires approval for %s", level, tierDescription[tier])
	case contracts.DecisionDenied:
		eval.Reason = fmt.Sprintf("autonomy level %q denies %s", level, tierDescription[tier])
	}

	return eval
}
