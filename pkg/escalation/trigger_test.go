package escalation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openclaw/aasc/pkg/escalation"
)

func TestAnyTriggeredEvaluatesTrueExpression(t *testing.T) {
	ev := escalation.NewEvaluator([]escalation.Trigger{
		{Name: "high-value-tool", Expression: `toolName == "bash"`},
	}, nil)

	triggered, name := ev.AnyTriggered(escalation.DecisionContext{ToolName: "bash"})
	assert.True(t, triggered)
	assert.Equal(t, "high-value-tool", name)
}

func TestAnyTriggeredFalseWhenNoExpressionMatches(t *testing.T) {
	ev := escalation.NewEvaluator([]escalation.Trigger{
		{Name: "never", Expression: `tier == "irreversible" && confidence < 0.1`},
	}, nil)

	triggered, _ := ev.AnyTriggered(escalation.DecisionContext{Tier: "cached_pattern", HasConfidence: true, Confidence: 0.9})
	assert.False(t, triggered)
}

func TestInvalidExpressionFailsClosed(t *testing.T) {
	ev := escalation.NewEvaluator([]escalation.Trigger{
		{Name: "broken", Expression: `this is not valid cel (`},
	}, nil)

	triggered, name := ev.AnyTriggered(escalation.DecisionContext{ToolName: "anything"})
	assert.True(t, triggered)
	assert.Equal(t, "broken", name)
}

func TestConfidenceDefaultsWhenAbsent(t *testing.T) {
	ev := escalation.NewEvaluator([]escalation.Trigger{
		{Name: "low-confidence-only", Expression: `confidence < 0.5`},
	}, nil)

	triggered, _ := ev.AnyTriggered(escalation.DecisionContext{ToolName: "bash", HasConfidence: false})
	assert.False(t, triggered)
}
