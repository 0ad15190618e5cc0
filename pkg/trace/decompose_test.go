package trace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openclaw/aasc/pkg/trace"
)

func TestDecomposeTaskNumberedListTakesPriority(t *testing.T) {
	text := "1. Do the first thing\n2. Then do the second thing\n3. Finally the third"
	result := trace.DecomposeTask(text)
	assert.True(t, result.Decomposed)
	assert.Len(t, result.Subtasks, 3)
	assert.Equal(t, "Do the first thing", result.Subtasks[0])
}

func TestDecomposeTaskSequentialMarkers(t *testing.T) {
	text := "First open the file, then edit the contents, and finally save it."
	result := trace.DecomposeTask(text)
	assert.True(t, result.Decomposed)
	assert.GreaterOrEqual(t, len(result.Subtasks), 2)
}

func TestDecomposeTaskNoStructureReturnsFalse(t *testing.T) {
	result := trace.DecomposeTask("just a single simple request")
	assert.False(t, result.Decomposed)
	assert.Empty(t, result.Subtasks)
}

func TestDecomposeTaskSingleNumberedItemIsNotEnough(t *testing.T) {
	result := trace.DecomposeTask("1. only one step here")
	assert.False(t, result.Decomposed)
}
