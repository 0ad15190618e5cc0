package autoapprove_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openclaw/aasc/pkg/autoapprove"
)

func TestMatchesToolPatternWildcard(t *testing.T) {
	assert.True(t, autoapprove.MatchesToolPattern("*", "anything"))
	assert.True(t, autoapprove.MatchesToolPattern("*", ""))
}

func TestMatchesToolPatternTrailingWildcard(t *testing.T) {
	assert.True(t, autoapprove.MatchesToolPattern("sessions_*", "sessions_list"))
	assert.False(t, autoapprove.MatchesToolPattern("sessions_*", "session_status"))
}

func TestMatchesToolPatternExact(t *testing.T) {
	assert.True(t, autoapprove.MatchesToolPattern("read", "read"))
	assert.False(t, autoapprove.MatchesToolPattern("read", "readx"))
}
