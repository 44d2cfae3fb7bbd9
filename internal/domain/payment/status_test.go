package payment

import (
	"testing"

	"payment-confirmation/internal/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	for _, raw := range []string{"PENDING", "CONFIRMED", "RECEIVED", "REFUSED", "OVERDUE", "CANCELLED"} {
		s, err := ParseState(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, State(raw), s)
	}
}

func TestParseState_Unknown(t *testing.T) {
	_, err := ParseState("AWAITING_RISK_ANALYSIS")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnexpectedState)
}

func TestState_IsTerminal(t *testing.T) {
	assert.True(t, StateConfirmed.IsTerminal())
	assert.True(t, StateReceived.IsTerminal())
	assert.True(t, StateRefused.IsTerminal())
	assert.True(t, StateCancelled.IsTerminal())
	assert.False(t, StatePending.IsTerminal())
	assert.False(t, StateOverdue.IsTerminal())
}

func TestState_IsSuccess(t *testing.T) {
	assert.True(t, StateConfirmed.IsSuccess())
	assert.True(t, StateReceived.IsSuccess())
	assert.False(t, StateRefused.IsSuccess())
	assert.False(t, StatePending.IsSuccess())
	assert.False(t, StateOverdue.IsSuccess())
	assert.False(t, StateCancelled.IsSuccess())
}
