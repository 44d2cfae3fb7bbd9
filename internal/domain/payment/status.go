package payment

import (
	"time"

	"payment-confirmation/internal/domain/errors"
)

// State represents a payment lifecycle state as reported by the gateway.
type State string

const (
	StatePending   State = "PENDING"
	StateConfirmed State = "CONFIRMED"
	StateReceived  State = "RECEIVED"
	StateRefused   State = "REFUSED"
	StateOverdue   State = "OVERDUE"
	StateCancelled State = "CANCELLED"
)

// ParseState maps a raw gateway status string to a State.
func ParseState(raw string) (State, error) {
	switch State(raw) {
	case StatePending, StateConfirmed, StateReceived, StateRefused, StateOverdue, StateCancelled:
		return State(raw), nil
	default:
		return "", errors.NewDomainError("unknown_state", "unknown payment state "+raw, errors.ErrUnexpectedState)
	}
}

// IsTerminal reports whether no further transition is expected from this state.
func (s State) IsTerminal() bool {
	switch s {
	case StateConfirmed, StateReceived, StateRefused, StateCancelled:
		return true
	}
	return false
}

// IsSuccess reports whether the state is a terminal success.
func (s State) IsSuccess() bool {
	return s == StateConfirmed || s == StateReceived
}

// Status is an immutable snapshot of a payment's state at observation time.
// A fresh one is fetched on every poll attempt.
type Status struct {
	ID          string
	State       State
	ObservedAt  time.Time
	AmountCents int64
	Metadata    map[string]any
}
