package action

import (
	"time"

	"payment-confirmation/internal/domain/errors"

	"github.com/google/uuid"
)

// Kind identifies the domain mutation a pending action will replay.
type Kind string

const (
	KindSubscription      Kind = "subscription"
	KindAccountCompletion Kind = "account_completion"
)

// ParseKind maps a raw string to a Kind.
func ParseKind(raw string) (Kind, error) {
	switch Kind(raw) {
	case KindSubscription, KindAccountCompletion:
		return Kind(raw), nil
	default:
		return "", errors.NewDomainError("unknown_kind", "unknown action kind "+raw, errors.ErrUnknownActionKind)
	}
}

// Status represents the lifecycle of a pending action.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusResolved   Status = "resolved"
	StatusFailed     Status = "failed"
)

// PendingAction is a domain mutation that should have followed a confirmed
// payment but did not complete synchronously. It stays queued until a
// reconciliation pass succeeds; automatic retries stop once Attempts reaches
// MaxAttempts, but the action is never deleted; the manual retry path can
// still pick it up.
type PendingAction struct {
	ID               uuid.UUID
	Kind             Kind
	PaymentReference string
	Payload          map[string]any
	Status           Status
	Attempts         int
	MaxAttempts      int
	LastError        *string
	CreatedAt        time.Time
	ResolvedAt       *time.Time
}

// New creates a pending action for the given kind and payment reference.
func New(kind Kind, paymentReference string, payload map[string]any) (*PendingAction, error) {
	if paymentReference == "" {
		return nil, errors.NewValidationError("payment_reference", "cannot be empty")
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if payload == nil {
		payload = make(map[string]any)
	}
	return &PendingAction{
		ID:               uuid.New(),
		Kind:             kind,
		PaymentReference: paymentReference,
		Payload:          payload,
		Status:           StatusPending,
		Attempts:         0,
		MaxAttempts:      3,
		CreatedAt:        time.Now(),
	}, nil
}

// Resolved reports whether the action has already been applied.
func (a *PendingAction) Resolved() bool {
	return a.ResolvedAt != nil
}

// Exhausted reports whether automatic retries should stop for this action.
func (a *PendingAction) Exhausted() bool {
	return a.Attempts >= a.MaxAttempts
}
