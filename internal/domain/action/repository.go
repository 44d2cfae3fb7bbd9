package action

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for pending-action persistence.
// Store must fail with errors.ErrDuplicateAction when an unresolved action
// already exists for the same (kind, payment_reference) pair; the store, not
// the caller, owns that uniqueness constraint.
type Repository interface {
	// Store persists a new pending action.
	Store(ctx context.Context, a *PendingAction) error

	// GetByID retrieves a pending action by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*PendingAction, error)

	// ListUnresolved lists actions whose effect has not been applied yet,
	// oldest first.
	ListUnresolved(ctx context.Context, filter ListFilter) ([]*PendingAction, error)

	// MarkResolved records that the action's effect is now visible in the
	// system of record. Resolving an already-resolved action is an error.
	MarkResolved(ctx context.Context, id uuid.UUID) error

	// RecordAttemptFailure increments the attempt counter and stores the
	// last error, leaving the action queued for a future pass.
	RecordAttemptFailure(ctx context.Context, id uuid.UUID, attemptErr string) error

	// CountByStatus returns action counts grouped by status and kind.
	CountByStatus(ctx context.Context) (Counts, error)
}

// ListFilter defines filters for listing pending actions.
type ListFilter struct {
	Kind            *Kind
	IncludeFailed   bool
	Limit           int
}

// Counts is a read-only aggregate for operational visibility.
type Counts struct {
	Unresolved int
	Resolved   int
	Failed     int
	ByKind     map[Kind]int
}
