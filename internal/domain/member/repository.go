package member

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the membership system of record the reconciler mutates.
type Repository interface {
	// GetProfileByEmail returns the profile for an email, or nil if absent.
	GetProfileByEmail(ctx context.Context, email string) (*Profile, error)

	// CreateProfile inserts a member profile.
	CreateProfile(ctx context.Context, p *Profile) error

	// CompleteProfile marks an existing profile active with a confirmed payment.
	CompleteProfile(ctx context.Context, id uuid.UUID) error

	// GetPlan returns a subscription plan.
	GetPlan(ctx context.Context, id uuid.UUID) (*Plan, error)

	// SubscriptionExists reports whether a subscription was already activated
	// for the payment reference. This is the idempotent lookup the reconciler
	// consults before re-applying an action.
	SubscriptionExists(ctx context.Context, paymentReference string) (bool, error)

	// CreateSubscription activates a subscription.
	CreateSubscription(ctx context.Context, s *Subscription) error
}
