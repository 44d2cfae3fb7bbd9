package member

import (
	"time"

	"github.com/google/uuid"
)

// Cycle is a subscription billing cycle.
type Cycle string

const (
	CycleMonthly      Cycle = "MONTHLY"
	CycleSemiannually Cycle = "SEMIANNUALLY"
	CycleYearly       Cycle = "YEARLY"
)

// NextBillingDate computes the next billing date for a cycle starting from
// now. Unknown cycles bill monthly.
func (c Cycle) NextBillingDate(from time.Time) time.Time {
	switch c {
	case CycleSemiannually:
		return from.AddDate(0, 6, 0)
	case CycleYearly:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

// Profile is a member account record.
type Profile struct {
	ID                 uuid.UUID
	Email              string
	FullName           string
	Document           string
	Phone              string
	MemberType         string
	Status             string
	PaymentConfirmedAt *time.Time
	CreatedAt          time.Time
}

// Plan is a subscription plan.
type Plan struct {
	ID         uuid.UUID
	Name       string
	Cycle      Cycle
	PriceCents int64
	CreatedAt  time.Time
}

// Subscription ties a profile to a plan, activated by a confirmed payment.
type Subscription struct {
	ID               uuid.UUID
	ProfileID        uuid.UUID
	PlanID           uuid.UUID
	Status           string
	PaymentReference string
	StartedAt        time.Time
	NextBillingAt    time.Time
}
