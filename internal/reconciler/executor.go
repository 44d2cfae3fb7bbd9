package reconciler

import (
	"context"
	"fmt"
	"time"

	"payment-confirmation/internal/domain/action"
	domainErrors "payment-confirmation/internal/domain/errors"
	"payment-confirmation/internal/domain/member"

	"github.com/google/uuid"
)

// Executor applies one kind of pending action against the system of record.
// EffectExists is the idempotent lookup consulted before Execute, so an
// action completed by a racing webhook is resolved without re-applying it.
type Executor interface {
	Kind() action.Kind
	EffectExists(ctx context.Context, a *action.PendingAction) (bool, error)
	Execute(ctx context.Context, a *action.PendingAction) error
}

// SubscriptionExecutor activates a member subscription for a confirmed
// payment. Payload: profile_id, plan_id.
type SubscriptionExecutor struct {
	members member.Repository
}

func NewSubscriptionExecutor(members member.Repository) *SubscriptionExecutor {
	return &SubscriptionExecutor{members: members}
}

func (e *SubscriptionExecutor) Kind() action.Kind { return action.KindSubscription }

func (e *SubscriptionExecutor) EffectExists(ctx context.Context, a *action.PendingAction) (bool, error) {
	return e.members.SubscriptionExists(ctx, a.PaymentReference)
}

func (e *SubscriptionExecutor) Execute(ctx context.Context, a *action.PendingAction) error {
	profileID, err := payloadUUID(a.Payload, "profile_id")
	if err != nil {
		return err
	}
	planID, err := payloadUUID(a.Payload, "plan_id")
	if err != nil {
		return err
	}

	plan, err := e.members.GetPlan(ctx, planID)
	if err != nil {
		return err
	}

	now := time.Now()
	return e.members.CreateSubscription(ctx, &member.Subscription{
		ID:               uuid.New(),
		ProfileID:        profileID,
		PlanID:           planID,
		Status:           "active",
		PaymentReference: a.PaymentReference,
		StartedAt:        now,
		NextBillingAt:    plan.Cycle.NextBillingDate(now),
	})
}

// AccountCompletionExecutor finishes a member account whose creation was
// interrupted after payment. Payload: email, full_name, member_type and
// optionally document, phone. An existing profile is completed in place;
// otherwise a new active one is created.
type AccountCompletionExecutor struct {
	members member.Repository
}

func NewAccountCompletionExecutor(members member.Repository) *AccountCompletionExecutor {
	return &AccountCompletionExecutor{members: members}
}

func (e *AccountCompletionExecutor) Kind() action.Kind { return action.KindAccountCompletion }

func (e *AccountCompletionExecutor) EffectExists(ctx context.Context, a *action.PendingAction) (bool, error) {
	email, err := payloadString(a.Payload, "email")
	if err != nil {
		return false, err
	}
	p, err := e.members.GetProfileByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return p != nil && p.Status == "active" && p.PaymentConfirmedAt != nil, nil
}

func (e *AccountCompletionExecutor) Execute(ctx context.Context, a *action.PendingAction) error {
	email, err := payloadString(a.Payload, "email")
	if err != nil {
		return err
	}

	existing, err := e.members.GetProfileByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return e.members.CompleteProfile(ctx, existing.ID)
	}

	fullName, err := payloadString(a.Payload, "full_name")
	if err != nil {
		return err
	}
	memberType, err := payloadString(a.Payload, "member_type")
	if err != nil {
		return err
	}

	now := time.Now()
	return e.members.CreateProfile(ctx, &member.Profile{
		ID:                 uuid.New(),
		Email:              email,
		FullName:           fullName,
		Document:           optionalString(a.Payload, "document"),
		Phone:              optionalString(a.Payload, "phone"),
		MemberType:         memberType,
		Status:             "active",
		PaymentConfirmedAt: &now,
		CreatedAt:          now,
	})
}

func payloadString(payload map[string]any, key string) (string, error) {
	v, ok := payload[key].(string)
	if !ok || v == "" {
		return "", domainErrors.NewValidationError(key, "missing or not a string in action payload")
	}
	return v, nil
}

func optionalString(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

func payloadUUID(payload map[string]any, key string) (uuid.UUID, error) {
	s, err := payloadString(payload, key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, domainErrors.NewValidationError(key, fmt.Sprintf("invalid UUID %q in action payload", s))
	}
	return id, nil
}
