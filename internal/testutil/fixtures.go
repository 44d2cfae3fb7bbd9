package testutil

import (
	"time"

	"payment-confirmation/internal/domain/action"
	"payment-confirmation/internal/domain/member"
	"payment-confirmation/internal/domain/payment"

	"github.com/google/uuid"
)

func NewTestStatus(id string, state payment.State) *payment.Status {
	return &payment.Status{
		ID:         id,
		State:      state,
		ObservedAt: time.Now(),
	}
}

func NewTestAction(kind action.Kind, paymentReference string, payload map[string]any) *action.PendingAction {
	a, err := action.New(kind, paymentReference, payload)
	if err != nil {
		panic(err)
	}
	return a
}

func NewTestPlan(cycle member.Cycle, priceCents int64) *member.Plan {
	return &member.Plan{
		ID:         uuid.New(),
		Name:       "test plan",
		Cycle:      cycle,
		PriceCents: priceCents,
		CreatedAt:  time.Now(),
	}
}

func NewTestProfile(email string) *member.Profile {
	return &member.Profile{
		ID:         uuid.New(),
		Email:      email,
		FullName:   "Test Member",
		MemberType: "standard",
		Status:     "pending_payment",
		CreatedAt:  time.Now(),
	}
}

func UUIDPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

func KindPtr(k action.Kind) *action.Kind {
	return &k
}
