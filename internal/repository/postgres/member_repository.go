package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-confirmation/internal/domain/member"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MemberRepository struct {
	pool *pgxpool.Pool
}

func NewMemberRepository(pool *pgxpool.Pool) *MemberRepository {
	return &MemberRepository{pool: pool}
}

func (r *MemberRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *MemberRepository) GetProfileByEmail(ctx context.Context, email string) (*member.Profile, error) {
	p := &member.Profile{}
	err := r.db(ctx).QueryRow(ctx,
		`SELECT id, email, full_name, document, phone, member_type, status, payment_confirmed_at, created_at
		 FROM member_profiles WHERE email = $1`, email,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.Document, &p.Phone, &p.MemberType, &p.Status, &p.PaymentConfirmedAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile by email: %w", err)
	}
	return p, nil
}

func (r *MemberRepository) CreateProfile(ctx context.Context, p *member.Profile) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO member_profiles (id, email, full_name, document, phone, member_type, status, payment_confirmed_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Email, p.FullName, p.Document, p.Phone, p.MemberType, p.Status, p.PaymentConfirmedAt, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *MemberRepository) CompleteProfile(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE member_profiles SET status = 'active', payment_confirmed_at = $1 WHERE id = $2`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("complete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete profile: profile %s not found", id)
	}
	return nil
}

func (r *MemberRepository) GetPlan(ctx context.Context, id uuid.UUID) (*member.Plan, error) {
	p := &member.Plan{}
	var cycle string
	err := r.db(ctx).QueryRow(ctx,
		`SELECT id, name, cycle, price_cents, created_at FROM subscription_plans WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &cycle, &p.PriceCents, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("plan %s not found", id)
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	p.Cycle = member.Cycle(cycle)
	return p, nil
}

func (r *MemberRepository) SubscriptionExists(ctx context.Context, paymentReference string) (bool, error) {
	var exists bool
	err := r.db(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM member_subscriptions WHERE payment_reference = $1)`,
		paymentReference,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check subscription exists: %w", err)
	}
	return exists, nil
}

func (r *MemberRepository) CreateSubscription(ctx context.Context, s *member.Subscription) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO member_subscriptions (id, profile_id, plan_id, status, payment_reference, started_at, next_billing_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.ProfileID, s.PlanID, s.Status, s.PaymentReference, s.StartedAt, s.NextBillingAt,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}
