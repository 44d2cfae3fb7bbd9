package testutil

import (
	"context"
	"sync"
	"time"

	"payment-confirmation/internal/domain/action"
	domainErrors "payment-confirmation/internal/domain/errors"
	"payment-confirmation/internal/domain/member"

	"github.com/google/uuid"
)

// --- Action Repository Mock ---

// MockActionRepository is an in-memory implementation of action.Repository.
// It enforces the same one-unresolved-per-(kind, reference) rule as the
// Postgres store.
type MockActionRepository struct {
	mu      sync.Mutex
	actions map[uuid.UUID]*action.PendingAction

	StoreFunc                func(ctx context.Context, a *action.PendingAction) error
	GetByIDFunc              func(ctx context.Context, id uuid.UUID) (*action.PendingAction, error)
	ListUnresolvedFunc       func(ctx context.Context, filter action.ListFilter) ([]*action.PendingAction, error)
	MarkResolvedFunc         func(ctx context.Context, id uuid.UUID) error
	RecordAttemptFailureFunc func(ctx context.Context, id uuid.UUID, cause string) error
	CountByStatusFunc        func(ctx context.Context) (action.Counts, error)
}

func NewMockActionRepository() *MockActionRepository {
	return &MockActionRepository{
		actions: make(map[uuid.UUID]*action.PendingAction),
	}
}

// AddAction pre-populates the mock with an action.
func (m *MockActionRepository) AddAction(a *action.PendingAction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[a.ID] = a
}

// GetAction returns the stored action (test helper, no context needed).
func (m *MockActionRepository) GetAction(id uuid.UUID) *action.PendingAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actions[id]
}

func (m *MockActionRepository) Store(ctx context.Context, a *action.PendingAction) error {
	if m.StoreFunc != nil {
		return m.StoreFunc(ctx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.actions {
		if existing.Kind == a.Kind && existing.PaymentReference == a.PaymentReference && !existing.Resolved() {
			return domainErrors.ErrDuplicateAction
		}
	}
	m.actions[a.ID] = a
	return nil
}

func (m *MockActionRepository) GetByID(ctx context.Context, id uuid.UUID) (*action.PendingAction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return nil, domainErrors.ErrActionNotFound
	}
	return a, nil
}

func (m *MockActionRepository) ListUnresolved(ctx context.Context, filter action.ListFilter) ([]*action.PendingAction, error) {
	if m.ListUnresolvedFunc != nil {
		return m.ListUnresolvedFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*action.PendingAction, 0)
	for _, a := range m.actions {
		if a.Resolved() {
			continue
		}
		if a.Status == action.StatusFailed && !filter.IncludeFailed {
			continue
		}
		if filter.Kind != nil && a.Kind != *filter.Kind {
			continue
		}
		result = append(result, a)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

func (m *MockActionRepository) MarkResolved(ctx context.Context, id uuid.UUID) error {
	if m.MarkResolvedFunc != nil {
		return m.MarkResolvedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return domainErrors.ErrActionNotFound
	}
	if a.Resolved() {
		return domainErrors.ErrActionAlreadyResolved
	}
	now := time.Now()
	a.ResolvedAt = &now
	a.Status = action.StatusResolved
	return nil
}

func (m *MockActionRepository) RecordAttemptFailure(ctx context.Context, id uuid.UUID, cause string) error {
	if m.RecordAttemptFailureFunc != nil {
		return m.RecordAttemptFailureFunc(ctx, id, cause)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return domainErrors.ErrActionNotFound
	}
	a.Attempts++
	a.LastError = &cause
	if a.Attempts >= a.MaxAttempts {
		a.Status = action.StatusFailed
	}
	return nil
}

func (m *MockActionRepository) CountByStatus(ctx context.Context) (action.Counts, error) {
	if m.CountByStatusFunc != nil {
		return m.CountByStatusFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := action.Counts{ByKind: make(map[action.Kind]int)}
	for _, a := range m.actions {
		switch {
		case a.Resolved():
			counts.Resolved++
		case a.Status == action.StatusFailed:
			counts.Failed++
			counts.ByKind[a.Kind]++
		default:
			counts.Unresolved++
			counts.ByKind[a.Kind]++
		}
	}
	return counts, nil
}

// --- Member Repository Mock ---

// MockMemberRepository is an in-memory implementation of member.Repository.
type MockMemberRepository struct {
	mu            sync.Mutex
	profiles      map[uuid.UUID]*member.Profile
	plans         map[uuid.UUID]*member.Plan
	subscriptions map[string]*member.Subscription

	GetProfileByEmailFunc  func(ctx context.Context, email string) (*member.Profile, error)
	CreateProfileFunc      func(ctx context.Context, p *member.Profile) error
	CompleteProfileFunc    func(ctx context.Context, id uuid.UUID) error
	GetPlanFunc            func(ctx context.Context, id uuid.UUID) (*member.Plan, error)
	SubscriptionExistsFunc func(ctx context.Context, paymentReference string) (bool, error)
	CreateSubscriptionFunc func(ctx context.Context, s *member.Subscription) error
}

func NewMockMemberRepository() *MockMemberRepository {
	return &MockMemberRepository{
		profiles:      make(map[uuid.UUID]*member.Profile),
		plans:         make(map[uuid.UUID]*member.Plan),
		subscriptions: make(map[string]*member.Subscription),
	}
}

// AddProfile pre-populates the mock with a profile.
func (m *MockMemberRepository) AddProfile(p *member.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

// AddPlan pre-populates the mock with a plan.
func (m *MockMemberRepository) AddPlan(p *member.Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ID] = p
}

// GetSubscription returns the stored subscription for a payment reference.
func (m *MockMemberRepository) GetSubscription(paymentReference string) *member.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions[paymentReference]
}

// GetProfile returns the stored profile (test helper, no context needed).
func (m *MockMemberRepository) GetProfile(id uuid.UUID) *member.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[id]
}

func (m *MockMemberRepository) GetProfileByEmail(ctx context.Context, email string) (*member.Profile, error) {
	if m.GetProfileByEmailFunc != nil {
		return m.GetProfileByEmailFunc(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, nil
}

func (m *MockMemberRepository) CreateProfile(ctx context.Context, p *member.Profile) error {
	if m.CreateProfileFunc != nil {
		return m.CreateProfileFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
	return nil
}

func (m *MockMemberRepository) CompleteProfile(ctx context.Context, id uuid.UUID) error {
	if m.CompleteProfileFunc != nil {
		return m.CompleteProfileFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return domainErrors.NewDomainError("profile_not_found", "profile not found", nil)
	}
	now := time.Now()
	p.Status = "active"
	p.PaymentConfirmedAt = &now
	return nil
}

func (m *MockMemberRepository) GetPlan(ctx context.Context, id uuid.UUID) (*member.Plan, error) {
	if m.GetPlanFunc != nil {
		return m.GetPlanFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, domainErrors.NewDomainError("plan_not_found", "plan not found", nil)
	}
	return p, nil
}

func (m *MockMemberRepository) SubscriptionExists(ctx context.Context, paymentReference string) (bool, error) {
	if m.SubscriptionExistsFunc != nil {
		return m.SubscriptionExistsFunc(ctx, paymentReference)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subscriptions[paymentReference]
	return ok, nil
}

func (m *MockMemberRepository) CreateSubscription(ctx context.Context, s *member.Subscription) error {
	if m.CreateSubscriptionFunc != nil {
		return m.CreateSubscriptionFunc(ctx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[s.PaymentReference] = s
	return nil
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Locker Mock ---

// MockLocker is a Locker whose outcome is scripted per test.
type MockLocker struct {
	AcquireResult bool
	AcquireErr    error
	Acquired      int
	Released      int
}

func (l *MockLocker) Acquire(ctx context.Context) (bool, error) {
	l.Acquired++
	return l.AcquireResult, l.AcquireErr
}

func (l *MockLocker) Release(ctx context.Context) error {
	l.Released++
	return nil
}
