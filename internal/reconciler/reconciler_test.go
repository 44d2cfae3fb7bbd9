package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"payment-confirmation/internal/domain/action"
	domainErrors "payment-confirmation/internal/domain/errors"
	"payment-confirmation/internal/domain/member"
	"payment-confirmation/internal/domain/payment"
	"payment-confirmation/internal/gateway"
	"payment-confirmation/internal/infrastructure/observability"
	"payment-confirmation/internal/testutil"
	"payment-confirmation/pkg/retry"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:  1,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1.0,
	}
}

type fixture struct {
	actions *testutil.MockActionRepository
	members *testutil.MockMemberRepository
	source  *gateway.MockSource
	rec     *Reconciler
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	actions := testutil.NewMockActionRepository()
	members := testutil.NewMockMemberRepository()
	source := gateway.NewMockSource()
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())

	if opts.GatewayRetry.MaxAttempts == 0 {
		opts.GatewayRetry = fastRetry()
	}

	rec := New(
		actions,
		source,
		testutil.NewMockTransactionManager(),
		zerolog.Nop(),
		metrics,
		opts,
		NewSubscriptionExecutor(members),
		NewAccountCompletionExecutor(members),
	)
	return &fixture{actions: actions, members: members, source: source, rec: rec}
}

func subscriptionAction(f *fixture, ref string) *action.PendingAction {
	plan := testutil.NewTestPlan(member.CycleMonthly, 4990)
	f.members.AddPlan(plan)
	a := testutil.NewTestAction(action.KindSubscription, ref, map[string]any{
		"profile_id": uuid.New().String(),
		"plan_id":    plan.ID.String(),
	})
	f.actions.AddAction(a)
	return a
}

func TestReconciler_ResolvesSubscriptionAction(t *testing.T) {
	f := newFixture(t, Options{})
	a := subscriptionAction(f, "pay-101")
	f.source.Script(payment.StateConfirmed)

	results, err := f.rec.RetryAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)

	assert.True(t, f.actions.GetAction(a.ID).Resolved())
	sub := f.members.GetSubscription("pay-101")
	require.NotNil(t, sub)
	assert.Equal(t, "active", sub.Status)
}

func TestReconciler_ReceivedCountsAsConfirmed(t *testing.T) {
	f := newFixture(t, Options{})
	a := subscriptionAction(f, "pay-102")
	f.source.Script(payment.StateReceived)

	results, err := f.rec.RetryAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.True(t, f.actions.GetAction(a.ID).Resolved())
}

func TestReconciler_EffectAlreadyApplied(t *testing.T) {
	f := newFixture(t, Options{})
	a := subscriptionAction(f, "pay-103")
	f.source.Script(payment.StateConfirmed)

	// A racing webhook already activated the subscription.
	require.NoError(t, f.members.CreateSubscription(context.Background(), &member.Subscription{
		ID:               uuid.New(),
		PaymentReference: "pay-103",
		Status:           "active",
	}))

	results, err := f.rec.RetryAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)

	// Resolved without re-applying: still exactly one subscription.
	assert.True(t, f.actions.GetAction(a.ID).Resolved())
	assert.Equal(t, 0, f.actions.GetAction(a.ID).Attempts)
}

func TestReconciler_PaymentNotConfirmedRecordsFailure(t *testing.T) {
	f := newFixture(t, Options{})
	a := subscriptionAction(f, "pay-104")
	f.source.Script(payment.StatePending)

	results, err := f.rec.RetryAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "payment not confirmed")

	stored := f.actions.GetAction(a.ID)
	assert.False(t, stored.Resolved())
	assert.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.LastError)
}

func TestReconciler_GatewayErrorRecordsFailure(t *testing.T) {
	f := newFixture(t, Options{})
	a := subscriptionAction(f, "pay-105")
	f.source.ScriptError(errors.New("gateway down"))

	results, err := f.rec.RetryAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)

	stored := f.actions.GetAction(a.ID)
	assert.False(t, stored.Resolved())
	assert.Equal(t, 1, stored.Attempts)
}

func TestReconciler_GatewayRetriesTransientFailure(t *testing.T) {
	f := newFixture(t, Options{GatewayRetry: retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}})
	a := subscriptionAction(f, "pay-106")
	f.source.ScriptError(errors.New("blip")).Script(payment.StateConfirmed)

	results, err := f.rec.RetryAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.True(t, f.actions.GetAction(a.ID).Resolved())
}

func TestReconciler_ExecutorFailureKeepsActionQueued(t *testing.T) {
	f := newFixture(t, Options{})
	// Missing plan payload key makes the executor fail.
	a := testutil.NewTestAction(action.KindSubscription, "pay-107", map[string]any{
		"profile_id": uuid.New().String(),
	})
	f.actions.AddAction(a)
	f.source.Script(payment.StateConfirmed)

	results, err := f.rec.RetryAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)

	stored := f.actions.GetAction(a.ID)
	assert.False(t, stored.Resolved())
	assert.Equal(t, 1, stored.Attempts)
}

func TestReconciler_FailedActionNeverDeleted(t *testing.T) {
	f := newFixture(t, Options{})
	a := subscriptionAction(f, "pay-108")
	f.source.Script(payment.StatePending)

	for i := 0; i < a.MaxAttempts; i++ {
		_, err := f.rec.RetryAll(context.Background(), nil)
		require.NoError(t, err)
	}

	stored := f.actions.GetAction(a.ID)
	require.NotNil(t, stored, "exhausted action must stay stored")
	assert.Equal(t, action.StatusFailed, stored.Status)
	assert.True(t, stored.Exhausted())
}

func TestReconciler_LockContentionSkipsAttempt(t *testing.T) {
	lock := &testutil.MockLocker{AcquireResult: false}
	f := newFixture(t, Options{
		LockFor: func(key string) Locker { return lock },
	})
	a := subscriptionAction(f, "pay-109")
	f.source.Script(payment.StateConfirmed)

	results, err := f.rec.RetryAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, domainErrors.ErrLockAcquisitionFailed.Error(), results[0].Error)

	// Contention is not an attempt against the action.
	assert.Equal(t, 0, f.actions.GetAction(a.ID).Attempts)
	assert.Equal(t, 1, lock.Acquired)
}

func TestReconciler_LockReleasedAfterAttempt(t *testing.T) {
	lock := &testutil.MockLocker{AcquireResult: true}
	f := newFixture(t, Options{
		LockFor: func(key string) Locker { return lock },
	})
	subscriptionAction(f, "pay-110")
	f.source.Script(payment.StateConfirmed)

	_, err := f.rec.RetryAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, lock.Acquired)
	assert.Equal(t, 1, lock.Released)
}

func TestReconciler_RetryAllKindFilter(t *testing.T) {
	f := newFixture(t, Options{})
	subscriptionAction(f, "pay-111")
	other := testutil.NewTestAction(action.KindAccountCompletion, "pay-112", map[string]any{
		"email":       "m@example.com",
		"full_name":   "M Example",
		"member_type": "standard",
	})
	f.actions.AddAction(other)
	f.source.Script(payment.StateConfirmed)

	kind := action.KindSubscription
	results, err := f.rec.RetryAll(context.Background(), &kind)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, action.KindSubscription, results[0].Kind)
	assert.False(t, f.actions.GetAction(other.ID).Resolved())
}

func TestReconciler_RetryOne(t *testing.T) {
	f := newFixture(t, Options{})
	a := subscriptionAction(f, "pay-113")
	f.source.Script(payment.StateConfirmed)

	res, err := f.rec.RetryOne(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, f.actions.GetAction(a.ID).Resolved())
}

func TestReconciler_RetryOneAlreadyResolved(t *testing.T) {
	f := newFixture(t, Options{})
	a := subscriptionAction(f, "pay-114")
	now := time.Now()
	a.ResolvedAt = &now
	a.Status = action.StatusResolved

	res, err := f.rec.RetryOne(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	// No gateway call for an already-resolved action.
	assert.Equal(t, 0, f.source.CallCount())
}

func TestReconciler_RetryOneUnknownID(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.rec.RetryOne(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domainErrors.ErrActionNotFound)
}

func TestReconciler_UnknownKindRecordsFailure(t *testing.T) {
	actions := testutil.NewMockActionRepository()
	source := gateway.NewMockSource().Script(payment.StateConfirmed)
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())

	// No executors registered.
	rec := New(actions, source, testutil.NewMockTransactionManager(), zerolog.Nop(), metrics,
		Options{GatewayRetry: fastRetry()})

	a := testutil.NewTestAction(action.KindSubscription, "pay-115", nil)
	actions.AddAction(a)

	results, err := rec.RetryAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, domainErrors.ErrUnknownActionKind.Error())
}

func TestReconciler_Stats(t *testing.T) {
	f := newFixture(t, Options{})
	subscriptionAction(f, "pay-116")
	f.source.Script(payment.StateConfirmed)

	counts, err := f.rec.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Unresolved)

	_, err = f.rec.RetryAll(context.Background(), nil)
	require.NoError(t, err)

	counts, err = f.rec.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Unresolved)
	assert.Equal(t, 1, counts.Resolved)
}
