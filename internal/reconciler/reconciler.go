package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-confirmation/internal/domain/action"
	domainErrors "payment-confirmation/internal/domain/errors"
	"payment-confirmation/internal/domain/payment"
	"payment-confirmation/internal/gateway"
	"payment-confirmation/internal/infrastructure/observability"
	"payment-confirmation/pkg/retry"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TransactionManager runs a function inside a database transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker guards one action against concurrent execution across instances.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockerFactory builds a Locker for a key. A nil factory disables locking.
type LockerFactory func(key string) Locker

// RetryResult reports one attempted pending action in a reconciliation pass.
type RetryResult struct {
	ActionID uuid.UUID   `json:"action_id"`
	Kind     action.Kind `json:"kind"`
	Success  bool        `json:"success"`
	Error    string      `json:"error,omitempty"`
}

// Reconciler drains the pending-action store, attempting each action exactly
// once per pass. It never re-applies an action whose effect is already
// visible in the system of record, and individual failures never abort a
// batch.
type Reconciler struct {
	store     action.Repository
	source    gateway.StatusSource
	tx        TransactionManager
	executors map[action.Kind]Executor
	lockFor   LockerFactory
	retryCfg  retry.Config
	batchSize int
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// Options configures a Reconciler.
type Options struct {
	// BatchSize bounds how many actions one RetryAll pass lists.
	BatchSize int
	// GatewayRetry is the backoff applied to the confirmed-payment re-check
	// when the gateway fails transiently.
	GatewayRetry retry.Config
	// LockFor, when set, serializes execution per action across instances.
	LockFor LockerFactory
}

// New creates a Reconciler with the given executors.
func New(
	store action.Repository,
	source gateway.StatusSource,
	tx TransactionManager,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	opts Options,
	executors ...Executor,
) *Reconciler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.GatewayRetry.MaxAttempts == 0 {
		opts.GatewayRetry = retry.Config{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		}
	}

	byKind := make(map[action.Kind]Executor, len(executors))
	for _, e := range executors {
		byKind[e.Kind()] = e
	}

	return &Reconciler{
		store:     store,
		source:    source,
		tx:        tx,
		executors: byKind,
		lockFor:   opts.LockFor,
		retryCfg:  opts.GatewayRetry,
		batchSize: opts.BatchSize,
		logger:    logger,
		metrics:   metrics,
	}
}

// RetryAll attempts every unresolved action of the given kind (all kinds when
// nil), returning exactly one RetryResult per attempted action.
func (r *Reconciler) RetryAll(ctx context.Context, kind *action.Kind) ([]RetryResult, error) {
	start := time.Now()

	actions, err := r.store.ListUnresolved(ctx, action.ListFilter{Kind: kind, Limit: r.batchSize})
	if err != nil {
		return nil, fmt.Errorf("list unresolved actions: %w", err)
	}

	results := make([]RetryResult, 0, len(actions))
	for _, a := range actions {
		results = append(results, r.attempt(ctx, a))
	}

	label := "all"
	if kind != nil {
		label = string(*kind)
	}
	r.metrics.ReconcilePassDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	r.refreshUnresolvedGauge(ctx)

	r.logger.Info().
		Str("kind", label).
		Int("attempted", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Reconciliation pass finished")

	return results, nil
}

// RetryOne attempts a single operator-selected action.
func (r *Reconciler) RetryOne(ctx context.Context, actionID uuid.UUID) (RetryResult, error) {
	a, err := r.store.GetByID(ctx, actionID)
	if err != nil {
		return RetryResult{}, err
	}
	if a.Resolved() {
		// Already handled; nothing to re-apply.
		return RetryResult{ActionID: a.ID, Kind: a.Kind, Success: true}, nil
	}
	res := r.attempt(ctx, a)
	r.refreshUnresolvedGauge(ctx)
	return res, nil
}

// Stats returns the action counts for operational visibility.
func (r *Reconciler) Stats(ctx context.Context) (action.Counts, error) {
	return r.store.CountByStatus(ctx)
}

// attempt runs one action to success or recorded failure. The effect check
// and the payment re-check guard against a webhook completing the same
// action between enqueue and retry.
func (r *Reconciler) attempt(ctx context.Context, a *action.PendingAction) RetryResult {
	res := RetryResult{ActionID: a.ID, Kind: a.Kind}

	if r.lockFor != nil {
		lock := r.lockFor("action:" + a.ID.String())
		acquired, err := lock.Acquire(ctx)
		if err != nil || !acquired {
			// Another instance is working on this action; do not record an
			// attempt against it.
			res.Error = domainErrors.ErrLockAcquisitionFailed.Error()
			return res
		}
		defer lock.Release(ctx)
	}

	exec, ok := r.executors[a.Kind]
	if !ok {
		return r.fail(ctx, a, res, domainErrors.ErrUnknownActionKind)
	}

	st, err := retry.DoWithResult(ctx, r.retryCfg, func() (*payment.Status, error) {
		return r.source.GetPaymentStatus(ctx, a.PaymentReference)
	})
	if err != nil {
		return r.fail(ctx, a, res, fmt.Errorf("re-check payment status: %w", err))
	}
	if !st.State.IsSuccess() {
		return r.fail(ctx, a, res, fmt.Errorf("%w: %s", domainErrors.ErrPaymentNotConfirmed, st.State))
	}

	exists, err := exec.EffectExists(ctx, a)
	if err != nil {
		return r.fail(ctx, a, res, fmt.Errorf("check effect exists: %w", err))
	}
	if exists {
		if err := r.store.MarkResolved(ctx, a.ID); err != nil && !errors.Is(err, domainErrors.ErrActionAlreadyResolved) {
			return r.fail(ctx, a, res, err)
		}
		r.metrics.ActionRetries.WithLabelValues(string(a.Kind), "already_applied").Inc()
		res.Success = true
		return res
	}

	err = r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := exec.Execute(txCtx, a); err != nil {
			return err
		}
		return r.store.MarkResolved(txCtx, a.ID)
	})
	if err != nil {
		return r.fail(ctx, a, res, err)
	}

	r.metrics.ActionRetries.WithLabelValues(string(a.Kind), "success").Inc()
	r.logger.Info().
		Str("action_id", a.ID.String()).
		Str("kind", string(a.Kind)).
		Str("payment_reference", a.PaymentReference).
		Msg("Pending action resolved")
	res.Success = true
	return res
}

// fail records the attempt failure and leaves the action queued. Even a
// non-retryable executor error keeps the action stored: manual intervention,
// not deletion, is the recovery path for a paid-but-unactivated action.
func (r *Reconciler) fail(ctx context.Context, a *action.PendingAction, res RetryResult, cause error) RetryResult {
	res.Success = false
	res.Error = cause.Error()

	if err := r.store.RecordAttemptFailure(ctx, a.ID, cause.Error()); err != nil {
		r.logger.Error().Err(err).Str("action_id", a.ID.String()).Msg("Failed to record attempt failure")
	}
	r.metrics.ActionRetries.WithLabelValues(string(a.Kind), "failure").Inc()
	r.logger.Warn().Err(cause).
		Str("action_id", a.ID.String()).
		Str("kind", string(a.Kind)).
		Int("attempts", a.Attempts+1).
		Msg("Pending action attempt failed")
	return res
}

func (r *Reconciler) refreshUnresolvedGauge(ctx context.Context) {
	counts, err := r.store.CountByStatus(ctx)
	if err != nil {
		return
	}
	r.metrics.UnresolvedActions.Set(float64(counts.Unresolved))
}
