package poller

import (
	"context"
	"sync"

	"payment-confirmation/internal/gateway"
	"payment-confirmation/internal/infrastructure/observability"

	"github.com/rs/zerolog"
)

// Registry tracks at most one active Poller per payment identifier. It is
// constructed once at process scope and passed to callers; it is the only
// component permitted to cancel a Poller.
type Registry struct {
	mu      sync.Mutex
	active  map[string]*entry
	source  gateway.StatusSource
	logger  zerolog.Logger
	metrics *observability.Metrics
}

type entry struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRegistry creates an empty poll registry.
func NewRegistry(source gateway.StatusSource, logger zerolog.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		active:  make(map[string]*entry),
		source:  source,
		logger:  logger,
		metrics: metrics,
	}
}

// StartPoll starts a poller for the request's payment id. If a poller is
// already active for that id it is cancelled and its termination awaited
// before the new poller issues its first query, upholding the at-most-one
// invariant. The returned channel receives exactly one Outcome.
func (r *Registry) StartPoll(ctx context.Context, req Request) <-chan Outcome {
	req.applyDefaults()

	pollCtx, cancel := context.WithCancel(ctx)
	e := &entry{cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	prev := r.active[req.PaymentID]
	r.active[req.PaymentID] = e
	r.mu.Unlock()

	if prev != nil {
		r.logger.Info().Str("payment_id", req.PaymentID).Msg("Superseding active poll")
		prev.cancel()
		<-prev.done
	}

	r.metrics.PollsStarted.Inc()
	r.metrics.ActivePolls.Inc()

	results := make(chan Outcome, 1)
	go func() {
		defer close(e.done)
		defer func() {
			r.mu.Lock()
			// The entry may already belong to a superseding poll.
			if r.active[req.PaymentID] == e {
				delete(r.active, req.PaymentID)
			}
			r.mu.Unlock()
			r.metrics.ActivePolls.Dec()
		}()

		outcome := New(req, r.source, r.logger).Run(pollCtx)
		cancel()

		r.metrics.PollsCompleted.WithLabelValues(outcome.FinalStatus()).Inc()
		r.metrics.PollAttempts.Observe(float64(outcome.Attempts))
		r.metrics.PollDuration.WithLabelValues(outcome.FinalStatus()).Observe(outcome.Duration.Seconds())

		r.logger.Info().
			Str("payment_id", req.PaymentID).
			Str("final_status", outcome.FinalStatus()).
			Int("attempts", outcome.Attempts).
			Dur("duration", outcome.Duration).
			Msg("Poll completed")

		results <- outcome
	}()

	return results
}

// Poll runs a poll to completion, blocking the caller.
func (r *Registry) Poll(ctx context.Context, req Request) Outcome {
	return <-r.StartPoll(ctx, req)
}

// CancelPoll signals cancellation to the active poller for the id, if any.
// The id leaves the active set immediately; the poller resolves its outcome
// with Cancelled set. Idempotent when no poll is active.
func (r *Registry) CancelPoll(paymentID string) {
	r.mu.Lock()
	e := r.active[paymentID]
	delete(r.active, paymentID)
	r.mu.Unlock()

	if e != nil {
		e.cancel()
	}
}

// CancelAll cancels every active poll.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.active))
	for id, e := range r.active {
		entries = append(entries, e)
		delete(r.active, id)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.cancel()
	}
}

// IsActive reports whether a poll is active for the payment id.
func (r *Registry) IsActive(paymentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[paymentID]
	return ok
}

// ListActive returns the payment ids with an active poll, for diagnostics.
func (r *Registry) ListActive() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	return ids
}
