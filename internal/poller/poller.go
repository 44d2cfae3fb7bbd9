package poller

import (
	"context"
	"fmt"
	"time"

	domainErrors "payment-confirmation/internal/domain/errors"
	"payment-confirmation/internal/domain/payment"
	"payment-confirmation/internal/gateway"

	"github.com/rs/zerolog"
)

const (
	DefaultTimeout     = 15 * time.Second
	DefaultInterval    = 1 * time.Second
	DefaultMaxAttempts = 15
)

// Request describes one bounded poll of a payment's status. It is owned
// exclusively by the Poller created for it.
type Request struct {
	PaymentID   string
	Timeout     time.Duration
	Interval    time.Duration
	MaxAttempts int
	// OnUpdate, when set, is invoked once per successful status query.
	OnUpdate func(payment.Status)
}

func (r *Request) applyDefaults() {
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}
	if r.Interval <= 0 {
		r.Interval = DefaultInterval
	}
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = DefaultMaxAttempts
	}
}

// Outcome is the single result of a poll lifecycle. Expected outcomes
// (terminal states, timeout, cancellation) are encoded here, never returned
// as errors.
type Outcome struct {
	Success   bool
	Status    *payment.Status
	Err       string
	TimedOut  bool
	Cancelled bool
	Attempts  int
	Duration  time.Duration
}

// FinalStatus summarizes the outcome for reporting.
func (o Outcome) FinalStatus() string {
	switch {
	case o.Success:
		return string(payment.StateConfirmed)
	case o.Cancelled:
		return "CANCELLED"
	case o.TimedOut:
		return "TIMEOUT"
	case o.Status != nil:
		return string(o.Status.State)
	default:
		return "ERROR"
	}
}

// Poller runs a bounded fixed-interval polling loop against a StatusSource
// for one payment. The interval between attempts is fixed regardless of
// whether an attempt succeeded, failed transiently, or returned a
// non-terminal status.
type Poller struct {
	req    Request
	source gateway.StatusSource
	logger zerolog.Logger
}

// New creates a Poller for the given request.
func New(req Request, source gateway.StatusSource, logger zerolog.Logger) *Poller {
	req.applyDefaults()
	return &Poller{req: req, source: source, logger: logger}
}

// Run executes the polling loop until a terminal outcome, timeout, attempt
// exhaustion, or cancellation. It always returns an Outcome; the only
// suspension point is the fixed-interval sleep, which observes ctx.
func (p *Poller) Run(ctx context.Context) Outcome {
	start := time.Now()
	attempts := 0

	outcome := func(o Outcome) Outcome {
		o.Attempts = attempts
		o.Duration = time.Since(start)
		return o
	}

	for {
		if ctx.Err() != nil {
			return outcome(Outcome{Cancelled: true, Err: domainErrors.ErrPollCancelled.Error()})
		}
		if time.Since(start) >= p.req.Timeout {
			return outcome(Outcome{TimedOut: true, Err: "timeout"})
		}
		if attempts >= p.req.MaxAttempts {
			return outcome(Outcome{Err: "max attempts reached"})
		}

		attempts++
		status, err := p.source.GetPaymentStatus(ctx, p.req.PaymentID)
		if err != nil {
			if ctx.Err() != nil {
				return outcome(Outcome{Cancelled: true, Err: domainErrors.ErrPollCancelled.Error()})
			}
			p.logger.Warn().Err(err).
				Str("payment_id", p.req.PaymentID).
				Int("attempt", attempts).
				Msg("Status query failed")

			// A transient failure keeps the cadence unless the remaining
			// budget cannot fit another interval.
			if time.Since(start) >= p.req.Timeout-p.req.Interval || attempts >= p.req.MaxAttempts {
				return outcome(Outcome{Err: err.Error()})
			}
			if cancelled := p.sleep(ctx); cancelled {
				return outcome(Outcome{Cancelled: true, Err: domainErrors.ErrPollCancelled.Error()})
			}
			continue
		}

		if p.req.OnUpdate != nil {
			p.req.OnUpdate(*status)
		}

		switch {
		case status.State.IsSuccess():
			return outcome(Outcome{Success: true, Status: status})
		case status.State == payment.StateRefused:
			return outcome(Outcome{Status: status, Err: domainErrors.ErrPaymentRefused.Error()})
		case status.State == payment.StatePending || status.State == payment.StateOverdue:
			if cancelled := p.sleep(ctx); cancelled {
				return outcome(Outcome{Cancelled: true, Err: domainErrors.ErrPollCancelled.Error()})
			}
		default:
			// CANCELLED or anything the state machine does not expect here.
			return outcome(Outcome{Status: status, Err: fmt.Sprintf("unexpected state: %s", status.State)})
		}
	}
}

// sleep waits exactly one interval, not adjusted by how long the preceding
// query took. Returns true if the context was cancelled during the wait.
func (p *Poller) sleep(ctx context.Context) bool {
	timer := time.NewTimer(p.req.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}
