package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"payment-confirmation/internal/domain/payment"
	"payment-confirmation/internal/infrastructure/config"
	"payment-confirmation/internal/poller"

	"github.com/go-chi/chi/v5"
)

// PollController handles payment status polling requests. Each request
// spawns one poller through the registry and blocks until its outcome or the
// handler's own outer deadline.
type PollController struct {
	registry *poller.Registry
	cfg      config.PollConfig
}

// NewPollController creates a new PollController.
func NewPollController(registry *poller.Registry, cfg config.PollConfig) *PollController {
	return &PollController{registry: registry, cfg: cfg}
}

// Poll handles POST /poll-payment-status
func (h *PollController) Poll(w http.ResponseWriter, r *http.Request) {
	var req PollRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	timeout := secondsOrDefault(req.Timeout, h.cfg.DefaultTimeout)
	if h.cfg.MaxTimeout > 0 && timeout > h.cfg.MaxTimeout {
		timeout = h.cfg.MaxTimeout
	}
	interval := secondsOrDefault(req.Interval, h.cfg.DefaultInterval)
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = h.cfg.DefaultMaxAttempts
	}

	// The handler's deadline strictly exceeds the poll's so the poll can
	// resolve with its own timeout outcome; on expiry the in-flight query is
	// aborted through the context.
	ctx, cancel := context.WithTimeout(r.Context(), timeout+h.cfg.HandlerGrace)
	defer cancel()

	outcome := h.registry.Poll(ctx, poller.Request{
		PaymentID:   req.PaymentID,
		Timeout:     timeout,
		Interval:    interval,
		MaxAttempts: maxAttempts,
	})

	writeJSON(w, pollStatusCode(ctx, outcome), pollResponse(outcome))
}

// ListActive handles GET /poll-payment-status/active
func (h *PollController) ListActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"active": h.registry.ListActive(),
	})
}

// Cancel handles DELETE /poll-payment-status/{paymentId}
func (h *PollController) Cancel(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")
	if paymentID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "paymentId is required", Code: "invalid_input"})
		return
	}
	h.registry.CancelPoll(paymentID)
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": paymentID})
}

func pollResponse(o poller.Outcome) *PollResponse {
	resp := FromOutcome(o)
	if o.Status != nil && o.Status.State == payment.StateRefused {
		resp.Error = "Pagamento recusado"
	}
	return resp
}

func pollStatusCode(ctx context.Context, o poller.Outcome) int {
	switch {
	case o.Success:
		return http.StatusOK
	case o.Status != nil && o.Status.State == payment.StateRefused:
		return http.StatusPaymentRequired
	case o.TimedOut:
		return http.StatusRequestTimeout
	case o.Cancelled:
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return http.StatusRequestTimeout
		}
		return http.StatusConflict
	case o.Status != nil:
		// Unexpected terminal state (e.g. CANCELLED at the gateway).
		return http.StatusBadRequest
	case o.Err == "max attempts reached":
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func secondsOrDefault(seconds float64, def time.Duration) time.Duration {
	if seconds <= 0 {
		return def
	}
	return time.Duration(seconds * float64(time.Second))
}
