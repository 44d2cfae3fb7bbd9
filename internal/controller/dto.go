package controller

import (
	"time"

	"payment-confirmation/internal/domain/action"
	"payment-confirmation/internal/domain/payment"
	"payment-confirmation/internal/poller"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (seconds as numbers, string kinds,
// validation tags). Controllers convert them to core types before calling
// business logic.

// PollRequest holds the input for polling a payment's status.
type PollRequest struct {
	PaymentID   string  `json:"paymentId" validate:"required"`
	Timeout     float64 `json:"timeout" validate:"gte=0,lte=60"`
	Interval    float64 `json:"interval" validate:"gte=0,lte=30"`
	MaxAttempts int     `json:"maxAttempts" validate:"gte=0,lte=100"`
}

// EnqueueActionRequest holds the input for queuing a pending action.
type EnqueueActionRequest struct {
	Kind             string         `json:"kind" validate:"required,oneof=subscription account_completion"`
	PaymentReference string         `json:"paymentReference" validate:"required"`
	Payload          map[string]any `json:"payload"`
}

// --- Response DTOs ---

// StatusResponse represents a payment status snapshot in API responses.
type StatusResponse struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	ObservedAt time.Time      `json:"observedAt"`
	Value      float64        `json:"value,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// PollResponse represents a completed poll in API responses.
type PollResponse struct {
	Success     bool            `json:"success"`
	Status      *StatusResponse `json:"status,omitempty"`
	Error       string          `json:"error,omitempty"`
	TimedOut    bool            `json:"timedOut,omitempty"`
	Attempts    int             `json:"attempts"`
	Duration    int64           `json:"duration"`
	FinalStatus string          `json:"finalStatus"`
}

// ActionResponse represents a pending action in API responses.
type ActionResponse struct {
	ID               string         `json:"id"`
	Kind             string         `json:"kind"`
	PaymentReference string         `json:"paymentReference"`
	Payload          map[string]any `json:"payload,omitempty"`
	Status           string         `json:"status"`
	Attempts         int            `json:"attempts"`
	MaxAttempts      int            `json:"maxAttempts"`
	LastError        *string        `json:"lastError,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	ResolvedAt       *time.Time     `json:"resolvedAt,omitempty"`
}

// StatsResponse represents action counts in API responses.
type StatsResponse struct {
	Unresolved int            `json:"unresolved"`
	Resolved   int            `json:"resolved"`
	Failed     int            `json:"failed"`
	ByKind     map[string]int `json:"byKind"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromStatus converts a status snapshot to API response.
func FromStatus(s *payment.Status) *StatusResponse {
	if s == nil {
		return nil
	}
	return &StatusResponse{
		ID:         s.ID,
		Status:     string(s.State),
		ObservedAt: s.ObservedAt,
		Value:      centsToFloat(s.AmountCents),
		Metadata:   s.Metadata,
	}
}

// FromOutcome converts a poll outcome to API response.
func FromOutcome(o poller.Outcome) *PollResponse {
	return &PollResponse{
		Success:     o.Success,
		Status:      FromStatus(o.Status),
		Error:       o.Err,
		TimedOut:    o.TimedOut,
		Attempts:    o.Attempts,
		Duration:    o.Duration.Milliseconds(),
		FinalStatus: o.FinalStatus(),
	}
}

// FromAction converts a pending action to API response.
func FromAction(a *action.PendingAction) *ActionResponse {
	return &ActionResponse{
		ID:               a.ID.String(),
		Kind:             string(a.Kind),
		PaymentReference: a.PaymentReference,
		Payload:          a.Payload,
		Status:           string(a.Status),
		Attempts:         a.Attempts,
		MaxAttempts:      a.MaxAttempts,
		LastError:        a.LastError,
		CreatedAt:        a.CreatedAt,
		ResolvedAt:       a.ResolvedAt,
	}
}

// FromCounts converts action counts to API response.
func FromCounts(c action.Counts) *StatsResponse {
	byKind := make(map[string]int, len(c.ByKind))
	for k, n := range c.ByKind {
		byKind[string(k)] = n
	}
	return &StatsResponse{
		Unresolved: c.Unresolved,
		Resolved:   c.Resolved,
		Failed:     c.Failed,
		ByKind:     byKind,
	}
}

// centsToFloat converts cents to a float currency amount.
func centsToFloat(cents int64) float64 {
	return float64(cents) / 100.0
}
