package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"payment-confirmation/internal/domain/payment"
	"payment-confirmation/internal/gateway"
	"payment-confirmation/internal/infrastructure/config"
	"payment-confirmation/internal/infrastructure/observability"
	"payment-confirmation/internal/poller"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPollConfig() config.PollConfig {
	return config.PollConfig{
		DefaultTimeout:     300 * time.Millisecond,
		DefaultInterval:    20 * time.Millisecond,
		DefaultMaxAttempts: 10,
		HandlerGrace:       200 * time.Millisecond,
		MaxTimeout:         2 * time.Second,
	}
}

func newPollServer(t *testing.T, source gateway.StatusSource) (*chi.Mux, *poller.Registry) {
	t.Helper()
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	registry := poller.NewRegistry(source, zerolog.Nop(), metrics)
	t.Cleanup(registry.CancelAll)

	h := NewPollController(registry, testPollConfig())
	r := chi.NewRouter()
	r.Post("/poll-payment-status", h.Poll)
	r.Get("/poll-payment-status/active", h.ListActive)
	r.Delete("/poll-payment-status/{paymentId}", h.Cancel)
	return r, registry
}

func doPoll(t *testing.T, r http.Handler, body string) (*httptest.ResponseRecorder, PollResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/poll-payment-status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp PollResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestPollEndpoint_Confirmed(t *testing.T) {
	source := gateway.NewMockSource().Script(payment.StatePending, payment.StateConfirmed)
	r, _ := newPollServer(t, source)

	w, resp := doPoll(t, r, `{"paymentId": "pay-1"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "CONFIRMED", resp.FinalStatus)
	assert.Equal(t, 2, resp.Attempts)
	require.NotNil(t, resp.Status)
	assert.Equal(t, "CONFIRMED", resp.Status.Status)
}

func TestPollEndpoint_Refused(t *testing.T) {
	source := gateway.NewMockSource().Script(payment.StateRefused)
	r, _ := newPollServer(t, source)

	w, resp := doPoll(t, r, `{"paymentId": "pay-2"}`)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "Pagamento recusado", resp.Error)
	assert.Equal(t, "REFUSED", resp.FinalStatus)
}

func TestPollEndpoint_Timeout(t *testing.T) {
	r, _ := newPollServer(t, gateway.NewMockSource())

	w, resp := doPoll(t, r, `{"paymentId": "pay-3", "timeout": 0.1, "interval": 0.02}`)

	assert.Equal(t, http.StatusRequestTimeout, w.Code)
	assert.False(t, resp.Success)
	assert.True(t, resp.TimedOut)
	assert.Equal(t, "TIMEOUT", resp.FinalStatus)
}

func TestPollEndpoint_UnexpectedState(t *testing.T) {
	source := gateway.NewMockSource().Script(payment.StateCancelled)
	r, _ := newPollServer(t, source)

	w, resp := doPoll(t, r, `{"paymentId": "pay-4"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unexpected state")
}

func TestPollEndpoint_MaxAttemptsExhausted(t *testing.T) {
	r, _ := newPollServer(t, gateway.NewMockSource())

	w, resp := doPoll(t, r, `{"paymentId": "pay-5", "timeout": 1, "interval": 0.01, "maxAttempts": 2}`)

	assert.Equal(t, http.StatusRequestTimeout, w.Code)
	assert.False(t, resp.TimedOut)
	assert.Equal(t, 2, resp.Attempts)
}

func TestPollEndpoint_MissingPaymentID(t *testing.T) {
	r, _ := newPollServer(t, gateway.NewMockSource())

	w, _ := doPoll(t, r, `{"timeout": 1}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "validation_error", errResp.Code)
}

func TestPollEndpoint_InvalidJSON(t *testing.T) {
	r, _ := newPollServer(t, gateway.NewMockSource())

	w, _ := doPoll(t, r, `{not json`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPollEndpoint_MethodNotAllowed(t *testing.T) {
	r, _ := newPollServer(t, gateway.NewMockSource())

	req := httptest.NewRequest(http.MethodGet, "/poll-payment-status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestPollEndpoint_TimeoutClampedToMax(t *testing.T) {
	source := gateway.NewMockSource().Script(payment.StateConfirmed)
	r, _ := newPollServer(t, source)

	// Requested timeout above max_timeout still succeeds; the clamp only
	// bounds the window.
	w, resp := doPoll(t, r, `{"paymentId": "pay-6", "timeout": 60}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}

func TestActiveEndpoint(t *testing.T) {
	r, registry := newPollServer(t, gateway.NewMockSource())

	req := httptest.NewRequest(http.MethodGet, "/poll-payment-status/active", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Active []string `json:"active"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Active)
	assert.Empty(t, registry.ListActive())
}

func TestCancelEndpoint_NoActivePoll(t *testing.T) {
	r, _ := newPollServer(t, gateway.NewMockSource())

	req := httptest.NewRequest(http.MethodDelete, "/poll-payment-status/pay-7", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Cancelling an id with no active poll is a no-op.
	assert.Equal(t, http.StatusOK, w.Code)
}
