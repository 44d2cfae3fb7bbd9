package poller

import (
	"context"
	"testing"
	"time"

	"payment-confirmation/internal/domain/payment"
	"payment-confirmation/internal/gateway"
	"payment-confirmation/internal/infrastructure/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(source gateway.StatusSource) *Registry {
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	return NewRegistry(source, zerolog.Nop(), metrics)
}

func slowRequest(id string) Request {
	return Request{
		PaymentID:   id,
		Timeout:     5 * time.Second,
		Interval:    20 * time.Millisecond,
		MaxAttempts: 100,
	}
}

func TestRegistry_PollBlocksUntilOutcome(t *testing.T) {
	source := gateway.NewMockSource().Script(
		payment.StatePending,
		payment.StateConfirmed,
	)
	r := newTestRegistry(source)

	outcome := r.Poll(context.Background(), slowRequest("pay-1"))

	assert.True(t, outcome.Success)
	assert.False(t, r.IsActive("pay-1"))
}

func TestRegistry_SupersedesActivePoll(t *testing.T) {
	source := gateway.NewMockSource()
	r := newTestRegistry(source)

	first := r.StartPoll(context.Background(), slowRequest("pay-2"))

	// Wait until the first poll has issued a query.
	require.Eventually(t, func() bool { return source.CallCount() > 0 }, time.Second, 5*time.Millisecond)

	// StartPoll returns only after the superseded poll has terminated, so
	// the confirmation scripted next is seen by the new poll alone.
	second := r.StartPoll(context.Background(), slowRequest("pay-2"))
	source.Script(payment.StateConfirmed)

	firstOutcome := <-first
	assert.True(t, firstOutcome.Cancelled, "superseded poll should resolve cancelled")

	secondOutcome := <-second
	assert.True(t, secondOutcome.Success)
	assert.False(t, r.IsActive("pay-2"))
}

func TestRegistry_SupersededPollStopsBeforeNewFirstQuery(t *testing.T) {
	source := gateway.NewMockSource()
	r := newTestRegistry(source)

	first := r.StartPoll(context.Background(), slowRequest("pay-3"))
	require.Eventually(t, func() bool { return source.CallCount() > 0 }, time.Second, 5*time.Millisecond)

	callsBefore := source.CallCount()
	second := r.StartPoll(context.Background(), slowRequest("pay-3"))
	source.Script(payment.StateConfirmed)

	// The first poll's outcome must be deliverable before the second's
	// first query; StartPoll waits for the old goroutine to terminate.
	select {
	case o := <-first:
		assert.True(t, o.Cancelled)
	case <-time.After(time.Second):
		t.Fatal("superseded poll did not resolve")
	}

	o := <-second
	assert.True(t, o.Success)
	assert.Greater(t, source.CallCount(), callsBefore)
}

func TestRegistry_IndependentIDsPollConcurrently(t *testing.T) {
	source := gateway.NewMockSource().Script(payment.StateConfirmed)
	r := newTestRegistry(source)

	a := r.StartPoll(context.Background(), slowRequest("pay-a"))
	b := r.StartPoll(context.Background(), slowRequest("pay-b"))

	assert.True(t, (<-a).Success)
	assert.True(t, (<-b).Success)
}

func TestRegistry_CancelPoll(t *testing.T) {
	source := gateway.NewMockSource()
	r := newTestRegistry(source)

	results := r.StartPoll(context.Background(), slowRequest("pay-4"))
	require.Eventually(t, func() bool { return r.IsActive("pay-4") }, time.Second, 5*time.Millisecond)

	r.CancelPoll("pay-4")
	assert.False(t, r.IsActive("pay-4"), "id should leave the active set immediately")

	outcome := <-results
	assert.True(t, outcome.Cancelled)
}

func TestRegistry_CancelPollIdempotent(t *testing.T) {
	r := newTestRegistry(gateway.NewMockSource())

	// No active poll for this id.
	r.CancelPoll("pay-5")
	r.CancelPoll("pay-5")
}

func TestRegistry_CancelAll(t *testing.T) {
	source := gateway.NewMockSource()
	r := newTestRegistry(source)

	a := r.StartPoll(context.Background(), slowRequest("pay-6"))
	b := r.StartPoll(context.Background(), slowRequest("pay-7"))
	require.Eventually(t, func() bool {
		return r.IsActive("pay-6") && r.IsActive("pay-7")
	}, time.Second, 5*time.Millisecond)

	r.CancelAll()

	assert.True(t, (<-a).Cancelled)
	assert.True(t, (<-b).Cancelled)
	assert.Empty(t, r.ListActive())
}

func TestRegistry_ListActive(t *testing.T) {
	source := gateway.NewMockSource()
	r := newTestRegistry(source)

	assert.Empty(t, r.ListActive())

	results := r.StartPoll(context.Background(), slowRequest("pay-8"))
	require.Eventually(t, func() bool { return r.IsActive("pay-8") }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"pay-8"}, r.ListActive())

	r.CancelPoll("pay-8")
	<-results
	assert.Empty(t, r.ListActive())
}
