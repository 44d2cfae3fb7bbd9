package gateway

import (
	"context"
	"sync"
	"time"

	"payment-confirmation/internal/domain/payment"
)

// MockSource is a scripted StatusSource for tests. Each call consumes the
// next step in the script; once the script is exhausted the last step repeats.
type MockSource struct {
	mu      sync.Mutex
	steps   []step
	pos     int
	latency time.Duration
	calls   []time.Time
}

type step struct {
	state payment.State
	err   error
}

type MockSourceOption func(*MockSource)

// WithLatency makes every call block for d before answering.
func WithLatency(d time.Duration) MockSourceOption {
	return func(m *MockSource) { m.latency = d }
}

// NewMockSource creates a mock source with an empty script. A mock with no
// steps always reports PENDING.
func NewMockSource(opts ...MockSourceOption) *MockSource {
	m := &MockSource{}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Script appends status states to the call script.
func (m *MockSource) Script(states ...payment.State) *MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range states {
		m.steps = append(m.steps, step{state: s})
	}
	return m
}

// ScriptError appends a failing call to the script.
func (m *MockSource) ScriptError(err error) *MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{err: err})
	return m
}

// GetPaymentStatus consumes the next scripted step.
func (m *MockSource) GetPaymentStatus(ctx context.Context, paymentID string) (*payment.Status, error) {
	if m.latency > 0 {
		select {
		case <-time.After(m.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, time.Now())

	if len(m.steps) == 0 {
		return &payment.Status{ID: paymentID, State: payment.StatePending, ObservedAt: time.Now()}, nil
	}

	s := m.steps[m.pos]
	if m.pos < len(m.steps)-1 {
		m.pos++
	}
	if s.err != nil {
		return nil, s.err
	}
	return &payment.Status{ID: paymentID, State: s.state, ObservedAt: time.Now()}, nil
}

// Calls returns the timestamps of every call received so far.
func (m *MockSource) Calls() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Time, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many calls the mock has received.
func (m *MockSource) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
