package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Polling metrics
	PollsStarted   prometheus.Counter
	PollsCompleted *prometheus.CounterVec
	PollAttempts   prometheus.Histogram
	PollDuration   *prometheus.HistogramVec
	ActivePolls    prometheus.Gauge

	// Reconciliation metrics
	ActionsEnqueued       *prometheus.CounterVec
	ActionRetries         *prometheus.CounterVec
	UnresolvedActions     prometheus.Gauge
	ReconcilePassDuration *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := prometheus.WrapRegistererWith(nil, reg)

	m := &Metrics{
		PollsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_started_total",
				Help:      "Total number of payment status polls started",
			},
		),
		PollsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_completed_total",
				Help:      "Total number of polls completed by final status",
			},
			[]string{"final_status"},
		),
		PollAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "poll_attempts",
				Help:      "Status query attempts per completed poll",
				Buckets:   []float64{1, 2, 3, 5, 8, 10, 15, 20},
			},
		),
		PollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "poll_duration_seconds",
				Help:      "Poll duration in seconds by final status",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15, 20, 30},
			},
			[]string{"final_status"},
		),
		ActivePolls: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_polls",
				Help:      "Number of currently active polls",
			},
		),
		ActionsEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pending_actions_enqueued_total",
				Help:      "Total number of pending actions enqueued by kind",
			},
			[]string{"kind"},
		),
		ActionRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pending_action_retries_total",
				Help:      "Total number of pending action retry attempts by kind and result",
			},
			[]string{"kind", "result"},
		),
		UnresolvedActions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_actions_unresolved",
				Help:      "Number of pending actions awaiting reconciliation",
			},
		),
		ReconcilePassDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_pass_duration_seconds",
				Help:      "Reconciliation pass duration in seconds by kind",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	// Register all collectors
	factory.MustRegister(
		m.PollsStarted,
		m.PollsCompleted,
		m.PollAttempts,
		m.PollDuration,
		m.ActivePolls,
		m.ActionsEnqueued,
		m.ActionRetries,
		m.UnresolvedActions,
		m.ReconcilePassDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}
