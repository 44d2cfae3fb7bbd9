package controller

import (
	"payment-confirmation/internal/domain/action"
	"payment-confirmation/internal/infrastructure/config"
	"payment-confirmation/internal/infrastructure/observability"
	customMW "payment-confirmation/internal/middleware"
	"payment-confirmation/internal/poller"
	"payment-confirmation/internal/reconciler"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Registry    *poller.Registry
	ActionStore action.Repository
	Reconciler  *reconciler.Reconciler
	Metrics     *observability.Metrics
	PollConfig  config.PollConfig
	CORSConfig  config.CORSConfig
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	// The poll handler manages its own deadline; the router timeout only has
	// to outlast the largest allowed poll window.
	r.Use(chimw.Timeout(deps.PollConfig.MaxTimeout + 2*deps.PollConfig.HandlerGrace))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	pollH := NewPollController(deps.Registry, deps.PollConfig)
	actionH := NewActionController(deps.ActionStore, deps.Reconciler, deps.Metrics)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	// Polling
	r.Post("/poll-payment-status", pollH.Poll)
	r.Get("/poll-payment-status/active", pollH.ListActive)
	r.Delete("/poll-payment-status/{paymentId}", pollH.Cancel)

	// Reconciliation admin
	r.Route("/pending-actions", func(r chi.Router) {
		r.Post("/", actionH.Enqueue)
		r.Get("/", actionH.List)
		r.Get("/stats", actionH.Stats)
		r.Post("/retry-all", actionH.RetryAll)
		r.Get("/{actionId}", actionH.Get)
		r.Post("/{actionId}/retry", actionH.Retry)
	})

	return r
}
