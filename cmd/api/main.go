package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"payment-confirmation/internal/bootstrap"
	"payment-confirmation/internal/controller"
	"payment-confirmation/internal/gateway"
	infraRedis "payment-confirmation/internal/infrastructure/redis"
	"payment-confirmation/internal/poller"
	"payment-confirmation/internal/reconciler"
	"payment-confirmation/internal/repository/postgres"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "payconfirm-api", "payconfirm")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	actionRepo := postgres.NewActionRepository(app.Pool)
	memberRepo := postgres.NewMemberRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Gateway client ---
	source := gateway.NewClient(gateway.Config{
		BaseURL:          app.Config.Gateway.BaseURL,
		APIKey:           app.Config.Gateway.APIKey,
		RequestTimeout:   app.Config.Gateway.RequestTimeout,
		BreakerInterval:  app.Config.Gateway.BreakerInterval,
		BreakerTimeout:   app.Config.Gateway.BreakerTimeout,
		BreakerThreshold: app.Config.Gateway.BreakerThreshold,
	}, app.Logger)

	// --- Polling registry ---
	registry := poller.NewRegistry(source, app.Logger, app.Metrics)
	defer registry.CancelAll()

	// --- Reconciler ---
	lockTTL := app.Config.Reconciler.ActionLockTTL
	rec := reconciler.New(
		actionRepo,
		source,
		txManager,
		app.Logger,
		app.Metrics,
		reconciler.Options{
			BatchSize: app.Config.Reconciler.BatchSize,
			LockFor: func(key string) reconciler.Locker {
				return infraRedis.NewDistributedLock(app.Redis, key, lockTTL)
			},
		},
		reconciler.NewSubscriptionExecutor(memberRepo),
		reconciler.NewAccountCompletionExecutor(memberRepo),
	)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:        app.Pool,
		RedisClient: app.Redis,
		Registry:    registry,
		ActionStore: actionRepo,
		Reconciler:  rec,
		Metrics:     app.Metrics,
		PollConfig:  app.Config.Poll,
		CORSConfig:  app.Config.Server.CORS,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
