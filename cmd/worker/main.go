package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-confirmation/internal/bootstrap"
	"payment-confirmation/internal/gateway"
	infraRedis "payment-confirmation/internal/infrastructure/redis"
	"payment-confirmation/internal/reconciler"
	"payment-confirmation/internal/repository/postgres"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "payconfirm-worker", "payconfirm_worker")
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

	// --- Reconciler ---
	recCfg := app.Config.Reconciler
	rec := reconciler.New(
		actionRepo,
		source,
		txManager,
		app.Logger,
		app.Metrics,
		reconciler.Options{
			BatchSize: recCfg.BatchSize,
			LockFor: func(key string) reconciler.Locker {
				return infraRedis.NewDistributedLock(app.Redis, key, recCfg.ActionLockTTL)
			},
		},
		reconciler.NewSubscriptionExecutor(memberRepo),
		reconciler.NewAccountCompletionExecutor(memberRepo),
	)

	app.Logger.Info().
		Dur("sweep_interval", recCfg.SweepInterval).
		Int("batch_size", recCfg.BatchSize).
		Msg("Worker started, sweeping pending actions...")

	// Signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Periodic reconciliation sweep.
	g.Go(func() error {
		return runSweeper(gCtx, app, rec, recCfg.SweepInterval, recCfg.SweepLockTTL)
	})

	// 2. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

// runSweeper drives one reconciliation pass per tick. The sweep lock keeps
// concurrent worker instances from draining the same batch; losing the lock
// just skips the tick.
func runSweeper(
	ctx context.Context,
	app *bootstrap.App,
	rec *reconciler.Reconciler,
	interval time.Duration,
	lockTTL time.Duration,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		lock := infraRedis.NewDistributedLock(app.Redis, "reconciler:sweep", lockTTL)
		acquired, err := lock.Acquire(ctx)
		if err != nil {
			app.Logger.Error().Err(err).Msg("Failed to acquire sweep lock")
			continue
		}
		if !acquired {
			app.Logger.Debug().Msg("Sweep lock held elsewhere, skipping tick")
			continue
		}

		sweep(ctx, app.Logger, rec)
		lock.Release(ctx)
	}
}

func sweep(ctx context.Context, logger zerolog.Logger, rec *reconciler.Reconciler) {
	results, err := rec.RetryAll(ctx, nil)
	if err != nil {
		logger.Error().Err(err).Msg("Sweep failed")
		return
	}

	succeeded := 0
	for _, res := range results {
		if res.Success {
			succeeded++
		}
	}
	if len(results) > 0 {
		logger.Info().
			Int("attempted", len(results)).
			Int("succeeded", succeeded).
			Msg("Sweep finished")
	}
}
