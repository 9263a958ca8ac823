package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthline/booking/internal/bootstrap"
	"github.com/healthline/booking/internal/config"
	"github.com/healthline/booking/internal/logging"
	"github.com/healthline/booking/internal/payment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatalLogger := logging.New("prod", "payment-reconciler")
		fatalLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, "payment-reconciler")
	logger.Info().Dur("interval", cfg.WorkerInterval).Msg("payment-reconciler starting up")

	if cfg.StoreDriver == config.StoreMemory {
		logger.Fatal().Msg("payment-reconciler needs a shared store, memory driver is per-process")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.Open(rootCtx, cfg, logger, bootstrap.WithoutLocker())
	if err != nil {
		logger.Fatal().Err(err).Msg("store connection error")
	}
	defer store.Close()

	processor, err := bootstrap.NewProcessor(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment provider error")
	}

	rec := payment.NewReconciler(store.Repo, processor, logger)

	// Run once at startup
	runOnce(rootCtx, rec, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping payment-reconciler")
			return
		case <-ticker.C:
			runOnce(rootCtx, rec, logger)
		}
	}
}

func runOnce(ctx context.Context, rec *payment.Reconciler, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	start := time.Now()
	settled, err := rec.RunOnce(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("reconcile run error")
		return
	}
	logger.Info().Int("settled", settled).Dur("took", time.Since(start)).Msg("reconcile run complete")
}
