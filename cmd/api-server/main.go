package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/healthline/booking/internal/account"
	"github.com/healthline/booking/internal/api"
	"github.com/healthline/booking/internal/appointment"
	"github.com/healthline/booking/internal/auth"
	"github.com/healthline/booking/internal/bootstrap"
	"github.com/healthline/booking/internal/config"
	"github.com/healthline/booking/internal/logging"
	"github.com/healthline/booking/internal/notify"
	"github.com/healthline/booking/internal/payment"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatalLogger := logging.New("prod", "api-server")
		fatalLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, "api-server")
	logger.Info().
		Str("store", cfg.StoreDriver).
		Str("payment_provider", cfg.PaymentProvider).
		Str("http_port", cfg.HTTPPort).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.Open(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("store connection error")
	}
	defer store.Close()

	processor, err := bootstrap.NewProcessor(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment provider error")
	}

	dispatcher := notify.NewDispatcher(bootstrap.NewMailer(cfg, logger), logger, cfg.NotifyWorkers, cfg.NotifyQueue, cfg.PaymentCurrency)
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL, cfg.AdminEmail, cfg.AdminPassword)

	handler := api.NewRouter(api.RouterConfig{
		Accounts:     account.NewService(store.Repo, issuer, bootstrap.NewUploader(cfg, logger), logger),
		Appointments: appointment.NewService(store.Repo, store.Locker, dispatcher, logger),
		Payments:     payment.NewService(store.Repo, processor, dispatcher, cfg.PaymentCurrency, logger),
		Issuer:       issuer,
		Logger:       logger,
		CORSOrigins:  cfg.CORSOrigins,
		Dependencies: store.Dependencies,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("pending notifications dropped")
	}

	logger.Info().Msg("api-server stopped")
}
