package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"turnstileguard/internal/gate"
	"turnstileguard/internal/handlers"
	"turnstileguard/internal/logging"
	"turnstileguard/internal/metrics"
	"turnstileguard/internal/session"
	"turnstileguard/internal/turnstile"
	"turnstileguard/pkg/concurrency"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const version = "0.1.0"

func serve(ctx context.Context, cfg *gate.Config) error {
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Info("shutting down")

	logger.Info("starting turnstileguard", "version", version, "enabled", cfg.Turnstile.Enabled)

	promMetrics, err := metrics.NewMetrics(cfg.Metrics)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	// Redis with memory fallback
	store, err := session.NewStore(cfg.Session, logger)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	defer store.Close()

	sessions := session.NewManager(store, cfg.Session, concurrency.NewMutexManager(), logger)
	verifier := turnstile.NewClient(cfg.Turnstile.VerificationURL, cfg.Turnstile.VerifyTimeout, logger, promMetrics)
	g := gate.New(cfg.Turnstile, verifier, promMetrics, logger)

	server, err := handlers.NewServer(cfg, g, sessions, store, logger)
	if err != nil {
		return err
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = newMetricsServer(cfg, promMetrics)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(server.Start)

	if metricsServer != nil {
		eg.Go(func() error {
			logger.Info("starting metrics server", "address", metricsServer.Addr, "path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("starting graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	if err := eg.Wait(); err != nil {
		logger.Error("shutdown failed", "error", err)
		return err
	}

	logger.Info("shutdown complete")
	return nil
}

func newMetricsServer(cfg *gate.Config, m *metrics.Metrics) *http.Server {
	r := chi.NewRouter()
	r.Handle(cfg.Metrics.Path, m.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Metrics.Port),
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}
}
