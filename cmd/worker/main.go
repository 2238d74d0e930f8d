package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/fax-review-queue/internal/bootstrap"
	"github.com/kirillkom/fax-review-queue/internal/config"
	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/queue/nats"
	"github.com/kirillkom/fax-review-queue/internal/observability/logging"
	"github.com/kirillkom/fax-review-queue/internal/observability/metrics"
)

const serviceName = "fax-worker"

// The worker consumes fax.filed events from the downstream filing system and
// marks the matching records processed.
func main() {
	if err := run(); err != nil {
		slog.Error("worker_exit", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewLogger(serviceName, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	if cfg.NATSURL == "" {
		return errors.New("nats_url is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:    serviceName,
		Logger:     logger,
		Registerer: workerMetrics.Registry(),
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("worker metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		logger.Info("worker_subscribed", "subject", cfg.NATSFiledSubject)
		return app.Queue.SubscribeFiled(gctx, func(handlerCtx context.Context, event nats.FiledEvent) error {
			workerMetrics.StartEvent()
			start := time.Now()
			processCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
			defer cancel()

			rec, err := app.Review.MarkProcessed(processCtx, event.FaxID)
			if domain.IsKind(err, domain.ErrStateConflict) {
				// Redelivery of an event that was already applied.
				logger.Warn("fax_filed_ignored", "fax_id", event.FaxID, "error", err)
				err = nil
			}
			workerMetrics.FinishEvent(serviceName, time.Since(start), err)
			if err != nil {
				return err
			}
			if rec != nil && rec.ReviewedAt != nil {
				workerMetrics.ObserveFilingLag(serviceName, time.Since(*rec.ReviewedAt))
			}
			logger.Info("fax_filed", "fax_id", event.FaxID, "filed_by", event.FiledBy, "location", event.Location)
			return nil
		})
	})
	return g.Wait()
}
