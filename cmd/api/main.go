package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/kirillkom/fax-review-queue/internal/adapters/http"
	mcpadapter "github.com/kirillkom/fax-review-queue/internal/adapters/mcp"
	"github.com/kirillkom/fax-review-queue/internal/bootstrap"
	"github.com/kirillkom/fax-review-queue/internal/config"
	"github.com/kirillkom/fax-review-queue/internal/observability/logging"
	"github.com/kirillkom/fax-review-queue/internal/observability/metrics"
)

const serviceName = "fax-api"

func main() {
	if err := run(); err != nil {
		slog.Error("api_exit", "error", err)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:    serviceName,
		Logger:     logger,
		Registerer: httpMetrics.Registry(),
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	mounts := map[string]http.Handler{}
	if cfg.MCPEnabled {
		mounts["/mcp"] = mcpadapter.NewHTTPHandler(mcpadapter.Deps{
			Review:   app.Review,
			Stats:    app.Stats,
			Taxonomy: app.Taxonomy,
			Logger:   logger,
		})
	}
	router, err := httpadapter.NewRouter(cfg, httpadapter.Services{
		Intake:   app.Intake,
		Review:   app.Review,
		Stats:    app.Stats,
		Settings: app.Settings,
		Watcher:  app.Watcher,
		Taxonomy: app.Taxonomy,
	}, httpadapter.Options{
		Logger:  logger,
		Metrics: httpMetrics,
		Mounts:  mounts,
	})
	if err != nil {
		return fmt.Errorf("init router: %w", err)
	}

	server := &http.Server{
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Watcher.Run(gctx)
	})
	if cfg.WatcherAutostart {
		app.Watcher.Start()
	}
	g.Go(func() error {
		logger.Info("api_listening", "addr", listener.Addr().String(), "mcp", cfg.MCPEnabled)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown: %w", err)
		}
		logger.Info("api_stopped")
		return nil
	})
	return g.Wait()
}
