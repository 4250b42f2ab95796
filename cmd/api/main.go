package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sentiment-app/internal/config"
	hhttp "sentiment-app/internal/handler/http"
	hanalysis "sentiment-app/internal/handler/http/analysis"
	"sentiment-app/internal/handler/http/requestid"
	"sentiment-app/internal/observability/logging"
	"sentiment-app/internal/observability/metrics"
	"sentiment-app/internal/observability/tracing"
	analysisUC "sentiment-app/internal/usecase/analysis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)
	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

// initLogger builds the process logger and installs it as the slog default.
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	logger := logging.New(logging.Options{
		Level:  cfg.Level,
		Format: cfg.Format,
	})
	slog.SetDefault(logger)
	return logger
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	version := getVersion()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    "sentiment-app",
		ServiceVersion: version,
		Exporter:       cfg.Tracing.Exporter,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	backend, err := newMetricsBackend(ctx, cfg.Metrics, logger)
	if err != nil {
		return err
	}
	if backend.run != nil {
		g.Go(func() error { return backend.run(gctx) })
	}

	sentiment, err := metrics.NewSentimentMetrics(backend.registry, metrics.WithLogger(logger))
	if err != nil {
		return err
	}

	analyzer, err := newAnalyzer(ctx, cfg.Analyzer, logger)
	if err != nil {
		return err
	}

	store, err := newResultStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.close()

	svc := analysisUC.NewService(analyzer, store.store, sentiment,
		analysisUC.WithKeyPrefix(cfg.Store.KeyPrefix))

	health := &hhttp.HealthHandler{
		DB:       store.db,
		Analyzer: analyzer.Name(),
		Store:    cfg.Store.Kind,
		Breakers: collectBreakers(map[string]any{
			analyzer.Name(): analyzer,
			cfg.Store.Kind:  store.store,
		}),
		Version: version,
	}

	handler, err := buildHandler(cfg.Server, logger, backend, svc, store.reader, health)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
	metricsSrv := newMetricsServer(cfg.Server.MetricsAddr, backend.handler, health)

	g.Go(func() error {
		logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("version", version),
			slog.String("analyzer", analyzer.Name()),
			slog.String("store", cfg.Store.Kind),
			slog.String("metrics", cfg.Metrics.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("metrics server starting", slog.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(
			srv.Shutdown(shutdownCtx),
			metricsSrv.Shutdown(shutdownCtx),
		)
	})

	err = g.Wait()

	// Flush telemetry after the servers have drained.
	flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if shutdownErr := errors.Join(backend.shutdown(flushCtx), shutdownTracing(flushCtx)); shutdownErr != nil {
		logger.Error("telemetry shutdown failed", slog.Any("error", shutdownErr))
	}

	logger.Info("server stopped")
	return err
}

// buildHandler registers the routes and wraps them with the middleware chain.
func buildHandler(
	cfg config.ServerConfig,
	logger *slog.Logger,
	backend *metricsBackend,
	svc hanalysis.Service,
	reader hanalysis.Reader,
	health http.Handler,
) (http.Handler, error) {
	mux := http.NewServeMux()
	hanalysis.Register(mux, svc, reader)
	mux.Handle("GET /health", health)
	mux.Handle("GET /live", hhttp.LiveHandler{})

	httpMetrics, err := hhttp.NewHTTPMetrics(backend.registry, logger)
	if err != nil {
		return nil, err
	}
	limiter := hhttp.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Applied innermost first. Request order:
	// Recover → Request ID → Tracing → Logging → Metrics → CORS → Rate Limit → Body Limit
	var h http.Handler = mux
	h = hhttp.LimitRequestBody(cfg.MaxBodyBytes)(h)
	h = limiter.Limit(h)
	h = hhttp.CORS(h)
	h = httpMetrics.Middleware(h)
	h = hhttp.Logging(logger)(h)
	h = tracing.Middleware(h)
	h = requestid.Middleware(h)
	h = hhttp.Recover(logger)(h)
	return h, nil
}
