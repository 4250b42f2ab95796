package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"sentiment-app/internal/config"
	"sentiment-app/internal/domain/entity"
	hhttp "sentiment-app/internal/handler/http"
	hanalysis "sentiment-app/internal/handler/http/analysis"
	"sentiment-app/internal/handler/http/respond"
	"sentiment-app/internal/infra/adapter/persistence/postgres"
	"sentiment-app/internal/infra/adapter/storage/s3store"
	"sentiment-app/internal/infra/analyzer"
	"sentiment-app/internal/infra/db"
	"sentiment-app/internal/infra/metrics/cwmetrics"
	"sentiment-app/internal/infra/metrics/memory"
	"sentiment-app/internal/infra/metrics/otelmetrics"
	"sentiment-app/internal/infra/metrics/prom"
	"sentiment-app/internal/observability/metrics"
	"sentiment-app/internal/repository"
	"sentiment-app/internal/resilience/circuitbreaker"
	analysisUC "sentiment-app/internal/usecase/analysis"
)

/* ──────────────────────────────── metrics ──────────────────────────────── */

// metricsBackend is the registry behind the metrics facade plus the hooks
// the process needs around it.
type metricsBackend struct {
	registry metrics.Registry
	// handler serves /metrics on the metrics listener.
	handler http.Handler
	// run is a background publisher, nil for pull-based backends.
	run      func(context.Context) error
	shutdown func(context.Context) error
}

func noShutdown(context.Context) error { return nil }

func newMetricsBackend(ctx context.Context, cfg config.MetricsConfig, logger *slog.Logger) (*metricsBackend, error) {
	switch cfg.Backend {
	case config.MetricsPrometheus:
		reg := prom.NewRegistry()
		reg.Prometheus().MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return &metricsBackend{registry: reg, handler: reg.Handler(), shutdown: noShutdown}, nil

	case config.MetricsCloudWatch:
		client, err := cwmetrics.NewClient(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		reg := cwmetrics.New(cfg.Namespace, client, cwmetrics.WithLogger(logger))
		step := cfg.Step
		return &metricsBackend{
			registry: reg,
			handler:  promhttp.Handler(),
			run:      func(ctx context.Context) error { return reg.Run(ctx, step) },
			shutdown: noShutdown,
		}, nil

	case config.MetricsOTel:
		promReg := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(promReg))
		if err != nil {
			return nil, fmt.Errorf("create otel prometheus exporter: %w", err)
		}
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
		reg, err := otelmetrics.NewRegistryFromProvider(provider)
		if err != nil {
			return nil, err
		}
		return &metricsBackend{
			registry: reg,
			handler:  promhttp.HandlerFor(promReg, promhttp.HandlerOpts{Registry: promReg}),
			shutdown: func(ctx context.Context) error {
				return errors.Join(reg.Close(), provider.Shutdown(ctx))
			},
		}, nil

	case config.MetricsMemory:
		reg := memory.NewRegistry()
		return &metricsBackend{
			registry: reg,
			handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				respond.JSON(w, http.StatusOK, reg.Instruments())
			}),
			shutdown: noShutdown,
		}, nil

	case config.MetricsNone:
		return &metricsBackend{registry: metrics.NewNoopRegistry(), handler: http.NotFoundHandler(), shutdown: noShutdown}, nil
	}
	return nil, fmt.Errorf("unknown metrics backend %q", cfg.Backend)
}

/* ──────────────────────────────── analyzer ──────────────────────────────── */

func newAnalyzer(ctx context.Context, cfg config.AnalyzerConfig, logger *slog.Logger) (analysisUC.Analyzer, error) {
	opts := []analyzer.Option{analyzer.WithLogger(logger)}

	switch cfg.Provider {
	case config.AnalyzerComprehend:
		client, err := analyzer.NewComprehendClient(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		return analyzer.NewComprehend(client, opts...), nil

	case config.AnalyzerClaude:
		c, err := analyzer.NewClaude(cfg.AnthropicAPIKey, llmConfig(analyzer.DefaultClaudeConfig(), cfg), opts...)
		if err != nil {
			return nil, err
		}
		return c, nil

	case config.AnalyzerOpenAI:
		o, err := analyzer.NewOpenAI(cfg.OpenAIAPIKey, llmConfig(analyzer.DefaultOpenAIConfig(), cfg), opts...)
		if err != nil {
			return nil, err
		}
		return o, nil

	case config.AnalyzerNoOp:
		logger.Warn("using the noop analyzer, results carry no sentiment")
		return analyzer.NewNoOp(), nil
	}
	return nil, fmt.Errorf("unknown analyzer provider %q", cfg.Provider)
}

// llmConfig overlays the configured values on the provider defaults.
func llmConfig(base analyzer.Config, cfg config.AnalyzerConfig) analyzer.Config {
	if cfg.Model != "" {
		base.Model = cfg.Model
	}
	if cfg.MaxTokens > 0 {
		base.MaxTokens = cfg.MaxTokens
	}
	if cfg.Timeout > 0 {
		base.Timeout = cfg.Timeout
	}
	base.BaseURL = cfg.BaseURL
	return base
}

/* ──────────────────────────────── store ──────────────────────────────── */

type resultStore struct {
	store repository.ResultStore
	// reader is set when stored results can be read back.
	reader hanalysis.Reader
	// db is the Postgres pool checked by /health, nil otherwise.
	db    *sql.DB
	close func()
}

func newResultStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*resultStore, error) {
	switch cfg.Kind {
	case config.StoreS3:
		client, err := s3store.NewClient(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		s, err := s3store.New(client, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		return &resultStore{store: s, close: func() {}}, nil

	case config.StorePostgres:
		database, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.MigrateUp(ctx, database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		repo := postgres.NewAnalysisRepo(database)
		return &resultStore{
			store:  repo,
			reader: repo,
			db:     database,
			close: func() {
				if err := database.Close(); err != nil {
					logger.Error("failed to close database", slog.Any("error", err))
				}
			},
		}, nil

	case config.StoreNone:
		logger.Warn("result store disabled, analyses are not persisted")
		return &resultStore{store: discardStore{}, close: func() {}}, nil
	}
	return nil, fmt.Errorf("unknown result store %q", cfg.Kind)
}

// discardStore drops results. Used for local runs without AWS or a database.
type discardStore struct{}

func (discardStore) Save(_ context.Context, key string, _ *entity.Analysis) (string, error) {
	return "discard://" + key, nil
}

/* ──────────────────────────────── health ──────────────────────────────── */

// collectBreakers picks out the components that run behind a circuit breaker.
func collectBreakers(components map[string]any) map[string]hhttp.BreakerState {
	out := make(map[string]hhttp.BreakerState)
	for name, c := range components {
		switch v := c.(type) {
		case interface{ Breaker() *circuitbreaker.CircuitBreaker }:
			out[name] = v.Breaker()
		case interface {
			Breaker() *circuitbreaker.DBCircuitBreaker
		}:
			out[name] = v.Breaker()
		}
	}
	return out
}

// newMetricsServer serves /metrics and /health on their own listener so
// scrapers bypass the API middleware.
func newMetricsServer(addr string, metricsHandler, health http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	mux.Handle("/health", health)

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
