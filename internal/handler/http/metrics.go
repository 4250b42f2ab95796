package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"sentiment-app/internal/handler/http/pathutil"
	"sentiment-app/internal/observability/metrics"
)

// HTTP server metric names, reported through the same registry as the
// sentiment metrics.
const (
	RequestDurationName = "http.server.requests"
	InFlightName        = "http.server.active_requests"
)

// HTTPMetrics records request latency and in-flight requests.
type HTTPMetrics struct {
	registry metrics.Registry
	inFlight *atomic.Int64
	logger   *slog.Logger
}

// NewHTTPMetrics registers the in-flight gauge on registry. A gauge
// registration failure only disables that gauge.
func NewHTTPMetrics(registry metrics.Registry, logger *slog.Logger) (*HTTPMetrics, error) {
	if registry == nil {
		return nil, metrics.ErrNilRegistry
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &HTTPMetrics{registry: registry, logger: logger}
	cell := new(atomic.Int64)
	if _, err := registry.Gauge(metrics.Descriptor{
		Name:        InFlightName,
		Description: "Number of HTTP requests currently being served",
	}, cell); err != nil {
		logger.Warn("in-flight gauge disabled", slog.Any("error", err))
	} else {
		m.inFlight = cell
	}
	return m, nil
}

// Middleware times every request, tagged by method, normalized path and
// status code.
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.inFlight != nil {
			m.inFlight.Add(1)
			defer m.inFlight.Add(-1)
		}

		rec := newStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(rec, r)

		timer, err := m.registry.Timer(metrics.Descriptor{
			Name:        RequestDurationName,
			Description: "HTTP request latency",
			BaseUnit:    metrics.UnitMilliseconds,
			Tags: metrics.Tags{
				{Key: "method", Value: r.Method},
				{Key: "path", Value: pathutil.NormalizePath(r.URL.Path)},
				{Key: "status", Value: strconv.Itoa(rec.status)},
			},
		})
		if err != nil {
			m.logger.Debug("request not recorded", slog.Any("error", err))
			return
		}
		timer.Record(time.Since(start))
	})
}
