// Package http holds the cross-cutting HTTP pieces of the API server:
// middleware, request metrics and the health endpoints.
package http

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"sentiment-app/internal/handler/http/respond"
)

// Check status values.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus is the result of one health check.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// BreakerState reports a circuit breaker's state.
type BreakerState interface {
	State() gobreaker.State
}

// HealthHandler reports the database connection (when one is configured)
// and the state of the analyzer and store circuit breakers.
//
// An unreachable database makes the service unhealthy (503). Open breakers
// only degrade it: requests are still answered and analyzer failures are
// stored as analysis_error.
type HealthHandler struct {
	DB       *sql.DB
	Analyzer string
	Store    string
	Breakers map[string]BreakerState
	Version  string
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]CheckStatus{
		"analyzer": {Status: StatusHealthy, Message: h.Analyzer},
		"store":    {Status: StatusHealthy, Message: h.Store},
	}
	if h.DB != nil {
		checks["database"] = h.checkDatabase(ctx)
	}
	if len(h.Breakers) > 0 {
		checks["circuit_breakers"] = h.checkBreakers()
	}

	status := StatusHealthy
	for _, c := range checks {
		if c.Status == StatusUnhealthy {
			status = StatusUnhealthy
			break
		}
		if c.Status == StatusDegraded {
			status = StatusDegraded
		}
	}

	code := http.StatusOK
	if status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
		slog.WarnContext(ctx, "health check failed", slog.Any("checks", checks))
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) CheckStatus {
	if err := h.DB.PingContext(ctx); err != nil {
		return CheckStatus{Status: StatusUnhealthy, Message: respond.SanitizeError(err)}
	}

	stats := h.DB.Stats()
	return CheckStatus{
		Status: StatusHealthy,
		Details: map[string]any{
			"max_open_connections": stats.MaxOpenConnections,
			"open_connections":     stats.OpenConnections,
			"in_use":               stats.InUse,
			"idle":                 stats.Idle,
			"wait_count":           stats.WaitCount,
		},
	}
}

func (h *HealthHandler) checkBreakers() CheckStatus {
	names := make([]string, 0, len(h.Breakers))
	for name := range h.Breakers {
		names = append(names, name)
	}
	sort.Strings(names)

	status := StatusHealthy
	var open []string
	details := make(map[string]any, len(names))
	for _, name := range names {
		state := h.Breakers[name].State()
		details[name] = state.String()
		if state == gobreaker.StateOpen {
			status = StatusDegraded
			open = append(open, name)
		}
	}

	c := CheckStatus{Status: status, Details: details}
	if len(open) > 0 {
		c.Message = "open: " + strings.Join(open, ", ")
	}
	return c
}

// LiveHandler answers liveness probes.
type LiveHandler struct{}

func (LiveHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}
