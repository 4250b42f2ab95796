package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedState gobreaker.State

func (s fixedState) State() gobreaker.State { return gobreaker.State(s) }

func serveHealth(t *testing.T, h *HealthHandler) (int, HealthResponse) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return rr.Code, resp
}

func TestHealthHandler_NoDatabase(t *testing.T) {
	code, resp := serveHealth(t, &HealthHandler{Analyzer: "noop", Store: "none", Version: "test"})

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.NotContains(t, resp.Checks, "database")
	assert.Equal(t, "noop", resp.Checks["analyzer"].Message)
}

func TestHealthHandler_Database(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantCode   int
		wantStatus string
	}{
		{"reachable", nil, http.StatusOK, StatusHealthy},
		{"unreachable", errors.New("dial tcp postgres://app:hunter2@db:5432: refused"), http.StatusServiceUnavailable, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			mock.ExpectPing().WillReturnError(tt.pingErr)

			code, resp := serveHealth(t, &HealthHandler{DB: db})

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantStatus, resp.Checks["database"].Status)
			assert.NotContains(t, resp.Checks["database"].Message, "hunter2")
		})
	}
}

func TestHealthHandler_OpenBreakerDegrades(t *testing.T) {
	code, resp := serveHealth(t, &HealthHandler{Breakers: map[string]BreakerState{
		"comprehend-api": fixedState(gobreaker.StateOpen),
		"s3-results":     fixedState(gobreaker.StateClosed),
	}})

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDegraded, resp.Status)
	cb := resp.Checks["circuit_breakers"]
	assert.Equal(t, "open: comprehend-api", cb.Message)
	assert.Equal(t, "closed", cb.Details["s3-results"])
}

func TestLiveHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	LiveHandler{}.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alive", rr.Body.String())
}
