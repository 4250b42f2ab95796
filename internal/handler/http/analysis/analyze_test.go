package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentiment-app/internal/domain/entity"
	analysisUC "sentiment-app/internal/usecase/analysis"
)

type stubService struct {
	analyzeFn func(ctx context.Context, req analysisUC.Request) (*analysisUC.Outcome, error)
	got       []analysisUC.Request
}

func (s *stubService) Analyze(ctx context.Context, req analysisUC.Request) (*analysisUC.Outcome, error) {
	s.got = append(s.got, req)
	return s.analyzeFn(ctx, req)
}

func TestAnalyzeHandler(t *testing.T) {
	stored := &entity.Analysis{
		RequestID:        "abc",
		Timestamp:        time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC),
		TextLength:       11,
		Method:           "NoOp (development)",
		OverallSentiment: entity.SentimentNeutral,
	}

	tests := []struct {
		name       string
		body       string
		outcome    *analysisUC.Outcome
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "success",
			body:       `{"text":"hello world","requestId":"abc"}`,
			outcome:    &analysisUC.Outcome{Analysis: stored, Location: "s3://bucket/key.json"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "malformed JSON",
			body:       `{"text":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid JSON body",
		},
		{
			name:       "missing text",
			body:       `{}`,
			err:        analysisUC.ErrTextRequired,
			wantStatus: http.StatusBadRequest,
			wantError:  "Text field is required",
		},
		{
			name:       "store failure is hidden",
			body:       `{"text":"x"}`,
			err:        errors.New("put s3://kandidat-48-data/k: AccessDenied"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{analyzeFn: func(context.Context, analysisUC.Request) (*analysisUC.Outcome, error) {
				return tt.outcome, tt.err
			}}
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			AnalyzeHandler{Svc: svc}.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			if tt.wantError != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.wantError, body["error"])
				return
			}

			var resp AnalyzeResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "s3://bucket/key.json", resp.Location)
			assert.Equal(t, Note, resp.Note)
			assert.Equal(t, stored, resp.Analysis)
			require.Len(t, svc.got, 1)
			assert.Equal(t, analysisUC.Request{Text: "hello world", RequestID: "abc"}, svc.got[0])
		})
	}
}

func TestAnalyzeHandler_ResponseShape(t *testing.T) {
	svc := &stubService{analyzeFn: func(context.Context, analysisUC.Request) (*analysisUC.Outcome, error) {
		return &analysisUC.Outcome{
			Analysis: &entity.Analysis{RequestID: "r", Method: "m", Error: "SubscriptionRequiredException"},
			Location: "s3://b/k",
		}, nil
	}}
	rec := httptest.NewRecorder()
	AnalyzeHandler{Svc: svc}.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"text":"x"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "location")
	assert.Contains(t, resp, "note")

	var a map[string]any
	require.NoError(t, json.Unmarshal(resp["analysis"], &a))
	assert.Equal(t, "r", a["requestId"])
	assert.Equal(t, "SubscriptionRequiredException", a["analysis_error"])
	assert.NotContains(t, a, "overall_sentiment")
}
