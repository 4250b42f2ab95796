// Package analysis exposes the sentiment analysis workflow over HTTP.
package analysis

import (
	"context"
	"net/http"

	"sentiment-app/internal/domain/entity"
	analysisUC "sentiment-app/internal/usecase/analysis"
)

// Service runs one analysis. *analysisUC.Service satisfies it.
type Service interface {
	Analyze(ctx context.Context, req analysisUC.Request) (*analysisUC.Outcome, error)
}

// Reader looks stored results up. Only the Postgres store provides one.
type Reader interface {
	Get(ctx context.Context, requestID string) (*entity.Analysis, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.Analysis, error)
}

// Register mounts the analysis routes on mux. The read routes are only
// mounted when reader is non-nil.
func Register(mux *http.ServeMux, svc Service, reader Reader) {
	mux.Handle("POST /api/analyze", AnalyzeHandler{Svc: svc})
	if reader != nil {
		mux.Handle("GET /api/analyses", ListHandler{Reader: reader})
		mux.Handle("GET /api/analyses/{requestId}", GetHandler{Reader: reader})
	}
}
