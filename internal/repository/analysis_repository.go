package repository

import (
	"context"

	"sentiment-app/internal/domain/entity"
)

// ResultStore persists analysis results under a caller-chosen key and
// returns where the result can be found (e.g. s3://bucket/key).
type ResultStore interface {
	Save(ctx context.Context, key string, analysis *entity.Analysis) (string, error)
}

// AnalysisRepository is a ResultStore that can also look results up.
type AnalysisRepository interface {
	ResultStore
	Get(ctx context.Context, requestID string) (*entity.Analysis, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.Analysis, error)
}
