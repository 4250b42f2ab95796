// Package postgres stores analysis results in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"sentiment-app/internal/domain/entity"
	"sentiment-app/internal/repository"
	"sentiment-app/internal/resilience/circuitbreaker"
)

// AnalysisRepo keeps every analysis as a JSONB payload plus a few columns
// used for lookups.
type AnalysisRepo struct {
	db *circuitbreaker.DBCircuitBreaker
}

// NewAnalysisRepo wraps db with the database circuit breaker.
func NewAnalysisRepo(db *sql.DB) repository.AnalysisRepository {
	return &AnalysisRepo{db: circuitbreaker.NewDBCircuitBreaker(db)}
}

// Save inserts the analysis under key. Saving the same key twice replaces
// the stored payload. The returned location is postgres://sentiment_analyses/<key>.
func (repo *AnalysisRepo) Save(ctx context.Context, key string, a *entity.Analysis) (string, error) {
	const query = `
INSERT INTO sentiment_analyses
    (request_id, storage_key, method, model, overall_sentiment, analysis_error, payload, analyzed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (storage_key) DO UPDATE SET payload = EXCLUDED.payload`

	payload, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("Save: marshal analysis: %w", err)
	}

	if _, err := repo.db.ExecContext(ctx, query,
		a.RequestID, key, a.Method, nullable(a.Model), nullable(string(a.OverallSentiment)),
		nullable(a.Error), payload, a.Timestamp,
	); err != nil {
		return "", fmt.Errorf("Save: %w", err)
	}
	return "postgres://sentiment_analyses/" + key, nil
}

// Get returns the most recent analysis stored for requestID, or
// entity.ErrNotFound.
func (repo *AnalysisRepo) Get(ctx context.Context, requestID string) (*entity.Analysis, error) {
	const query = `
SELECT payload
FROM sentiment_analyses
WHERE request_id = $1
ORDER BY analyzed_at DESC
LIMIT 1`

	rows, err := repo.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list, err := scanAnalyses(rows)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	if len(list) == 0 {
		return nil, entity.ErrNotFound
	}
	return list[0], nil
}

// ListRecent returns up to limit analyses, newest first.
func (repo *AnalysisRepo) ListRecent(ctx context.Context, limit int) ([]*entity.Analysis, error) {
	const query = `
SELECT payload
FROM sentiment_analyses
ORDER BY analyzed_at DESC
LIMIT $1`

	if limit <= 0 {
		return nil, errors.New("ListRecent: limit must be positive")
	}

	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list, err := scanAnalyses(rows)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	return list, nil
}

func scanAnalyses(rows *sql.Rows) ([]*entity.Analysis, error) {
	var list []*entity.Analysis
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var a entity.Analysis
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Breaker exposes the database circuit breaker for health reporting.
func (repo *AnalysisRepo) Breaker() *circuitbreaker.DBCircuitBreaker { return repo.db }
