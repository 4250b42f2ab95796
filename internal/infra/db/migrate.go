package db

import (
	"context"
	"database/sql"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS sentiment_analyses (
    id                SERIAL PRIMARY KEY,
    request_id        TEXT NOT NULL,
    storage_key       TEXT NOT NULL UNIQUE,
    method            TEXT NOT NULL,
    model             TEXT,
    overall_sentiment TEXT,
    analysis_error    TEXT,
    payload           JSONB NOT NULL,
    analyzed_at       TIMESTAMPTZ NOT NULL,
    created_at        TIMESTAMPTZ DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_sentiment_analyses_request_id ON sentiment_analyses(request_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sentiment_analyses_analyzed_at ON sentiment_analyses(analyzed_at DESC)`,
}

// MigrateUp creates the tables and indexes used by the analysis repository.
// Every statement is idempotent.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
