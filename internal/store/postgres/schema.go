// Package postgres provides the PostgreSQL-backed implementation of the
// workout store and the session summary index.
//
// Both share a single [pgxpool.Pool]. The pgvector extension must be
// available in the target database; [Migrate] installs it via
// CREATE EXTENSION IF NOT EXISTS.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlWorkouts = `
CREATE TABLE IF NOT EXISTS workouts (
    id           UUID         PRIMARY KEY,
    user_id      TEXT         NOT NULL,
    exercise     TEXT         NOT NULL,
    muscle_group TEXT         NOT NULL,
    weight       DOUBLE PRECISION,
    sets         INTEGER,
    reps         INTEGER,
    notes        TEXT,
    date         TIMESTAMPTZ  NOT NULL,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_workouts_user_date
    ON workouts (user_id, date);

CREATE INDEX IF NOT EXISTS idx_workouts_user_muscle_group
    ON workouts (user_id, muscle_group);
`

// ddlSummaries returns the summary-index DDL with the embedding dimension
// substituted. The dimension is baked into the column type at creation time.
func ddlSummaries(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS session_summaries (
    id         UUID         PRIMARY KEY,
    user_id    TEXT         NOT NULL,
    day        DATE         NOT NULL,
    summary    TEXT         NOT NULL,
    embedding  vector(%d),
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    UNIQUE (user_id, day)
);

CREATE INDEX IF NOT EXISTS idx_session_summaries_user
    ON session_summaries (user_id);

CREATE INDEX IF NOT EXISTS idx_session_summaries_embedding
    ON session_summaries USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required tables, indexes, and extensions.
// Idempotent and safe to run on every application start.
//
// embeddingDimensions must match the configured embedding model (e.g. 1536
// for OpenAI text-embedding-3-small); changing it after the first migration
// requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlWorkouts,
		ddlSummaries(embeddingDimensions),
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
