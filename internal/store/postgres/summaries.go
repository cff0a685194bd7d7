package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/gymtime/gymtime/internal/store"
)

// SaveSummary implements store.SummaryIndex. One summary exists per
// (user, day); saving again replaces it.
func (s *Store) SaveSummary(ctx context.Context, sum store.SessionSummary) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO session_summaries (id, user_id, day, summary, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, day) DO UPDATE
		SET summary = EXCLUDED.summary, embedding = EXCLUDED.embedding`,
		sum.ID, sum.UserID, sum.Day, sum.Summary, pgvector.NewVector(sum.Embedding),
	)
	if err != nil {
		return fmt.Errorf("postgres store: save summary: %w", err)
	}
	return nil
}

// SearchSimilar implements store.SummaryIndex using cosine distance over the
// hnsw index.
func (s *Store) SearchSimilar(ctx context.Context, userID string, embedding []float32, limit int) ([]store.SessionSummary, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, day, summary, embedding
		FROM session_summaries
		WHERE user_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3`,
		userID, pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres store: search summaries: %w", err)
	}
	defer rows.Close()

	var out []store.SessionSummary
	for rows.Next() {
		var (
			sum store.SessionSummary
			vec pgvector.Vector
		)
		if err := rows.Scan(&sum.ID, &sum.UserID, &sum.Day, &sum.Summary, &vec); err != nil {
			return nil, fmt.Errorf("postgres store: scan summary: %w", err)
		}
		sum.Embedding = vec.Slice()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: search summaries: %w", err)
	}
	return out, nil
}
