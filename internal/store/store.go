// Package store defines the persistence contracts for workout entries and
// session summaries. The postgres subpackage provides the production
// implementation; mock provides an in-memory one for tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gymtime/gymtime/internal/workout"
)

// ErrNotFound indicates the requested row does not exist or belongs to a
// different user.
var ErrNotFound = errors.New("store: not found")

// WorkoutStore persists workout entries. The voice pipeline only produces
// entries; writes, updates, and deletes are issued by the serving layer.
type WorkoutStore interface {
	// Insert writes a single entry.
	Insert(ctx context.Context, e *workout.Entry) error

	// InsertAll writes entries atomically; either all land or none do.
	InsertAll(ctx context.Context, entries []*workout.Entry) error

	// GetByID fetches one entry scoped to userID.
	GetByID(ctx context.Context, id uuid.UUID, userID string) (*workout.Entry, error)

	// ListByDay returns userID's entries for the calendar day containing day,
	// oldest first.
	ListByDay(ctx context.Context, userID string, day time.Time) ([]*workout.Entry, error)

	// ListByDateRange returns userID's entries with from <= date < to, oldest
	// first.
	ListByDateRange(ctx context.Context, userID string, from, to time.Time) ([]*workout.Entry, error)

	// UpdateField applies a single field change to an entry scoped to userID.
	UpdateField(ctx context.Context, id uuid.UUID, userID string, f workout.Field, value any) error

	// Delete removes an entry scoped to userID.
	Delete(ctx context.Context, id uuid.UUID, userID string) error
}

// SessionSummary is an AI-generated session title with its embedding vector,
// indexed for "similar past sessions" retrieval.
type SessionSummary struct {
	ID        uuid.UUID
	UserID    string
	Day       time.Time
	Summary   string
	Embedding []float32
}

// SummaryIndex stores session summaries and retrieves the most similar ones
// by embedding distance.
type SummaryIndex interface {
	// SaveSummary upserts the summary for (user, day).
	SaveSummary(ctx context.Context, s SessionSummary) error

	// SearchSimilar returns up to limit of userID's summaries ranked by
	// cosine similarity to embedding, most similar first.
	SearchSimilar(ctx context.Context, userID string, embedding []float32, limit int) ([]SessionSummary, error)
}
