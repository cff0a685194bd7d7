// Package mock provides an in-memory store implementation for tests.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gymtime/gymtime/internal/store"
	"github.com/gymtime/gymtime/internal/workout"
)

// Compile-time interface checks.
var (
	_ store.WorkoutStore = (*Store)(nil)
	_ store.SummaryIndex = (*Store)(nil)
)

// Store keeps entries and summaries in maps. Error fields inject failures.
type Store struct {
	mu        sync.Mutex
	entries   map[uuid.UUID]*workout.Entry
	summaries map[string]store.SessionSummary // keyed by userID + day

	// InsertErr, if set, is returned by Insert and InsertAll.
	InsertErr error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		entries:   make(map[uuid.UUID]*workout.Entry),
		summaries: make(map[string]store.SessionSummary),
	}
}

// Insert implements store.WorkoutStore.
func (s *Store) Insert(_ context.Context, e *workout.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return s.InsertErr
	}
	cp := *e
	s.entries[e.ID] = &cp
	return nil
}

// InsertAll implements store.WorkoutStore.
func (s *Store) InsertAll(ctx context.Context, entries []*workout.Entry) error {
	for _, e := range entries {
		if err := s.Insert(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// GetByID implements store.WorkoutStore.
func (s *Store) GetByID(_ context.Context, id uuid.UUID, userID string) (*workout.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.UserID != userID {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

// ListByDay implements store.WorkoutStore.
func (s *Store) ListByDay(ctx context.Context, userID string, day time.Time) ([]*workout.Entry, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return s.ListByDateRange(ctx, userID, start, start.AddDate(0, 0, 1))
}

// ListByDateRange implements store.WorkoutStore.
func (s *Store) ListByDateRange(_ context.Context, userID string, from, to time.Time) ([]*workout.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*workout.Entry
	for _, e := range s.entries {
		if e.UserID != userID {
			continue
		}
		if e.Date.Before(from) || !e.Date.Before(to) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// UpdateField implements store.WorkoutStore via Entry.Update.
func (s *Store) UpdateField(_ context.Context, id uuid.UUID, userID string, f workout.Field, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.UserID != userID {
		return store.ErrNotFound
	}
	return e.Update(f, value)
}

// Delete implements store.WorkoutStore.
func (s *Store) Delete(_ context.Context, id uuid.UUID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

// SaveSummary implements store.SummaryIndex.
func (s *Store) SaveSummary(_ context.Context, sum store.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[sum.UserID+"/"+sum.Day.Format("2006-01-02")] = sum
	return nil
}

// SearchSimilar implements store.SummaryIndex. Ordering is insertion-map
// order; tests needing ranked results should assert membership, not order.
func (s *Store) SearchSimilar(_ context.Context, userID string, _ []float32, limit int) ([]store.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.SessionSummary
	for _, sum := range s.summaries {
		if sum.UserID != userID {
			continue
		}
		out = append(out, sum)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Len reports the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
