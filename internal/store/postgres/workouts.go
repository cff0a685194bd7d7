package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gymtime/gymtime/internal/store"
	"github.com/gymtime/gymtime/internal/workout"
)

const workoutColumns = "id, user_id, exercise, muscle_group, weight, sets, reps, notes, date, created_at"

// Insert implements store.WorkoutStore.
func (s *Store) Insert(ctx context.Context, e *workout.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO workouts (`+workoutColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.UserID, e.Exercise, string(e.MuscleGroup),
		e.Weight, e.Sets, e.Reps, e.Notes, e.Date, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres store: insert workout: %w", err)
	}
	return nil
}

// InsertAll implements store.WorkoutStore. All entries land in one
// transaction.
func (s *Store) InsertAll(ctx context.Context, entries []*workout.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO workouts (`+workoutColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			e.ID, e.UserID, e.Exercise, string(e.MuscleGroup),
			e.Weight, e.Sets, e.Reps, e.Notes, e.Date, e.CreatedAt,
		); err != nil {
			return fmt.Errorf("postgres store: insert workout %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres store: commit: %w", err)
	}
	return nil
}

// GetByID implements store.WorkoutStore.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID, userID string) (*workout.Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+workoutColumns+`
		FROM workouts
		WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get workout: %w", err)
	}
	return e, nil
}

// ListByDay implements store.WorkoutStore. The day boundary is computed in
// day's location.
func (s *Store) ListByDay(ctx context.Context, userID string, day time.Time) ([]*workout.Entry, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return s.ListByDateRange(ctx, userID, start, start.AddDate(0, 0, 1))
}

// ListByDateRange implements store.WorkoutStore.
func (s *Store) ListByDateRange(ctx context.Context, userID string, from, to time.Time) ([]*workout.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+workoutColumns+`
		FROM workouts
		WHERE user_id = $1 AND date >= $2 AND date < $3
		ORDER BY date ASC, created_at ASC`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list workouts: %w", err)
	}
	defer rows.Close()

	var entries []*workout.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres store: scan workout: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: list workouts: %w", err)
	}
	return entries, nil
}

// UpdateField implements store.WorkoutStore. The value is routed through
// [workout.Entry.Update] first, so the database only ever sees values the
// model accepts, trimmed and typed the same way an in-memory update would be.
func (s *Store) UpdateField(ctx context.Context, id uuid.UUID, userID string, f workout.Field, value any) error {
	var scratch workout.Entry
	if err := scratch.Update(f, value); err != nil {
		return err
	}

	var column string
	var bind any
	switch f {
	case workout.FieldExercise:
		column, bind = "exercise", scratch.Exercise
	case workout.FieldMuscleGroup:
		column, bind = "muscle_group", string(scratch.MuscleGroup)
	case workout.FieldWeight:
		column, bind = "weight", scratch.Weight
	case workout.FieldSets:
		column, bind = "sets", scratch.Sets
	case workout.FieldReps:
		column, bind = "reps", scratch.Reps
	case workout.FieldNotes:
		column, bind = "notes", scratch.Notes
	default:
		return fmt.Errorf("postgres store: unknown field %v", f)
	}

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf("UPDATE workouts SET %s = $1 WHERE id = $2 AND user_id = $3", column),
		bind, id, userID,
	)
	if err != nil {
		return fmt.Errorf("postgres store: update %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete implements store.WorkoutStore.
func (s *Store) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM workouts WHERE id = $1 AND user_id = $2",
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("postgres store: delete workout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanEntry(row pgx.Row) (*workout.Entry, error) {
	var (
		e     workout.Entry
		group string
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Exercise, &group,
		&e.Weight, &e.Sets, &e.Reps, &e.Notes, &e.Date, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.MuscleGroup = workout.MuscleGroup(group)
	return &e, nil
}
