package postgres

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/gymtime/gymtime/internal/workout"
)

func TestUpdateFieldRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	// Validation runs before any pool access, so a zero Store suffices.
	var s Store

	tests := []struct {
		name  string
		field workout.Field
		value any
		want  error
	}{
		{name: "empty exercise", field: workout.FieldExercise, value: "", want: workout.ErrEmptyExercise},
		{name: "whitespace exercise", field: workout.FieldExercise, value: "   ", want: workout.ErrEmptyExercise},
		{name: "empty muscle group", field: workout.FieldMuscleGroup, value: "", want: workout.ErrEmptyMuscleGroup},
		{name: "wrong-typed sets", field: workout.FieldSets, value: "three"},
		{name: "cleared exercise", field: workout.FieldExercise, value: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := s.UpdateField(t.Context(), uuid.New(), "user-1", tt.field, tt.value)
			if err == nil {
				t.Fatal("UpdateField() expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}
