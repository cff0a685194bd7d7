package workout

import (
	"fmt"
	"strings"
)

// Field selects a mutable Entry field for an explicit update. Using a tagged
// selector with an exhaustive switch keeps field updates compile-time checked
// instead of dispatching on field-name strings.
type Field int

const (
	FieldExercise Field = iota
	FieldMuscleGroup
	FieldWeight
	FieldSets
	FieldReps
	FieldNotes
)

// String implements fmt.Stringer.
func (f Field) String() string {
	switch f {
	case FieldExercise:
		return "exercise"
	case FieldMuscleGroup:
		return "muscle_group"
	case FieldWeight:
		return "weight"
	case FieldSets:
		return "sets"
	case FieldReps:
		return "reps"
	case FieldNotes:
		return "notes"
	default:
		return fmt.Sprintf("Field(%d)", int(f))
	}
}

// ParseField maps a wire-level field name to its selector.
func ParseField(name string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "exercise":
		return FieldExercise, nil
	case "muscle_group", "musclegroup":
		return FieldMuscleGroup, nil
	case "weight":
		return FieldWeight, nil
	case "sets":
		return FieldSets, nil
	case "reps":
		return FieldReps, nil
	case "notes":
		return FieldNotes, nil
	default:
		return 0, fmt.Errorf("workout: unknown field %q", name)
	}
}

// Update applies a single field change to the entry. The value's dynamic type
// must match the field: string for exercise/muscle group/notes, float64 for
// weight, int for sets/reps. Numeric and notes fields accept nil to clear.
// Identity fields (id, user, date) are not updatable through this path.
func (e *Entry) Update(f Field, value any) error {
	switch f {
	case FieldExercise:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("workout: update %s: want string, got %T", f, value)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return ErrEmptyExercise
		}
		e.Exercise = s
	case FieldMuscleGroup:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("workout: update %s: want string, got %T", f, value)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return ErrEmptyMuscleGroup
		}
		e.MuscleGroup = MuscleGroup(s)
	case FieldWeight:
		if value == nil {
			e.Weight = nil
			return nil
		}
		w, ok := value.(float64)
		if !ok {
			return fmt.Errorf("workout: update %s: want float64, got %T", f, value)
		}
		e.Weight = &w
	case FieldSets:
		if value == nil {
			e.Sets = nil
			return nil
		}
		n, ok := value.(int)
		if !ok {
			return fmt.Errorf("workout: update %s: want int, got %T", f, value)
		}
		e.Sets = &n
	case FieldReps:
		if value == nil {
			e.Reps = nil
			return nil
		}
		n, ok := value.(int)
		if !ok {
			return fmt.Errorf("workout: update %s: want int, got %T", f, value)
		}
		e.Reps = &n
	case FieldNotes:
		if value == nil {
			e.Notes = nil
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("workout: update %s: want string, got %T", f, value)
		}
		e.Notes = &s
	default:
		return fmt.Errorf("workout: unknown field %v", f)
	}
	return nil
}
