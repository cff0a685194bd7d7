// Package workout defines the core workout entry model and progression
// statistics computed over it.
package workout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Construction errors.
var (
	ErrEmptyExercise    = errors.New("workout: exercise must not be empty")
	ErrEmptyMuscleGroup = errors.New("workout: muscle group must not be empty")
)

// MuscleGroup identifies the primary muscle group an exercise targets.
type MuscleGroup string

// Recognized muscle groups. The extraction model is prompted to pick from this
// set; values are stored as-is, so IsValid is advisory rather than enforced at
// construction.
const (
	MuscleGroupChest     MuscleGroup = "Chest"
	MuscleGroupBack      MuscleGroup = "Back"
	MuscleGroupShoulders MuscleGroup = "Shoulders"
	MuscleGroupBiceps    MuscleGroup = "Biceps"
	MuscleGroupTriceps   MuscleGroup = "Triceps"
	MuscleGroupLegs      MuscleGroup = "Legs"
	MuscleGroupCore      MuscleGroup = "Core"
	MuscleGroupCardio    MuscleGroup = "Cardio"
)

// AllMuscleGroups lists every recognized muscle group in display order.
var AllMuscleGroups = []MuscleGroup{
	MuscleGroupChest,
	MuscleGroupBack,
	MuscleGroupShoulders,
	MuscleGroupBiceps,
	MuscleGroupTriceps,
	MuscleGroupLegs,
	MuscleGroupCore,
	MuscleGroupCardio,
}

// IsValid reports whether g is one of the recognized muscle groups.
func (g MuscleGroup) IsValid() bool {
	for _, v := range AllMuscleGroups {
		if g == v {
			return true
		}
	}
	return false
}

// Entry is a validated, persistence-ready workout record. The ID is assigned
// once at construction and never changes.
type Entry struct {
	ID          uuid.UUID   `json:"id"`
	UserID      string      `json:"user_id"`
	Exercise    string      `json:"exercise"`
	MuscleGroup MuscleGroup `json:"muscle_group"`
	Weight      *float64    `json:"weight,omitempty"`
	Sets        *int        `json:"sets,omitempty"`
	Reps        *int        `json:"reps,omitempty"`
	Notes       *string     `json:"notes,omitempty"`
	Date        time.Time   `json:"date"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewEntry constructs an Entry with a fresh id. Exercise and muscle group must
// be non-empty after trimming; date zero means "now".
func NewEntry(userID, exercise string, group MuscleGroup, date time.Time) (*Entry, error) {
	exercise = strings.TrimSpace(exercise)
	if exercise == "" {
		return nil, ErrEmptyExercise
	}
	group = MuscleGroup(strings.TrimSpace(string(group)))
	if group == "" {
		return nil, ErrEmptyMuscleGroup
	}
	now := time.Now().UTC()
	if date.IsZero() {
		date = now
	}
	return &Entry{
		ID:          uuid.New(),
		UserID:      userID,
		Exercise:    exercise,
		MuscleGroup: group,
		Date:        date,
		CreatedAt:   now,
	}, nil
}

// Day returns the calendar day the entry belongs to, truncated in loc.
func (e *Entry) Day(loc *time.Location) time.Time {
	d := e.Date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

// Describe renders the entry as a short fragment for summarization prompts,
// e.g. "Bench Press (3x5)".
func (e *Entry) Describe() string {
	if e.Sets != nil && e.Reps != nil {
		return fmt.Sprintf("%s (%dx%d)", e.Exercise, *e.Sets, *e.Reps)
	}
	return e.Exercise
}
