package workout

import (
	"math"
	"testing"
	"time"
)

func entryOn(t *testing.T, day time.Time, group MuscleGroup) *Entry {
	t.Helper()
	e, err := NewEntry("user-1", "Exercise", group, day)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestComputeEmpty(t *testing.T) {
	t.Parallel()

	s := Compute(nil, time.Now(), time.UTC)
	if s.TotalEntries != 0 || s.TrainingDays != 0 || s.Streak != 0 {
		t.Errorf("empty stats = %+v", s)
	}
}

func TestComputeStreak(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 31, 18, 0, 0, 0, time.UTC)
	day := func(offset int) time.Time { return now.AddDate(0, 0, offset) }

	tests := []struct {
		name string
		days []int
		want int
	}{
		{name: "trained today and two before", days: []int{0, -1, -2}, want: 3},
		{name: "rest day today keeps streak", days: []int{-1, -2, -3}, want: 3},
		{name: "gap breaks streak", days: []int{0, -2, -3}, want: 1},
		{name: "streak ended before yesterday", days: []int{-2, -3}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var entries []*Entry
			for _, d := range tt.days {
				entries = append(entries, entryOn(t, day(d), MuscleGroupLegs))
			}
			s := Compute(entries, now, time.UTC)
			if s.Streak != tt.want {
				t.Errorf("Streak = %d, want %d", s.Streak, tt.want)
			}
		})
	}
}

func TestComputeMuscleBalance(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	entries := []*Entry{
		entryOn(t, now, MuscleGroupChest),
		entryOn(t, now, MuscleGroupChest),
		entryOn(t, now, MuscleGroupLegs),
		entryOn(t, now, MuscleGroupBack),
	}

	s := Compute(entries, now, time.UTC)
	if got := s.MuscleBalance[MuscleGroupChest]; math.Abs(got-0.5) > 1e-9 {
		t.Errorf("chest share = %f, want 0.5", got)
	}
	if got := s.MuscleBalance[MuscleGroupLegs]; math.Abs(got-0.25) > 1e-9 {
		t.Errorf("legs share = %f, want 0.25", got)
	}
	if s.TrainingDays != 1 {
		t.Errorf("TrainingDays = %d, want 1", s.TrainingDays)
	}
}

func TestComputeWeeklyVolume(t *testing.T) {
	t.Parallel()

	// Wednesday of an ISO week starting Monday 2026-08-24.
	day := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	e := entryOn(t, day, MuscleGroupChest)
	w, sets, reps := 100.0, 3, 5
	e.Weight, e.Sets, e.Reps = &w, &sets, &reps

	bodyweight := entryOn(t, day, MuscleGroupCore)

	s := Compute([]*Entry{e, bodyweight}, day, time.UTC)

	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	if got := s.WeeklyVolume[monday]; got != 1500.0 {
		t.Errorf("WeeklyVolume[%v] = %f, want 1500", monday, got)
	}
	if len(s.WeeklyVolume) != 1 {
		t.Errorf("weeks = %d, want 1", len(s.WeeklyVolume))
	}
}

func TestUndertrainedGroups(t *testing.T) {
	t.Parallel()

	balance := map[MuscleGroup]float64{
		MuscleGroupChest: 0.6,
		MuscleGroupLegs:  0.05,
		MuscleGroupBack:  0.35,
	}
	got := UndertrainedGroups(balance, 0.1)

	// Every group absent from the map is undertrained too; Legs is present
	// but below threshold.
	found := false
	for _, g := range got {
		if g == MuscleGroupLegs {
			found = true
		}
		if g == MuscleGroupChest || g == MuscleGroupBack {
			t.Errorf("%s should not be undertrained", g)
		}
	}
	if !found {
		t.Error("Legs missing from undertrained groups")
	}
}
