package workout

import (
	"sort"
	"time"
)

// Stats summarizes a user's training history over a slice of entries.
type Stats struct {
	// TotalEntries is the number of logged exercises.
	TotalEntries int `json:"total_entries"`
	// TrainingDays is the number of distinct calendar days with at least one
	// entry.
	TrainingDays int `json:"training_days"`
	// Streak is the current run of consecutive training days, counting back
	// from today (a rest day today does not break a streak that ended
	// yesterday).
	Streak int `json:"streak"`
	// MuscleBalance maps each muscle group to its share of entries, 0–1.
	MuscleBalance map[MuscleGroup]float64 `json:"muscle_balance"`
	// WeeklyVolume maps the Monday of each ISO week to total lifted volume
	// (weight x sets x reps, absent sets/reps counted as 1; bodyweight
	// entries contribute nothing).
	WeeklyVolume map[time.Time]float64 `json:"weekly_volume"`
}

// Compute derives Stats from entries as of now. Entries may be in any order.
func Compute(entries []*Entry, now time.Time, loc *time.Location) Stats {
	if loc == nil {
		loc = time.UTC
	}
	s := Stats{
		TotalEntries:  len(entries),
		MuscleBalance: make(map[MuscleGroup]float64),
		WeeklyVolume:  make(map[time.Time]float64),
	}
	if len(entries) == 0 {
		return s
	}

	days := make(map[time.Time]bool)
	counts := make(map[MuscleGroup]int)
	for _, e := range entries {
		days[e.Day(loc)] = true
		counts[e.MuscleGroup]++
		s.WeeklyVolume[weekStart(e.Day(loc))] += volume(e)
	}
	s.TrainingDays = len(days)

	for g, n := range counts {
		s.MuscleBalance[g] = float64(n) / float64(len(entries))
	}

	s.Streak = streak(days, now.In(loc))
	return s
}

// streak counts consecutive training days ending at today or yesterday.
func streak(days map[time.Time]bool, now time.Time) int {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !days[day] {
		day = day.AddDate(0, 0, -1)
	}
	n := 0
	for days[day] {
		n++
		day = day.AddDate(0, 0, -1)
	}
	return n
}

// weekStart returns the Monday of day's ISO week.
func weekStart(day time.Time) time.Time {
	wd := int(day.Weekday())
	if wd == 0 {
		wd = 7
	}
	return day.AddDate(0, 0, 1-wd)
}

func volume(e *Entry) float64 {
	if e.Weight == nil {
		return 0
	}
	sets, reps := 1, 1
	if e.Sets != nil {
		sets = *e.Sets
	}
	if e.Reps != nil {
		reps = *e.Reps
	}
	return *e.Weight * float64(sets) * float64(reps)
}

// UndertrainedGroups returns recognized muscle groups whose share of entries
// falls below threshold, sorted least-trained first. Used for balance hints in
// the stats endpoint.
func UndertrainedGroups(balance map[MuscleGroup]float64, threshold float64) []MuscleGroup {
	var out []MuscleGroup
	for _, g := range AllMuscleGroups {
		if balance[g] < threshold {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if balance[out[i]] != balance[out[j]] {
			return balance[out[i]] < balance[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}
