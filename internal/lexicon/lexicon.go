// Package lexicon corrects misheard exercise names in speech-to-text output.
//
// Transcription models routinely mangle gym vocabulary ("lap pull down",
// "romanian dead lift", "skull crusher" as "school crusher"). The Lexicon
// holds a catalog of known exercise names and matches spoken phrases against
// it in two stages: Double Metaphone phonetic filtering, then Jaro-Winkler
// ranking of the surviving candidates. When nothing passes phonetically, a
// stricter pure-similarity fallback runs against the full catalog.
//
// Correction is advisory: a phrase with no acceptable match is returned
// unchanged, and no method fails.
package lexicon

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// DefaultCatalog lists common exercise names. Deployments typically extend it
// with the user's own logged exercises.
var DefaultCatalog = []string{
	"Bench Press", "Incline Bench Press", "Overhead Press", "Push Up", "Dip",
	"Chest Fly", "Cable Crossover",
	"Deadlift", "Romanian Deadlift", "Barbell Row", "Pull Up", "Chin Up",
	"Lat Pulldown", "Seated Cable Row", "Face Pull", "Shrug",
	"Lateral Raise", "Front Raise", "Arnold Press",
	"Bicep Curl", "Hammer Curl", "Preacher Curl",
	"Tricep Extension", "Skull Crusher", "Tricep Pushdown",
	"Squat", "Front Squat", "Leg Press", "Lunge", "Leg Curl", "Leg Extension",
	"Calf Raise", "Hip Thrust", "Bulgarian Split Squat",
	"Plank", "Crunch", "Russian Twist", "Leg Raise", "Ab Rollout",
	"Running", "Cycling", "Rowing", "Jump Rope", "Stair Climber",
}

// Option is a functional option for configuring a Lexicon.
type Option func(*Lexicon)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score a phonetic
// candidate needs to be accepted. Default 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(l *Lexicon) { l.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for the
// no-phonetic-match fallback. Default 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(l *Lexicon) { l.fuzzyThreshold = threshold }
}

// Lexicon matches spoken exercise names against a known catalog. Read-only
// after construction, safe for concurrent use.
type Lexicon struct {
	catalog           []entry
	phoneticThreshold float64
	fuzzyThreshold    float64
}

type entry struct {
	name   string
	tokens []string
	codes  map[string]struct{}
}

// New builds a Lexicon over catalog. An empty catalog yields a Lexicon whose
// Correct always returns its input unchanged.
func New(catalog []string, opts ...Option) *Lexicon {
	l := &Lexicon{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(l)
	}
	for _, name := range catalog {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		tokens := strings.Fields(strings.ToLower(name))
		l.catalog = append(l.catalog, entry{
			name:   name,
			tokens: tokens,
			codes:  metaphoneCodes(tokens),
		})
	}
	return l
}

// Correct matches phrase against the catalog. When matched is true, corrected
// is the catalog spelling and score is its Jaro-Winkler similarity; otherwise
// corrected equals phrase and score is 0.
func (l *Lexicon) Correct(phrase string) (corrected string, score float64, matched bool) {
	trimmed := strings.TrimSpace(phrase)
	if trimmed == "" || len(l.catalog) == 0 {
		return phrase, 0, false
	}

	lower := strings.ToLower(trimmed)
	tokens := strings.Fields(lower)
	codes := metaphoneCodes(tokens)

	var (
		bestName     string
		bestScore    float64
		bestPhonetic bool
	)

	for _, e := range l.catalog {
		sim := similarity(tokens, e.tokens, lower, strings.ToLower(e.name))

		if codesOverlap(codes, e.codes) {
			if sim >= l.phoneticThreshold && (!bestPhonetic || sim > bestScore) {
				bestName, bestScore, bestPhonetic = e.name, sim, true
			}
			continue
		}
		if !bestPhonetic && sim >= l.fuzzyThreshold && sim > bestScore {
			bestName, bestScore = e.name, sim
		}
	}

	if bestName == "" {
		return phrase, 0, false
	}
	return bestName, bestScore, true
}

// metaphoneCodes returns the union of Double Metaphone codes over tokens.
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		primary, secondary := matchr.DoubleMetaphone(t)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}

// similarity is the highest Jaro-Winkler score across three views of the
// pair: full strings, space-stripped strings (catches "dead lift" vs
// "deadlift"), and the best single token pairing.
func similarity(aTokens, bTokens []string, aFull, bFull string) float64 {
	score := matchr.JaroWinkler(aFull, bFull, false)

	if len(aTokens) > 1 || len(bTokens) > 1 {
		joined := matchr.JaroWinkler(strings.Join(aTokens, ""), strings.Join(bTokens, ""), false)
		if joined > score {
			score = joined
		}
	}

	for _, at := range aTokens {
		for _, bt := range bTokens {
			if s := matchr.JaroWinkler(at, bt, false); s > score {
				score = s
			}
		}
	}
	return score
}
