// Package parser converts free-text workout transcripts into validated
// workout entries using a chat-completion model, and produces short session
// summaries.
//
// Parsing is all-or-nothing: a single malformed candidate fails the whole
// call, and errors carry a typed sentinel so callers can phrase user-facing
// messages per category.
package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gymtime/gymtime/internal/auth"
	"github.com/gymtime/gymtime/internal/lexicon"
	"github.com/gymtime/gymtime/internal/workout"
	"github.com/gymtime/gymtime/pkg/provider/llm"
	"github.com/gymtime/gymtime/pkg/types"
)

// Error taxonomy. All Parse failures wrap exactly one of these sentinels.
var (
	// ErrInvalidData indicates the completion output could not be decoded as
	// a workout candidate array.
	ErrInvalidData = errors.New("parser: completion output is not valid workout data")
	// ErrMissingExercise indicates a candidate with an empty exercise name.
	ErrMissingExercise = errors.New("parser: candidate has no exercise name")
	// ErrMissingMuscleGroup indicates a candidate with an empty muscle group.
	ErrMissingMuscleGroup = errors.New("parser: candidate has no muscle group")
	// ErrInvalidFormat is reserved for stricter field validation; no current
	// cleaning rule produces it, but it is part of the error contract.
	ErrInvalidFormat = errors.New("parser: candidate has malformed field content")
	// ErrNoUserID indicates no authenticated user id could be resolved.
	ErrNoUserID = errors.New("parser: no authenticated user id")
)

// extraction sampling temperature, fixed by contract.
const temperature = 0.7

// Option is a functional option for configuring a Parser.
type Option func(*Parser)

// WithLexicon enables phonetic correction of extracted exercise names against
// a known catalog. Correction is advisory and never fails a parse.
func WithLexicon(l *lexicon.Lexicon) Option {
	return func(p *Parser) { p.lexicon = l }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(p *Parser) { p.log = log }
}

// Parser turns transcripts into workout entries. Collaborators are injected;
// the Parser holds no ambient state and is safe for concurrent use.
type Parser struct {
	llm     llm.Provider
	session auth.SessionProvider
	lexicon *lexicon.Lexicon
	log     *slog.Logger
}

// New constructs a Parser over a completion provider and a session provider.
func New(provider llm.Provider, session auth.SessionProvider, opts ...Option) *Parser {
	p := &Parser{
		llm:     provider,
		session: session,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse extracts zero or more validated entries from transcript. targetDate
// selects the calendar day the entries belong to; zero means today. The
// returned slice preserves the model's candidate order. Any candidate failing
// validation aborts the whole call with no partial result.
func (p *Parser) Parse(ctx context.Context, transcript string, targetDate time.Time) ([]*workout.Entry, error) {
	raw, err := p.complete(ctx, extractionPrompt, transcript)
	if err != nil {
		return nil, fmt.Errorf("parser: extraction completion: %w", err)
	}

	candidates, err := decodeCandidates(raw)
	if err != nil {
		return nil, err
	}

	userID, err := p.session.UserID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoUserID, err)
	}

	entries := make([]*workout.Entry, 0, len(candidates))
	for i, c := range candidates {
		entry, err := p.buildEntry(userID, c, targetDate)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		entries = append(entries, entry)
	}

	p.log.DebugContext(ctx, "parsed transcript",
		slog.Int("candidates", len(candidates)),
		slog.Int("transcript_len", len(transcript)))
	return entries, nil
}

// Summarize produces a short plain-text session title for a caller-built
// workout description. The model's response is returned trimmed, verbatim
// otherwise; the 3-4 word shape is advisory to the model, not validated here.
func (p *Parser) Summarize(ctx context.Context, description string) (string, error) {
	raw, err := p.complete(ctx, summarizationPrompt, description)
	if err != nil {
		return "", fmt.Errorf("parser: summary completion: %w", err)
	}
	return strings.TrimSpace(raw), nil
}

// SummarizeEntries renders entries as "Exercise (setsxreps)" fragments and
// summarizes them. Returns "" without a model call for an empty slice.
func (p *Parser) SummarizeEntries(ctx context.Context, entries []*workout.Entry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	fragments := make([]string, len(entries))
	for i, e := range entries {
		fragments[i] = e.Describe()
	}
	return p.Summarize(ctx, strings.Join(fragments, ", "))
}

func (p *Parser) complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages: []types.Message{
			{Role: types.RoleUser, Content: userText},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// buildEntry cleans and validates a single candidate.
func (p *Parser) buildEntry(userID string, c Candidate, targetDate time.Time) (*workout.Entry, error) {
	exercise := titleCase(c.Exercise)
	if exercise == "" {
		return nil, ErrMissingExercise
	}
	if p.lexicon != nil {
		if corrected, score, ok := p.lexicon.Correct(exercise); ok && corrected != exercise {
			p.log.Debug("corrected exercise name",
				slog.String("heard", exercise),
				slog.String("corrected", corrected),
				slog.Float64("score", score))
			exercise = corrected
		}
	}

	group := strings.TrimSpace(c.MuscleGroup)
	if group == "" {
		return nil, ErrMissingMuscleGroup
	}

	entry, err := workout.NewEntry(userID, exercise, workout.MuscleGroup(group), targetDate)
	if err != nil {
		return nil, err
	}

	entry.Weight = extractWeight(c.Weight)
	entry.Sets = c.Sets
	entry.Reps = c.Reps
	entry.Notes = mergeNotes(c.Duration, c.Notes)
	return entry, nil
}

// decodeCandidates decodes the model's output into candidates. The prompt is
// advisory, so two departures are tolerated before strict decoding: markdown
// code fences around the payload, and a single bare object instead of a
// one-element array. Everything else fails with ErrInvalidData.
func decodeCandidates(raw string) ([]Candidate, error) {
	cleaned := stripFences(raw)
	if strings.HasPrefix(cleaned, "{") {
		cleaned = "[" + cleaned + "]"
	}

	var candidates []Candidate
	if err := json.Unmarshal([]byte(cleaned), &candidates); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return candidates, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// titleCase trims s, capitalizes each space-separated word, and rejoins with
// single spaces. Idempotent.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// extractWeight keeps only decimal digits from s and parses them as a float.
// "185 lbs" yields 185; "n/a" yields nil. Embedded decimal points are
// discarded with the rest of the non-digit text, so "2.5 plates" yields 25;
// the legacy rule, kept deliberately.
func extractWeight(s string) *float64 {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return nil
	}
	w, err := strconv.ParseFloat(digits.String(), 64)
	if err != nil {
		return nil
	}
	return &w
}

// mergeNotes folds an optional duration into the notes text as
// "<duration> - <notes>". Empty results collapse to absent.
func mergeNotes(duration, notes string) *string {
	duration = strings.TrimSpace(duration)
	notes = strings.TrimSpace(notes)

	var merged string
	switch {
	case duration != "" && notes != "":
		merged = duration + " - " + notes
	case duration != "":
		merged = duration
	case notes != "":
		merged = notes
	default:
		return nil
	}
	return &merged
}
