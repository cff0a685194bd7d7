package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gymtime/gymtime/internal/auth"
	"github.com/gymtime/gymtime/internal/capture"
	"github.com/gymtime/gymtime/internal/parser"
	"github.com/gymtime/gymtime/internal/store"
	"github.com/gymtime/gymtime/internal/workout"
)

const dayFormat = "2006-01-02"

type parseRequest struct {
	Transcript string `json:"transcript"`
	Date       string `json:"date,omitempty"`
}

type parseResponse struct {
	Entries []*workout.Entry `json:"entries"`
	Summary string           `json:"summary,omitempty"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Transcript == "" {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return
	}

	var targetDate time.Time
	if req.Date != "" {
		d, err := time.Parse(dayFormat, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		targetDate = d
	}

	ctx := r.Context()
	start := time.Now()
	entries, err := s.deps.Parser.Parse(ctx, req.Transcript, targetDate)
	s.recordParse(ctx, time.Since(start), entries, err)
	if err != nil {
		s.writeParseError(w, err)
		return
	}
	if len(entries) == 0 {
		writeJSON(w, http.StatusOK, parseResponse{Entries: []*workout.Entry{}})
		return
	}

	if err := s.deps.Workouts.InsertAll(ctx, entries); err != nil {
		s.log.Error("failed to store parsed entries", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to store workout entries")
		return
	}

	summary := s.indexSession(ctx, entries)
	writeJSON(w, http.StatusCreated, parseResponse{Entries: entries, Summary: summary})
}

// recordParse updates the parse-stage metrics for one transcript parse.
func (s *Server) recordParse(ctx context.Context, elapsed time.Duration, entries []*workout.Entry, err error) {
	s.deps.Metrics.ParseDuration.Record(ctx, elapsed.Seconds())
	if err != nil {
		s.deps.Metrics.ParseFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("reason", parseFailureReason(err)),
		))
		return
	}
	s.deps.Metrics.EntriesParsed.Add(ctx, int64(len(entries)))
}

func parseFailureReason(err error) string {
	switch {
	case errors.Is(err, parser.ErrNoUserID):
		return "no_user"
	case errors.Is(err, parser.ErrInvalidData), errors.Is(err, parser.ErrInvalidFormat):
		return "invalid_data"
	case errors.Is(err, parser.ErrMissingExercise):
		return "missing_exercise"
	case errors.Is(err, parser.ErrMissingMuscleGroup):
		return "missing_muscle_group"
	default:
		return "provider"
	}
}

func (s *Server) writeParseError(w http.ResponseWriter, err error) {
	msg := capture.UserMessage(err)
	switch {
	case errors.Is(err, parser.ErrNoUserID):
		writeError(w, http.StatusUnauthorized, msg)
	case errors.Is(err, parser.ErrInvalidData),
		errors.Is(err, parser.ErrInvalidFormat),
		errors.Is(err, parser.ErrMissingExercise),
		errors.Is(err, parser.ErrMissingMuscleGroup):
		writeError(w, http.StatusUnprocessableEntity, msg)
	default:
		s.log.Error("parse failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, msg)
	}
}

// indexSession summarizes the calendar day the entries belong to and upserts
// the summary with its embedding. Failures are logged, never surfaced; the
// index is a retrieval aid, not part of the write path.
func (s *Server) indexSession(ctx context.Context, entries []*workout.Entry) string {
	summary, err := s.deps.Parser.SummarizeEntries(ctx, entries)
	if err != nil || summary == "" {
		if err != nil {
			s.log.Warn("session summarization failed", slog.String("error", err.Error()))
		}
		return ""
	}
	if s.deps.Embedder == nil || s.deps.Summaries == nil {
		return summary
	}

	vec, err := s.deps.Embedder.Embed(ctx, summary)
	if err != nil {
		s.log.Warn("summary embedding failed", slog.String("error", err.Error()))
		return summary
	}
	day := entries[0].Day(time.UTC)
	err = s.deps.Summaries.SaveSummary(ctx, store.SessionSummary{
		ID:        uuid.New(),
		UserID:    entries[0].UserID,
		Day:       day,
		Summary:   summary,
		Embedding: vec,
	})
	if err != nil {
		s.log.Warn("summary upsert failed", slog.String("error", err.Error()))
	}
	return summary
}

type summarizeRequest struct {
	Description string `json:"description"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Description == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}
	summary, err := s.deps.Parser.Summarize(r.Context(), req.Description)
	if err != nil {
		s.log.Error("summarization failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "summarization failed")
		return
	}
	writeJSON(w, http.StatusOK, summarizeResponse{Summary: summary})
}

func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	q := r.URL.Query()
	var (
		entries []*workout.Entry
		err     error
	)
	switch {
	case q.Get("date") != "":
		var day time.Time
		day, err = time.Parse(dayFormat, q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		entries, err = s.deps.Workouts.ListByDay(r.Context(), userID, day)
	case q.Get("from") != "" && q.Get("to") != "":
		var from, to time.Time
		from, err = time.Parse(dayFormat, q.Get("from"))
		if err == nil {
			to, err = time.Parse(dayFormat, q.Get("to"))
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "from/to must be YYYY-MM-DD")
			return
		}
		// "to" is an inclusive day on the wire.
		entries, err = s.deps.Workouts.ListByDateRange(r.Context(), userID, from, to.AddDate(0, 0, 1))
	default:
		writeError(w, http.StatusBadRequest, "provide date or from/to query parameters")
		return
	}
	if err != nil {
		s.log.Error("workout listing failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list workouts")
		return
	}
	if entries == nil {
		entries = []*workout.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type updateRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

func (s *Server) handleUpdateWorkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid workout id")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	field, err := workout.ParseField(req.Field)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	value, err := coerceFieldValue(field, req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.deps.Workouts.UpdateField(r.Context(), id, userID, field, value); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "workout not found")
			return
		}
		if errors.Is(err, workout.ErrEmptyExercise) || errors.Is(err, workout.ErrEmptyMuscleGroup) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("workout update failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update workout")
		return
	}

	updated, err := s.deps.Workouts.GetByID(r.Context(), id, userID)
	if err != nil {
		s.log.Error("workout reload failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// coerceFieldValue normalizes a decoded JSON value to the dynamic type the
// field expects. encoding/json delivers every number as float64, so integer
// fields need an explicit whole-number conversion.
func coerceFieldValue(f workout.Field, raw any) (any, error) {
	if raw == nil {
		switch f {
		case workout.FieldWeight, workout.FieldSets, workout.FieldReps, workout.FieldNotes:
			return nil, nil
		default:
			return nil, fmt.Errorf("field %s cannot be cleared", f)
		}
	}
	switch f {
	case workout.FieldSets, workout.FieldReps:
		n, ok := raw.(float64)
		if !ok || n != float64(int(n)) {
			return nil, fmt.Errorf("field %s requires an integer value", f)
		}
		return int(n), nil
	case workout.FieldWeight:
		n, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("field %s requires a numeric value", f)
		}
		return n, nil
	default:
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("field %s requires a string value", f)
		}
		if f == workout.FieldExercise || f == workout.FieldMuscleGroup {
			str = strings.TrimSpace(str)
			if str == "" {
				return nil, fmt.Errorf("field %s must not be empty", f)
			}
		}
		return str, nil
	}
}

func (s *Server) handleDeleteWorkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid workout id")
		return
	}
	if err := s.deps.Workouts.Delete(r.Context(), id, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "workout not found")
			return
		}
		s.log.Error("workout delete failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete workout")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statsResponse struct {
	TotalEntries  int                             `json:"total_entries"`
	TrainingDays  int                             `json:"training_days"`
	Streak        int                             `json:"streak"`
	MuscleBalance map[workout.MuscleGroup]float64 `json:"muscle_balance"`
	WeeklyVolume  map[string]float64              `json:"weekly_volume"`
	Undertrained  []workout.MuscleGroup           `json:"undertrained"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	now := time.Now().UTC()
	from := now.AddDate(0, -3, 0)
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := time.Parse(dayFormat, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		from = d
	}

	entries, err := s.deps.Workouts.ListByDateRange(r.Context(), userID, from, now.AddDate(0, 0, 1))
	if err != nil {
		s.log.Error("stats listing failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	st := workout.Compute(entries, now, time.UTC)
	weekly := make(map[string]float64, len(st.WeeklyVolume))
	for week, vol := range st.WeeklyVolume {
		weekly[week.Format(dayFormat)] = vol
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TotalEntries:  st.TotalEntries,
		TrainingDays:  st.TrainingDays,
		Streak:        st.Streak,
		MuscleBalance: st.MuscleBalance,
		WeeklyVolume:  weekly,
		Undertrained:  workout.UndertrainedGroups(st.MuscleBalance, 0.05),
	})
}

type similarResult struct {
	Day     string `json:"day"`
	Summary string `json:"summary"`
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	if s.deps.Embedder == nil || s.deps.Summaries == nil {
		writeError(w, http.StatusNotImplemented, "semantic search is not configured")
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 50 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = n
	}

	vec, err := s.deps.Embedder.Embed(r.Context(), query)
	if err != nil {
		s.log.Error("query embedding failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "embedding failed")
		return
	}
	matches, err := s.deps.Summaries.SearchSimilar(r.Context(), userID, vec, limit)
	if err != nil {
		s.log.Error("similarity search failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	results := make([]similarResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, similarResult{Day: m.Day.Format(dayFormat), Summary: m.Summary})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
