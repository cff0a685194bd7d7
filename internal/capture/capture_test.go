package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gymtime/gymtime/internal/auth"
	"github.com/gymtime/gymtime/internal/parser"
	"github.com/gymtime/gymtime/pkg/audio"
	"github.com/gymtime/gymtime/pkg/provider/llm"
	llmmock "github.com/gymtime/gymtime/pkg/provider/llm/mock"
	sttmock "github.com/gymtime/gymtime/pkg/provider/stt/mock"
	"github.com/gymtime/gymtime/pkg/types"
)

func newTestSession(sttProv *sttmock.Provider, completion string) (*Session, *llmmock.Provider) {
	m := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: completion},
	}
	p := parser.New(m, auth.StaticProvider{ID: "user-1"})
	return NewSession(sttProv, p), m
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestStartStopParsesTranscript(t *testing.T) {
	t.Parallel()

	sttProv := &sttmock.Provider{
		Script: []types.Transcript{
			{Text: "bench press 185 pounds 3 sets of 5", IsFinal: true},
		},
	}
	s, _ := newTestSession(sttProv, `[{"exercise":"Bench Press","muscle_group":"Chest","weight":"185 lbs","sets":3,"reps":5}]`)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if got := s.State(); got != StateRecording {
		t.Errorf("State = %v, want recording", got)
	}

	entries, err := s.Stop(ctx, time.Time{})
	if err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if len(entries) != 1 || entries[0].Exercise != "Bench Press" {
		t.Errorf("entries = %+v", entries)
	}
	if got := s.State(); got != StateIdle {
		t.Errorf("State after Stop = %v, want idle", got)
	}
}

func TestStopWithEmptyTranscriptIsNoOp(t *testing.T) {
	t.Parallel()

	sttProv := &sttmock.Provider{}
	s, m := newTestSession(sttProv, "should never be used")

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	entries, err := s.Stop(ctx, time.Time{})
	if err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if entries != nil {
		t.Errorf("entries = %v, want nil", entries)
	}
	if len(m.Calls()) != 0 {
		t.Error("no completion call expected for silence")
	}
	if got := s.State(); got != StateIdle {
		t.Errorf("State = %v, want idle", got)
	}
}

func TestAbortDiscardsTranscriptWithoutParsing(t *testing.T) {
	t.Parallel()

	sttProv := &sttmock.Provider{
		Script: []types.Transcript{
			{Text: "bench press 185 pounds 3 sets of 5", IsFinal: true},
		},
	}
	s, m := newTestSession(sttProv, `[{"exercise":"Bench Press","muscle_group":"Chest"}]`)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return s.Transcript() != "" })
	if err := s.Abort(); err != nil {
		t.Fatalf("Abort() error: %v", err)
	}

	if got := s.State(); got != StateIdle {
		t.Errorf("State = %v, want idle", got)
	}
	if !sttProv.Sessions()[0].Closed() {
		t.Error("stt session left open after Abort")
	}
	if calls := m.Calls(); len(calls) != 0 {
		t.Errorf("model called %d times for an aborted capture, want 0", len(calls))
	}

	// The session is reusable after an abort.
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() after Abort: %v", err)
	}
	if err := s.Abort(); err != nil {
		t.Fatalf("second Abort() error: %v", err)
	}
}

func TestDoubleStartRejected(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(&sttmock.Provider{}, "[]")
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(ctx); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("second Start error = %v, want ErrAlreadyRecording", err)
	}
	if _, err := s.Stop(ctx, time.Time{}); err != nil {
		t.Fatal(err)
	}
	// Reusable after a full cycle.
	if err := s.Start(ctx); err != nil {
		t.Errorf("restart after Stop: %v", err)
	}
	if _, err := s.Stop(ctx, time.Time{}); err != nil {
		t.Fatal(err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(&sttmock.Provider{}, "[]")
	if _, err := s.Stop(context.Background(), time.Time{}); !errors.Is(err, ErrNotRecording) {
		t.Errorf("error = %v, want ErrNotRecording", err)
	}
}

func TestSendAudioMetersAndForwards(t *testing.T) {
	t.Parallel()

	sttProv := &sttmock.Provider{}
	s, _ := newTestSession(sttProv, "[]")
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	samples := make([]int16, 320)
	for i := range samples {
		samples[i] = 16000
	}
	frame := types.AudioFrame{Data: audio.Int16sToBytes(samples), SampleRate: 16000, Channels: 1}
	if err := s.SendAudio(frame); err != nil {
		t.Fatal(err)
	}

	select {
	case level := <-s.Amplitude():
		if level <= 0 || level > 1 {
			t.Errorf("level = %f, want in (0, 1]", level)
		}
	case <-time.After(time.Second):
		t.Fatal("no amplitude published")
	}

	sess := sttProv.Sessions()[0]
	waitFor(t, func() bool { return len(sess.Audio()) == 1 })

	if _, err := s.Stop(ctx, time.Time{}); err != nil {
		t.Fatal(err)
	}
	if err := s.SendAudio(frame); !errors.Is(err, ErrNotRecording) {
		t.Errorf("SendAudio after Stop = %v, want ErrNotRecording", err)
	}
}

func TestTranscriptHypothesisUpdates(t *testing.T) {
	t.Parallel()

	sttProv := &sttmock.Provider{}
	s, _ := newTestSession(sttProv, `[{"exercise":"Bench Press","muscle_group":"Chest"}]`)
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	sess := sttProv.Sessions()[0]

	sess.EmitPartial(types.Transcript{Text: "bench"})
	waitFor(t, func() bool { return s.Transcript() == "bench" })

	// A newer partial supersedes the old one.
	sess.EmitPartial(types.Transcript{Text: "bench press"})
	waitFor(t, func() bool { return s.Transcript() == "bench press" })

	// A final replaces the partial and becomes appendable history.
	sess.EmitFinal(types.Transcript{Text: "bench press one eighty five"})
	waitFor(t, func() bool { return s.Transcript() == "bench press one eighty five" })

	sess.EmitFinal(types.Transcript{Text: "three sets of five"})
	waitFor(t, func() bool {
		return s.Transcript() == "bench press one eighty five three sets of five"
	})

	entries, err := s.Stop(ctx, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("entries = %+v", entries)
	}
}

func TestStopParseFailureReturnsToIdle(t *testing.T) {
	t.Parallel()

	sttProv := &sttmock.Provider{
		Script: []types.Transcript{{Text: "gibberish", IsFinal: true}},
	}
	s, _ := newTestSession(sttProv, "not json at all")

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	_, err := s.Stop(ctx, time.Time{})
	if !errors.Is(err, parser.ErrInvalidData) {
		t.Errorf("error = %v, want ErrInvalidData", err)
	}
	if got := s.State(); got != StateIdle {
		t.Errorf("State = %v, want idle after error", got)
	}
	// The session recovers for the next attempt.
	if err := s.Start(ctx); err != nil {
		t.Errorf("restart after failure: %v", err)
	}
	if _, err := s.Stop(ctx, time.Time{}); err != nil {
		t.Fatal(err)
	}
}

func TestUserMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "invalid data", err: parser.ErrInvalidData, want: "Didn't quite get that. Try rephrasing your workout."},
		{name: "missing exercise", err: parser.ErrMissingExercise, want: "Couldn't catch the exercise name. Try again and say the exercise first."},
		{name: "signed out", err: parser.ErrNoUserID, want: "You're signed out. Sign in and try again."},
		{name: "timeout", err: context.DeadlineExceeded, want: "That took too long. Check your connection and try again."},
		{name: "unknown", err: errors.New("boom"), want: "Something went wrong saving your workout. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
