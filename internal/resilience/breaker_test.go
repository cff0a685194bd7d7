package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gymtime/gymtime/pkg/provider/llm"
	llmmock "github.com/gymtime/gymtime/pkg/provider/llm/mock"
	"github.com/gymtime/gymtime/pkg/provider/stt"
	sttmock "github.com/gymtime/gymtime/pkg/provider/stt/mock"
)

func TestBreakerStaysClosedBelowTrip(t *testing.T) {
	t.Parallel()
	b := NewBreaker(BreakerConfig{Trip: 3})

	fail := errors.New("boom")
	for range 2 {
		if err := b.Do(func() error { return fail }); !errors.Is(err, fail) {
			t.Fatalf("Do() = %v, want boom", err)
		}
	}
	if b.Open() {
		t.Error("breaker open after 2 of 3 failures")
	}

	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("Do() after success = %v", err)
	}
	// Success resets the run; two more failures must not trip it.
	for range 2 {
		_ = b.Do(func() error { return fail })
	}
	if b.Open() {
		t.Error("breaker open although failure run was reset")
	}
}

func TestBreakerOpensAndRejects(t *testing.T) {
	t.Parallel()
	b := NewBreaker(BreakerConfig{Trip: 2, Cooldown: time.Hour})

	fail := errors.New("boom")
	for range 2 {
		_ = b.Do(func() error { return fail })
	}
	if !b.Open() {
		t.Fatal("breaker not open after trip")
	}

	called := false
	err := b.Do(func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("Do() while open = %v, want ErrOpen", err)
	}
	if called {
		t.Error("callee invoked while breaker open")
	}
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	t.Parallel()
	b := NewBreaker(BreakerConfig{Trip: 1, Cooldown: 10 * time.Millisecond})

	_ = b.Do(func() error { return errors.New("boom") })
	if !b.Open() {
		t.Fatal("breaker not open")
	}

	time.Sleep(20 * time.Millisecond)

	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("probe Do() = %v", err)
	}
	if b.Open() {
		t.Error("breaker still open after successful probe")
	}
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	t.Parallel()
	b := NewBreaker(BreakerConfig{Trip: 1, Cooldown: 10 * time.Millisecond})

	_ = b.Do(func() error { return errors.New("boom") })
	time.Sleep(20 * time.Millisecond)
	_ = b.Do(func() error { return errors.New("still down") })

	if !b.Open() {
		t.Error("breaker closed after failed probe")
	}
	if err := b.Do(func() error { return nil }); !errors.Is(err, ErrOpen) {
		t.Errorf("Do() = %v, want ErrOpen during restarted cooldown", err)
	}
}

func TestLLMFailoverUsesStandby(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{CompleteErr: errors.New("quota exceeded")}
	standby := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "[]"}}

	f := NewLLMFailover(primary, "primary", BreakerConfig{})
	f.AddFallback("standby", standby)

	resp, err := f.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if resp.Content != "[]" {
		t.Errorf("Content = %q, want standby response", resp.Content)
	}
	if len(primary.Calls()) != 1 || len(standby.Calls()) != 1 {
		t.Errorf("calls primary/standby = %d/%d, want 1/1", len(primary.Calls()), len(standby.Calls()))
	}
}

func TestLLMFailoverSkipsOpenPrimary(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{CompleteErr: errors.New("down")}
	standby := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}

	f := NewLLMFailover(primary, "primary", BreakerConfig{Trip: 2, Cooldown: time.Hour})
	f.AddFallback("standby", standby)

	for range 3 {
		if _, err := f.Complete(context.Background(), llm.CompletionRequest{}); err != nil {
			t.Fatalf("Complete() error: %v", err)
		}
	}
	// The primary trips after two failures; the third round must not touch it.
	if got := len(primary.Calls()); got != 2 {
		t.Errorf("primary called %d times, want 2", got)
	}
	if got := len(standby.Calls()); got != 3 {
		t.Errorf("standby called %d times, want 3", got)
	}
}

func TestLLMFailoverAllFailed(t *testing.T) {
	t.Parallel()

	f := NewLLMFailover(&llmmock.Provider{CompleteErr: errors.New("a")}, "a", BreakerConfig{})
	f.AddFallback("b", &llmmock.Provider{CompleteErr: errors.New("b")})

	_, err := f.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("Complete() = %v, want ErrExhausted", err)
	}
}

func TestLLMFailoverSingleBackendKeepsError(t *testing.T) {
	t.Parallel()

	backendErr := errors.New("bad request")
	f := NewLLMFailover(&llmmock.Provider{CompleteErr: backendErr}, "only", BreakerConfig{})

	_, err := f.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, backendErr) {
		t.Errorf("Complete() = %v, want the backend error unwrapped", err)
	}
	if errors.Is(err, ErrExhausted) {
		t.Error("single-backend error wrapped in ErrExhausted")
	}
}

func TestSTTFailoverStartStream(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{StartErr: errors.New("unreachable")}
	standby := &sttmock.Provider{}

	f := NewSTTFailover(primary, "primary", BreakerConfig{})
	f.AddFallback("standby", standby)

	handle, err := f.StartStream(context.Background(), stt.StreamConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("StartStream() error: %v", err)
	}
	defer handle.Close()

	if got := len(standby.Sessions()); got != 1 {
		t.Errorf("standby sessions = %d, want 1", got)
	}
}
