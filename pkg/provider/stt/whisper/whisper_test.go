package whisper_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gymtime/gymtime/pkg/provider/stt"
	"github.com/gymtime/gymtime/pkg/provider/stt/whisper"
)

// newInferenceServer answers POST /inference with the given text and counts
// matched requests.
func newInferenceServer(t *testing.T, text string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if calls != nil {
			calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": text})
	}))
}

// speechPCM generates a 440 Hz sine wave whose RMS sits far above the silence
// gate. samples counts 16-bit little-endian values.
func speechPCM(samples int) []byte {
	const amplitude = 10_000.0
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

// silencePCM generates zero-valued PCM, RMS 0.
func silencePCM(samples int) []byte {
	return make([]byte, samples*2)
}

func startSession(t *testing.T, p *whisper.Provider) stt.SessionHandle {
	t.Helper()
	h, err := p.StartStream(context.Background(), stt.StreamConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	return h
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}

	p, err := whisper.New("http://localhost:8080",
		whisper.WithModel("small"),
		whisper.WithLanguage("de"),
		whisper.WithSampleRate(16000),
		whisper.WithSilenceThresholdMs(300),
		whisper.WithMaxBufferDurationMs(5000),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil Provider")
	}
}

func TestStartStreamCancelledContext(t *testing.T) {
	t.Parallel()

	p, _ := whisper.New("http://localhost:8080")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.StartStream(ctx, stt.StreamConfig{SampleRate: 16000, Channels: 1}); err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}

func TestSilenceAloneNeverReachesInference(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newInferenceServer(t, "unexpected", &calls)
	defer srv.Close()

	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(50))
	h := startSession(t, p)

	// One second of silence. Leading silence is discarded, never buffered.
	_ = h.SendAudio(silencePCM(16000))

	time.Sleep(150 * time.Millisecond)
	h.Close()

	if n := calls.Load(); n != 0 {
		t.Errorf("inference called %d time(s) for silence-only audio; want 0", n)
	}
}

func TestSpeechThenSilenceEmitsUtterance(t *testing.T) {
	t.Parallel()

	const wantText = "bench press three sets of ten at sixty kilos"
	srv := newInferenceServer(t, wantText, nil)
	defer srv.Close()

	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100))
	h := startSession(t, p)
	defer h.Close()

	// 100 ms speech then 100 ms silence, enough to cross the silence gate.
	if err := h.SendAudio(speechPCM(1600)); err != nil {
		t.Fatalf("SendAudio (speech): %v", err)
	}
	if err := h.SendAudio(silencePCM(1600)); err != nil {
		t.Fatalf("SendAudio (silence): %v", err)
	}

	select {
	case tr := <-h.Finals():
		if tr.Text != wantText {
			t.Errorf("Finals().Text = %q; want %q", tr.Text, wantText)
		}
		if !tr.IsFinal {
			t.Error("Finals() transcript should have IsFinal = true")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for final transcript")
	}

	// The batch engine mirrors each final onto Partials with the same text.
	select {
	case tr := <-h.Partials():
		if tr.Text != wantText {
			t.Errorf("Partials().Text = %q; want %q", tr.Text, wantText)
		}
		if tr.IsFinal {
			t.Error("Partials() transcript should have IsFinal = false")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for partial transcript")
	}
}

func TestMaxBufferForcesFlushMidSpeech(t *testing.T) {
	t.Parallel()

	const wantText = "deadlift five reps"
	srv := newInferenceServer(t, wantText, nil)
	defer srv.Close()

	// Silence gate effectively disabled; the 200 ms buffer cap must flush.
	p, _ := whisper.New(srv.URL,
		whisper.WithSilenceThresholdMs(10_000),
		whisper.WithMaxBufferDurationMs(200),
	)
	h := startSession(t, p)
	defer h.Close()

	if err := h.SendAudio(speechPCM(3360)); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}

	select {
	case tr := <-h.Finals():
		if tr.Text != wantText {
			t.Errorf("Finals().Text = %q; want %q", tr.Text, wantText)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for forced-flush transcript")
	}
}

func TestCloseFlushesPendingSpeech(t *testing.T) {
	t.Parallel()

	const wantText = "last set of squats"
	srv := newInferenceServer(t, wantText, nil)
	defer srv.Close()

	// Silence threshold far beyond the test; only Close can flush.
	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(60_000))
	h := startSession(t, p)

	_ = h.SendAudio(speechPCM(1600))
	time.Sleep(50 * time.Millisecond)
	h.Close()

	for tr := range h.Finals() {
		if tr.Text != wantText {
			t.Errorf("close-flush transcript = %q; want %q", tr.Text, wantText)
		}
	}
}

func TestCloseIsIdempotentAndClosesChannels(t *testing.T) {
	t.Parallel()

	srv := newInferenceServer(t, "", nil)
	defer srv.Close()

	p, _ := whisper.New(srv.URL)
	h := startSession(t, p)

	if err := h.Close(); err != nil {
		t.Fatalf("first Close() returned error: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close() returned error: %v", err)
	}

	if _, open := <-h.Partials(); open {
		t.Error("Partials channel should be closed after Close()")
	}
	if _, open := <-h.Finals(); open {
		t.Error("Finals channel should be closed after Close()")
	}

	if err := h.SendAudio(speechPCM(100)); err == nil {
		t.Fatal("SendAudio after Close() should return an error")
	}
}

func TestInferenceErrorSkipsUtterance(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100))
	h := startSession(t, p)
	defer h.Close()

	_ = h.SendAudio(speechPCM(1600))
	_ = h.SendAudio(silencePCM(1600))

	select {
	case tr, open := <-h.Finals():
		if open {
			t.Errorf("expected no finals on server error, got %q", tr.Text)
		}
	case <-time.After(2 * time.Second):
		// Nothing emitted; the session keeps running past the failed flush.
	}
}

func TestEmptyTranscriptionNotEmitted(t *testing.T) {
	t.Parallel()

	srv := newInferenceServer(t, "", nil)
	defer srv.Close()

	p, _ := whisper.New(srv.URL, whisper.WithSilenceThresholdMs(100))
	h := startSession(t, p)
	defer h.Close()

	_ = h.SendAudio(speechPCM(1600))
	_ = h.SendAudio(silencePCM(1600))

	select {
	case tr := <-h.Finals():
		if tr.Text == "" {
			t.Error("received empty-text transcript on Finals; expected no emission")
		}
	case <-time.After(2 * time.Second):
		// Correct: empty inference output produces no transcript.
	}
}
