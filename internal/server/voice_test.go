package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/gymtime/gymtime/pkg/audio"
	"github.com/gymtime/gymtime/pkg/provider/llm"
	"github.com/gymtime/gymtime/pkg/types"
)

func dialVoice(t *testing.T, ctx context.Context, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/voice" + query
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + testToken}},
	})
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	return conn
}

func testPCMFrame() []byte {
	pcm := make([]int16, 320)
	for i := range pcm {
		pcm[i] = 2000
	}
	return audio.Int16sToBytes(pcm)
}

func TestVoiceCaptureRoundTrip(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.stt.Script = []types.Transcript{
		{Text: "bench press three sets of five at 185", IsFinal: true},
	}
	env.llm.CompleteResponses = []*llm.CompletionResponse{
		{Content: `[{"exercise":"Bench Press","muscle_group":"Chest","weight":"185 lbs","sets":3,"reps":5}]`},
		{Content: "Chest day"},
	}

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := dialVoice(t, ctx, ts, "?format=pcm16&date=2026-08-30")
	defer conn.CloseNow()

	if err := conn.Write(ctx, websocket.MessageBinary, testPCMFrame()); err != nil {
		t.Fatalf("send audio: %v", err)
	}
	if err := wsjson.Write(ctx, conn, voiceControl{Type: "stop"}); err != nil {
		t.Fatalf("send stop: %v", err)
	}

	seen := map[string]bool{}
	var result voiceEvent
	for {
		var ev voiceEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("read event (seen %v): %v", seen, err)
		}
		seen[ev.Type] = true
		if ev.Type == "error" {
			t.Fatalf("got error event: %s", ev.Message)
		}
		if ev.Type == "result" {
			result = ev
			break
		}
	}

	if !seen["amplitude"] {
		t.Error("no amplitude event received")
	}
	if !seen["transcript"] {
		t.Error("no transcript event received")
	}
	if len(result.Entries) != 1 {
		t.Fatalf("result has %d entries, want 1", len(result.Entries))
	}
	e := result.Entries[0]
	if e.Exercise != "Bench Press" || e.Weight == nil || *e.Weight != 185 {
		t.Errorf("entry = %s weight %v", e.Exercise, e.Weight)
	}
	if result.Summary != "Chest day" {
		t.Errorf("Summary = %q, want %q", result.Summary, "Chest day")
	}
	if env.store.Len() != 1 {
		t.Errorf("store holds %d entries, want 1", env.store.Len())
	}

	sessions := env.stt.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("got %d stt sessions, want 1", len(sessions))
	}
	if got := sessions[0].Audio(); len(got) != 1 {
		t.Errorf("stt received %d chunks, want 1", len(got))
	}
}

func TestVoiceCaptureSilence(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	// No scripted transcripts: the session ends with an empty transcript and
	// must produce an empty result without touching the model or the store.

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := dialVoice(t, ctx, ts, "?format=pcm16")
	defer conn.CloseNow()

	if err := wsjson.Write(ctx, conn, voiceControl{Type: "stop"}); err != nil {
		t.Fatalf("send stop: %v", err)
	}

	for {
		var ev voiceEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if ev.Type == "error" {
			t.Fatalf("got error event: %s", ev.Message)
		}
		if ev.Type == "result" {
			if len(ev.Entries) != 0 {
				t.Errorf("result has %d entries, want 0", len(ev.Entries))
			}
			break
		}
	}

	if calls := env.llm.Calls(); len(calls) != 0 {
		t.Errorf("model called %d times for silence, want 0", len(calls))
	}
	if env.store.Len() != 0 {
		t.Errorf("store holds %d entries, want 0", env.store.Len())
	}
}

func TestVoiceCaptureSingleSessionPerUser(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.stt.Script = []types.Transcript{{Text: "squats", IsFinal: true}}
	env.llm.CompleteResponse = &llm.CompletionResponse{Content: "[]"}

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first := dialVoice(t, ctx, ts, "?format=pcm16")
	defer first.CloseNow()

	// The scripted transcript arrives once the capture is running; reading it
	// proves the first session holds the per-user slot.
	var ev voiceEvent
	if err := wsjson.Read(ctx, first, &ev); err != nil {
		t.Fatalf("read first event: %v", err)
	}

	second := dialVoice(t, ctx, ts, "?format=pcm16")
	defer second.CloseNow()

	if err := wsjson.Read(ctx, second, &ev); err != nil {
		t.Fatalf("read second-connection event: %v", err)
	}
	if ev.Type != "error" {
		t.Fatalf("second connection event = %q, want error", ev.Type)
	}
}

func TestVoiceClientDisconnectDiscardsCapture(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.stt.Script = []types.Transcript{{Text: "squats every day", IsFinal: true}}
	env.llm.CompleteResponse = &llm.CompletionResponse{Content: "[]"}

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := dialVoice(t, ctx, ts, "?format=pcm16")
	// Reading one event proves the capture is running before the drop.
	var ev voiceEvent
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	conn.CloseNow()

	// Teardown happens on the server's read loop; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ss := env.stt.Sessions(); len(ss) == 1 && ss[0].Closed() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	ss := env.stt.Sessions()
	if len(ss) != 1 || !ss[0].Closed() {
		t.Fatal("stt session not torn down after client disconnect")
	}

	if calls := env.llm.Calls(); len(calls) != 0 {
		t.Errorf("model called %d times for an abandoned capture, want 0", len(calls))
	}
	if env.store.Len() != 0 {
		t.Errorf("store holds %d entries from an abandoned capture, want 0", env.store.Len())
	}
}

func TestVoiceRejectsBadFormat(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/v1/voice?format=mp3", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
