package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/gymtime/gymtime/internal/auth"
	"github.com/gymtime/gymtime/internal/capture"
	"github.com/gymtime/gymtime/internal/workout"
	"github.com/gymtime/gymtime/pkg/audio"
	"github.com/gymtime/gymtime/pkg/types"
)

// sttSampleRate and sttChannels are the PCM format handed to STT sessions.
const (
	sttSampleRate = 16000
	sttChannels   = 1
)

// voiceEvent is a server-to-client websocket message. Type is one of
// "amplitude", "transcript", "result", or "error"; the other fields are
// populated per type.
type voiceEvent struct {
	Type    string           `json:"type"`
	Level   float64          `json:"level,omitempty"`
	Text    string           `json:"text,omitempty"`
	Message string           `json:"message,omitempty"`
	Entries []*workout.Entry `json:"entries,omitempty"`
	Summary string           `json:"summary,omitempty"`
}

// voiceControl is a client-to-server text message. Binary messages carry
// audio; the only control message today is {"type":"stop"}.
type voiceControl struct {
	Type string `json:"type"`
}

// handleVoice upgrades the request to a websocket and runs one capture
// session over it. The client streams audio as binary messages (Opus packets
// at 48 kHz stereo, or raw 16 kHz mono PCM with format=pcm16) and finishes
// with a {"type":"stop"} text message; the server streams amplitude and
// live-transcript events back and answers stop with the parsed, persisted
// entries.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}
	if s.deps.STT == nil {
		writeError(w, http.StatusNotImplemented, "voice capture is not configured")
		return
	}

	var targetDate time.Time
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.Parse(dayFormat, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		targetDate = d
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "opus"
	}
	if format != "opus" && format != "pcm16" {
		writeError(w, http.StatusBadRequest, "format must be opus or pcm16")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	sess, err := s.captures.Begin(ctx, userID)
	if err != nil {
		msg := "failed to start voice capture"
		if errors.Is(err, capture.ErrSessionActive) {
			msg = "a recording is already in progress"
		} else {
			s.log.Error("capture start failed", slog.String("error", err.Error()))
		}
		_ = wsjson.Write(ctx, conn, voiceEvent{Type: "error", Message: msg})
		_ = conn.Close(websocket.StatusPolicyViolation, msg)
		return
	}
	defer s.captures.End(userID)
	s.deps.Metrics.ActiveCaptures.Add(ctx, 1)
	defer s.deps.Metrics.ActiveCaptures.Add(context.WithoutCancel(ctx), -1)

	var fwd sync.WaitGroup
	fwd.Add(1)
	go func() {
		defer fwd.Done()
		s.forwardEvents(ctx, conn, sess)
	}()

	var dec *audio.OpusDecoder
	if format == "opus" {
		dec, err = audio.NewOpusDecoder()
		if err != nil {
			s.log.Error("opus decoder init failed", slog.String("error", err.Error()))
			s.abortCapture(sess)
			fwd.Wait()
			_ = conn.Close(websocket.StatusInternalError, "audio setup failed")
			return
		}
	}
	conv := &audio.FormatConverter{Target: audio.Format{
		SampleRate: sttSampleRate,
		Channels:   sttChannels,
	}}
	started := time.Now()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			// Client went away mid-recording. There is nobody to deliver a
			// result to, so the capture is discarded.
			s.log.Info("voice connection closed before stop", slog.String("user", userID))
			s.abortCapture(sess)
			fwd.Wait()
			return
		}

		switch typ {
		case websocket.MessageBinary:
			frame := types.AudioFrame{
				Data:       data,
				SampleRate: sttSampleRate,
				Channels:   sttChannels,
				Timestamp:  time.Since(started),
			}
			if dec != nil {
				pcm, err := dec.Decode(data)
				if err != nil {
					s.log.Warn("dropping undecodable opus packet", slog.String("error", err.Error()))
					continue
				}
				frame.Data = pcm
				frame.SampleRate = audio.OpusSampleRate
				frame.Channels = audio.OpusChannels
			}
			if err := sess.SendAudio(conv.Convert(frame)); err != nil {
				s.log.Warn("audio frame rejected", slog.String("error", err.Error()))
			}
		case websocket.MessageText:
			var ctl voiceControl
			if err := json.Unmarshal(data, &ctl); err != nil || ctl.Type != "stop" {
				continue
			}
			s.finishCapture(ctx, conn, sess, targetDate, &fwd)
			return
		}
	}
}

// forwardEvents relays amplitude levels and live transcript hypotheses from
// the capture session to the client until both channels close.
func (s *Server) forwardEvents(ctx context.Context, conn *websocket.Conn, sess *capture.Session) {
	amplitude := sess.Amplitude()
	transcripts := sess.Transcripts()
	for amplitude != nil || transcripts != nil {
		select {
		case level, ok := <-amplitude:
			if !ok {
				amplitude = nil
				continue
			}
			if err := wsjson.Write(ctx, conn, voiceEvent{Type: "amplitude", Level: level}); err != nil {
				return
			}
		case text, ok := <-transcripts:
			if !ok {
				transcripts = nil
				continue
			}
			if err := wsjson.Write(ctx, conn, voiceEvent{Type: "transcript", Text: text}); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// finishCapture stops the session, persists whatever parsed, and reports the
// outcome to the client before closing the connection.
func (s *Server) finishCapture(ctx context.Context, conn *websocket.Conn, sess *capture.Session, targetDate time.Time, fwd *sync.WaitGroup) {
	start := time.Now()
	entries, err := sess.Stop(ctx, targetDate)
	s.recordParse(ctx, time.Since(start), entries, err)
	fwd.Wait()

	if err != nil {
		_ = wsjson.Write(ctx, conn, voiceEvent{Type: "error", Message: capture.UserMessage(err)})
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	if len(entries) == 0 {
		_ = wsjson.Write(ctx, conn, voiceEvent{Type: "result", Entries: []*workout.Entry{}})
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return
	}

	if err := s.deps.Workouts.InsertAll(ctx, entries); err != nil {
		s.log.Error("failed to store captured entries", slog.String("error", err.Error()))
		_ = wsjson.Write(ctx, conn, voiceEvent{Type: "error", Message: capture.UserMessage(err)})
		_ = conn.Close(websocket.StatusInternalError, "")
		return
	}
	summary := s.indexSession(ctx, entries)
	_ = wsjson.Write(ctx, conn, voiceEvent{Type: "result", Entries: entries, Summary: summary})
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

// abortCapture tears down a session whose client disappeared. The transcript
// is discarded unparsed; there is nobody to deliver a result to.
func (s *Server) abortCapture(sess *capture.Session) {
	if err := sess.Abort(); err != nil {
		s.log.Warn("abandoned capture teardown failed", slog.String("error", err.Error()))
	}
}
