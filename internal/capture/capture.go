// Package capture coordinates live audio intake and streaming transcription
// into a single start/stop surface.
//
// A Session moves Idle -> Recording -> Processing -> Idle. While recording it
// republishes two independent update streams: a smoothed 0-1 amplitude signal
// for waveform feedback, and the best current transcript hypothesis. On stop
// the accumulated transcript is handed to the parser; an empty transcript is
// a silent no-op, the only cancellation path.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gymtime/gymtime/internal/parser"
	"github.com/gymtime/gymtime/internal/workout"
	"github.com/gymtime/gymtime/pkg/audio"
	"github.com/gymtime/gymtime/pkg/provider/stt"
	"github.com/gymtime/gymtime/pkg/types"
)

// State is the capture session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateProcessing
	StateError
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session control errors.
var (
	ErrAlreadyRecording = errors.New("capture: session is already recording")
	ErrNotRecording     = errors.New("capture: session is not recording")
)

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithStreamConfig overrides the STT stream configuration. Defaults to
// 16 kHz mono English.
func WithStreamConfig(cfg stt.StreamConfig) Option {
	return func(s *Session) { s.streamCfg = cfg }
}

// Session is the coordinating state holder for one user's voice capture. A
// Session is reusable across start/stop cycles but holds at most one active
// recording; Start while recording fails with ErrAlreadyRecording.
type Session struct {
	sttProvider stt.Provider
	parser      *parser.Parser
	log         *slog.Logger
	streamCfg   stt.StreamConfig

	mu         sync.Mutex
	state      State
	handle     stt.SessionHandle
	meter      *audio.Meter
	finalText  strings.Builder
	partial    string
	consumerWG sync.WaitGroup

	amplitude   chan float64
	transcripts chan string
}

// NewSession constructs a Session over an STT provider and a parser.
func NewSession(sttProvider stt.Provider, p *parser.Parser, opts ...Option) *Session {
	s := &Session{
		sttProvider: sttProvider,
		parser:      p,
		log:         slog.Default(),
		streamCfg:   stt.StreamConfig{SampleRate: 16000, Channels: 1, Language: "en"},
		state:       StateIdle,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Amplitude returns the smoothed 0-1 audio level stream. Values are dropped,
// not blocked on, when the consumer lags. Valid after Start.
func (s *Session) Amplitude() <-chan float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.amplitude
}

// Transcripts returns the running best-hypothesis transcript stream. Each
// value supersedes the previous one. Valid after Start.
func (s *Session) Transcripts() <-chan string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcripts
}

// Start begins transcription. Amplitude and transcript updates flow until
// Stop. The context governs the STT stream for the whole recording.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("%w: state %s", ErrAlreadyRecording, s.state)
	}

	handle, err := s.sttProvider.StartStream(ctx, s.streamCfg)
	if err != nil {
		return fmt.Errorf("capture: starting transcription: %w", err)
	}

	s.handle = handle
	s.meter = audio.NewMeter()
	s.finalText.Reset()
	s.partial = ""
	s.amplitude = make(chan float64, 16)
	s.transcripts = make(chan string, 16)
	s.state = StateRecording

	s.consumerWG.Add(1)
	go s.consumeTranscripts(handle)

	s.log.DebugContext(ctx, "capture started")
	return nil
}

// SendAudio feeds one frame of 16-bit PCM into the session: it is metered for
// the amplitude stream and forwarded to the transcriber.
func (s *Session) SendAudio(frame types.AudioFrame) error {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return ErrNotRecording
	}
	handle := s.handle
	// Publish under the lock: Stop closes the channel under the same lock
	// only after leaving Recording, so this send cannot race the close.
	level := s.meter.Sample(frame.Data)
	select {
	case s.amplitude <- level:
	default:
	}
	s.mu.Unlock()

	if err := handle.SendAudio(frame.Data); err != nil {
		return fmt.Errorf("capture: forwarding audio: %w", err)
	}
	return nil
}

// Stop halts capture, reads the final transcript, and parses it. An empty or
// whitespace-only transcript returns (nil, nil) with no parse attempt. On
// parse failure the session passes through Error and the returned error maps
// to a user-facing message via UserMessage. The session always returns to
// Idle.
func (s *Session) Stop(ctx context.Context, targetDate time.Time) ([]*workout.Entry, error) {
	transcript, err := s.halt(ctx)
	if err != nil {
		return nil, err
	}

	defer s.setState(StateIdle)

	if transcript == "" {
		s.log.DebugContext(ctx, "capture stopped with empty transcript")
		return nil, nil
	}

	entries, err := s.parser.Parse(ctx, transcript, targetDate)
	if err != nil {
		s.setState(StateError)
		s.log.WarnContext(ctx, "parse failed",
			slog.String("error", err.Error()),
			slog.Int("transcript_len", len(transcript)))
		return nil, err
	}

	s.log.InfoContext(ctx, "capture parsed",
		slog.Int("entries", len(entries)),
		slog.Int("transcript_len", len(transcript)))
	return entries, nil
}

// Abort halts the recording and discards the transcript without parsing.
// For captures whose client went away: nobody is waiting on a result, so no
// completion call is spent producing one.
func (s *Session) Abort() error {
	if _, err := s.halt(context.Background()); err != nil {
		return err
	}
	s.setState(StateIdle)
	s.log.Debug("capture aborted, transcript discarded")
	return nil
}

// halt transitions Recording to Processing, stops the producer, and closes
// the update channels. The producer is halted before the transcript is read
// so the caller sees the last published value, never a stale one.
func (s *Session) halt(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return "", ErrNotRecording
	}
	s.state = StateProcessing
	handle := s.handle
	s.mu.Unlock()

	if err := handle.Close(); err != nil {
		s.log.WarnContext(ctx, "closing transcription stream", slog.String("error", err.Error()))
	}
	s.consumerWG.Wait()

	s.mu.Lock()
	transcript := strings.TrimSpace(strings.TrimSpace(s.finalText.String()) + " " + s.partial)
	s.handle = nil
	close(s.amplitude)
	close(s.transcripts)
	s.mu.Unlock()
	return transcript, nil
}

// Transcript returns the current accumulated transcript hypothesis.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(strings.TrimSpace(s.finalText.String()) + " " + s.partial)
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// consumeTranscripts merges the partial and final streams into the running
// hypothesis: finals append, the newest partial supersedes the previous one.
func (s *Session) consumeTranscripts(handle stt.SessionHandle) {
	defer s.consumerWG.Done()

	partials := handle.Partials()
	finals := handle.Finals()

	for partials != nil || finals != nil {
		select {
		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			s.mu.Lock()
			s.partial = t.Text
			s.mu.Unlock()
			s.publishTranscript()

		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			s.mu.Lock()
			if s.finalText.Len() > 0 {
				s.finalText.WriteString(" ")
			}
			s.finalText.WriteString(strings.TrimSpace(t.Text))
			s.partial = ""
			s.mu.Unlock()
			s.publishTranscript()
		}
	}
}

func (s *Session) publishTranscript() {
	text := s.Transcript()
	select {
	case s.transcripts <- text:
	default:
		// Drop the oldest value so the channel always converges on the
		// newest hypothesis.
		select {
		case <-s.transcripts:
		default:
		}
		select {
		case s.transcripts <- text:
		default:
		}
	}
}
