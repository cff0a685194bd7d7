package whisper

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gymtime/gymtime/pkg/provider/stt"
	"github.com/gymtime/gymtime/pkg/types"
)

// inferFunc runs batch inference over one utterance of 16-bit signed
// little-endian PCM and returns the transcribed text.
type inferFunc func(ctx context.Context, pcm []byte) (string, error)

// utteranceSession implements stt.SessionHandle over a batch transcription
// engine. whisper.cpp cannot stream, so the session fakes it: incoming PCM
// accumulates in a buffer, an RMS energy gate decides where utterances end,
// and each completed utterance goes through one inference call. Both the REST
// and the in-process providers hand their inference function to this one
// loop.
//
// All mutable buffer state is confined to the processLoop goroutine.
type utteranceSession struct {
	sampleRate          int
	channels            int
	silenceThresholdMs  int
	maxBufferDurationMs int
	infer               inferFunc

	audioCh  chan []byte
	partials chan types.Transcript
	finals   chan types.Transcript

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// Compile-time assertion that utteranceSession satisfies stt.SessionHandle.
var _ stt.SessionHandle = (*utteranceSession)(nil)

// startUtteranceSession builds a session around infer and starts its
// processing goroutine.
func startUtteranceSession(ctx context.Context, sampleRate, channels, silenceThresholdMs, maxBufferDurationMs int, infer inferFunc) *utteranceSession {
	s := &utteranceSession{
		sampleRate:          sampleRate,
		channels:            channels,
		silenceThresholdMs:  silenceThresholdMs,
		maxBufferDurationMs: maxBufferDurationMs,
		infer:               infer,

		audioCh:  make(chan []byte, 256),
		partials: make(chan types.Transcript, 64),
		finals:   make(chan types.Transcript, 64),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.processLoop(ctx)
	return s
}

// SendAudio queues a chunk of raw 16-bit little-endian signed PCM audio for
// silence analysis and buffering. The chunk's sample rate and channel count
// must match the values agreed in StreamConfig. Calling SendAudio after Close
// returns an error.
func (s *utteranceSession) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("whisper: session is closed")
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return errors.New("whisper: session is closed")
	}
}

// Partials returns a read-only channel that emits interim Transcript values.
// For whisper.cpp each partial is emitted together with its corresponding
// final (they carry identical text). Closed when the session ends.
func (s *utteranceSession) Partials() <-chan types.Transcript { return s.partials }

// Finals returns a read-only channel that emits authoritative Transcript
// values. Closed when the session ends.
func (s *utteranceSession) Finals() <-chan types.Transcript { return s.finals }

// Close terminates the session, flushes any pending speech audio through one
// last inference, and closes the Partials and Finals channels. Safe to call
// more than once.
func (s *utteranceSession) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// processLoop is the single goroutine responsible for silence detection,
// audio buffering, and inference dispatch.
func (s *utteranceSession) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	var (
		buffer    []byte // accumulated PCM for the current utterance
		hadSpeech bool   // true once any high-energy chunk has been buffered
		silenceMs int    // consecutive silence accumulated after speech (ms)
	)

	bytesPerMs := s.sampleRate * s.channels * (bitsPerSample / 8) / 1000
	if bytesPerMs <= 0 {
		bytesPerMs = 32 // 16 kHz mono 16-bit
	}
	maxBufferBytes := s.maxBufferDurationMs * bytesPerMs

	// doFlush runs inference over the current buffer and emits the text.
	// Buffer state resets regardless of outcome.
	doFlush := func(flushCtx context.Context) {
		pcm := buffer
		spoke := hadSpeech
		buffer = nil
		hadSpeech = false
		silenceMs = 0
		if len(pcm) == 0 || !spoke {
			return
		}

		text, err := s.infer(flushCtx, pcm)
		if err != nil {
			slog.Warn("whisper inference failed", "error", err)
			return
		}
		if text == "" {
			return
		}

		// Non-blocking sends: the channels are buffered, and a stalled
		// consumer must not deadlock shutdown.
		select {
		case s.partials <- types.Transcript{Text: text, IsFinal: false}:
		default:
		}
		select {
		case s.finals <- types.Transcript{Text: text, IsFinal: true}:
		default:
		}
	}

	// finalFlush runs under a fresh deadline; the caller-supplied ctx may
	// already be cancelled at shutdown.
	finalFlush := func() {
		fc, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		doFlush(fc)
	}

	for {
		select {
		case <-ctx.Done():
			finalFlush()
			return

		case <-s.done:
			finalFlush()
			return

		case chunk, ok := <-s.audioCh:
			if !ok {
				finalFlush()
				return
			}

			rms := computeRMS(chunk)
			chunkMs := chunkDurationMs(chunk, s.sampleRate, s.channels)

			if rms < defaultRMSThreshold {
				// Leading silence before any speech is discarded.
				if hadSpeech {
					silenceMs += chunkMs
					buffer = append(buffer, chunk...)
					if silenceMs >= s.silenceThresholdMs {
						doFlush(ctx)
					}
				}
			} else {
				hadSpeech = true
				silenceMs = 0
				buffer = append(buffer, chunk...)
				if maxBufferBytes > 0 && len(buffer) >= maxBufferBytes {
					doFlush(ctx)
				}
			}
		}
	}
}

// computeRMS returns the root-mean-square energy of a 16-bit signed
// little-endian PCM buffer, in PCM sample units (0 to 32767). Returns 0 for
// buffers shorter than one sample.
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// chunkDurationMs returns the duration of a PCM chunk in milliseconds.
// Returns 0 for invalid inputs.
func chunkDurationMs(chunk []byte, sampleRate, channels int) int {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	bytesPerSec := sampleRate * channels * (bitsPerSample / 8)
	return len(chunk) * 1000 / bytesPerSec
}
