// Package mock provides an in-memory stt.Provider for tests. Sessions replay
// scripted transcripts and record every audio chunk they receive.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/gymtime/gymtime/pkg/provider/stt"
	"github.com/gymtime/gymtime/pkg/types"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider for tests.
type Provider struct {
	mu sync.Mutex

	// StartErr, if set, is returned by StartStream.
	StartErr error

	// Script is replayed on every new session: each transcript is delivered
	// on the partials or finals channel according to its IsFinal flag.
	Script []types.Transcript

	sessions []*Session
}

// StartStream opens a scripted session.
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StartErr != nil {
		return nil, p.StartErr
	}

	s := &Session{
		Config:   cfg,
		partials: make(chan types.Transcript, 64),
		finals:   make(chan types.Transcript, 64),
		done:     make(chan struct{}),
	}
	for _, t := range p.Script {
		if t.IsFinal {
			s.finals <- t
		} else {
			s.partials <- t
		}
	}
	p.sessions = append(p.sessions, s)
	return s, nil
}

// Sessions returns every session started so far.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// Session is a scripted stt.SessionHandle.
type Session struct {
	// Config is the StreamConfig the session was started with.
	Config stt.StreamConfig

	// SendErr, if set, is returned by SendAudio.
	SendErr error

	mu       sync.Mutex
	audio    [][]byte
	partials chan types.Transcript
	finals   chan types.Transcript
	done     chan struct{}
	once     sync.Once
}

// SendAudio records the chunk.
func (s *Session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("mock stt: session is closed")
	default:
	}
	if s.SendErr != nil {
		return s.SendErr
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.mu.Lock()
	s.audio = append(s.audio, cp)
	s.mu.Unlock()
	return nil
}

// Audio returns every chunk received so far.
func (s *Session) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.audio))
	copy(out, s.audio)
	return out
}

// EmitPartial delivers an interim transcript mid-session.
func (s *Session) EmitPartial(t types.Transcript) {
	t.IsFinal = false
	s.partials <- t
}

// EmitFinal delivers an authoritative transcript mid-session.
func (s *Session) EmitFinal(t types.Transcript) {
	t.IsFinal = true
	s.finals <- t
}

// Partials returns the interim transcript channel.
func (s *Session) Partials() <-chan types.Transcript { return s.partials }

// Finals returns the authoritative transcript channel.
func (s *Session) Finals() <-chan types.Transcript { return s.finals }

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Close closes the output channels. Safe to call more than once.
func (s *Session) Close() error {
	s.once.Do(func() {
		close(s.done)
		close(s.partials)
		close(s.finals)
	})
	return nil
}
