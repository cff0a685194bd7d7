package resilience

import (
	"context"

	"github.com/gymtime/gymtime/pkg/provider/llm"
	"github.com/gymtime/gymtime/pkg/provider/stt"
)

// LLMFailover implements llm.Provider over a chain of backends. Each backend
// gets its own breaker; extraction and summarization calls go to the first
// healthy one.
type LLMFailover struct {
	chain *chain[llm.Provider]
}

var _ llm.Provider = (*LLMFailover)(nil)

// NewLLMFailover wraps primary. With no fallbacks registered it still applies
// breaker protection to the single backend.
func NewLLMFailover(primary llm.Provider, name string, cfg BreakerConfig) *LLMFailover {
	return &LLMFailover{chain: newChain(cfg, "llm", name, primary)}
}

// AddFallback appends a standby backend, tried after everything registered
// before it.
func (f *LLMFailover) AddFallback(name string, p llm.Provider) {
	f.chain.add(name, p)
}

// Complete implements llm.Provider.
func (f *LLMFailover) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return call(f.chain, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// STTFailover implements stt.Provider over a chain of backends. Only session
// start is covered: once a stream is open, mid-stream errors belong to the
// session owner.
type STTFailover struct {
	chain *chain[stt.Provider]
}

var _ stt.Provider = (*STTFailover)(nil)

// NewSTTFailover wraps primary.
func NewSTTFailover(primary stt.Provider, name string, cfg BreakerConfig) *STTFailover {
	return &STTFailover{chain: newChain(cfg, "stt", name, primary)}
}

// AddFallback appends a standby backend.
func (f *STTFailover) AddFallback(name string, p stt.Provider) {
	f.chain.add(name, p)
}

// StartStream implements stt.Provider.
func (f *STTFailover) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return call(f.chain, func(p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}
