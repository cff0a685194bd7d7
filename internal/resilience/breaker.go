// Package resilience shields the voice pipeline from flaky model backends.
//
// A [Breaker] is a three-state circuit breaker (closed, open, half-open).
// [LLMFailover] and [STTFailover] compose several providers of the same kind
// behind one breaker each, so a failing primary is bypassed in favour of a
// healthy standby instead of surfacing every transient outage to the user
// mid-recording.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gymtime/gymtime/internal/observe"
)

// Errors returned by this package.
var (
	// ErrOpen is returned without invoking the callee while a breaker is
	// open and its cooldown has not elapsed.
	ErrOpen = errors.New("resilience: breaker open")

	// ErrExhausted is returned when every provider in a failover chain
	// failed or was skipped by an open breaker.
	ErrExhausted = errors.New("resilience: all providers failed")
)

// BreakerConfig tunes a Breaker. Zero values fall back to defaults.
type BreakerConfig struct {
	// Name labels the breaker in logs.
	Name string

	// Trip is the number of consecutive failures that opens the breaker.
	// Default 5.
	Trip int

	// Cooldown is how long the breaker stays open before allowing a probe.
	// Default 30s.
	Cooldown time.Duration
}

// Breaker is a consecutive-failure circuit breaker. After Trip failures in a
// row it rejects calls for Cooldown, then lets a single probe through; the
// probe's outcome decides between closing and re-opening.
type Breaker struct {
	name     string
	trip     int
	cooldown time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
	probing  bool
}

// NewBreaker builds a Breaker from cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Trip <= 0 {
		cfg.Trip = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{name: cfg.Name, trip: cfg.Trip, cooldown: cfg.Cooldown}
}

// Do runs fn unless the breaker rejects the call. The fn error is returned
// unchanged so callers keep their error taxonomy.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.settle(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return nil
	}
	if time.Since(b.openedAt) < b.cooldown {
		return ErrOpen
	}
	if b.probing {
		// Another goroutine already holds the probe slot.
		return ErrOpen
	}
	b.probing = true
	slog.Debug("breaker probing", "name", b.name)
	return nil
}

func (b *Breaker) settle(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.open {
			slog.Info("breaker closed", "name", b.name)
		}
		b.open = false
		b.probing = false
		b.failures = 0
		return
	}

	b.failures++
	b.probing = false
	if b.open {
		// Failed probe: restart the cooldown.
		b.openedAt = time.Now()
		return
	}
	if b.failures >= b.trip {
		b.open = true
		b.openedAt = time.Now()
		slog.Warn("breaker opened", "name", b.name, "consecutive_failures", b.failures)
	}
}

// Open reports whether the breaker currently rejects calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && time.Since(b.openedAt) < b.cooldown
}

// chain is the shared try-each-provider loop behind the typed failover
// wrappers. kind ("llm" or "stt") labels the provider metrics.
type chain[T any] struct {
	cfg     BreakerConfig
	kind    string
	metrics *observe.Metrics
	entries []chainEntry[T]
}

type chainEntry[T any] struct {
	name     string
	provider T
	breaker  *Breaker
}

func newChain[T any](cfg BreakerConfig, kind, name string, primary T) *chain[T] {
	c := &chain[T]{cfg: cfg, kind: kind, metrics: observe.DefaultMetrics()}
	c.add(name, primary)
	return c
}

func (c *chain[T]) add(name string, p T) {
	bc := c.cfg
	bc.Name = name
	c.entries = append(c.entries, chainEntry[T]{
		name:     name,
		provider: p,
		breaker:  NewBreaker(bc),
	})
}

// call tries fn against each provider in order until one succeeds. Standalone
// function because methods cannot introduce the result type parameter.
func call[T, R any](c *chain[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range c.entries {
		e := &c.entries[i]
		var out R
		start := time.Now()
		err := e.breaker.Do(func() error {
			var err error
			out, err = fn(e.provider)
			return err
		})
		if !errors.Is(err, ErrOpen) {
			c.record(e.name, time.Since(start), err)
		}
		if err == nil {
			return out, nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			slog.Debug("skipping provider, breaker open", "provider", e.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", e.name, "error", err.Error())
		}
	}
	if len(c.entries) == 1 {
		// Nothing to fail over to; keep the original error visible.
		return zero, lastErr
	}
	return zero, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}

// record updates the provider request counters and the per-kind latency
// histogram for one invoked backend call. Skipped (breaker-open) calls are
// not recorded.
func (c *chain[T]) record(provider string, elapsed time.Duration, err error) {
	ctx := context.Background()
	status := "ok"
	if err != nil {
		status = "error"
		c.metrics.RecordProviderError(ctx, provider, c.kind)
	}
	c.metrics.RecordProviderRequest(ctx, provider, c.kind, status)
	switch c.kind {
	case "llm":
		c.metrics.LLMDuration.Record(ctx, elapsed.Seconds())
	case "stt":
		c.metrics.STTDuration.Record(ctx, elapsed.Seconds())
	}
}
