// Package resilience provides the retry, circuit-breaker, and model-failover
// primitives used around LLM provider calls.
//
// [Retry] wraps a single call with exponential backoff, jitter, and a
// per-attempt timeout. [Breaker] is a three-state circuit breaker
// (closed → open → half-open) that takes a persistently failing model out of
// rotation. [Chain] composes an ordered list of model identifiers with
// per-model breakers so a tripped primary is bypassed in favour of healthy
// fallbacks.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerState represents the current operating mode of a [Breaker].
type BreakerState int

const (
	// BreakerClosed is the normal state — calls are forwarded.
	BreakerClosed BreakerState = iota

	// BreakerOpen means the breaker tripped on consecutive failures. Calls
	// fail fast with [ErrBreakerOpen] until the cooldown elapses.
	BreakerOpen

	// BreakerHalfOpen is the probe state after the cooldown. A single
	// successful probe closes the breaker; a failure re-opens it.
	BreakerHalfOpen
)

// String returns the human-readable name of the state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name is a label used in log messages, typically the model identifier.
	Name string

	// TripAfter is the number of consecutive failures before the breaker
	// opens. Default: 4.
	TripAfter int

	// Cooldown is how long the breaker stays open before probing again.
	// Default: 20s.
	Cooldown time.Duration
}

// Breaker implements the three-state circuit breaker pattern with a single
// probe in the half-open state. Safe for concurrent use.
type Breaker struct {
	name      string
	tripAfter int
	cooldown  time.Duration

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a [Breaker], replacing zero config fields with defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.TripAfter <= 0 {
		cfg.TripAfter = 4
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 20 * time.Second
	}
	return &Breaker{
		name:      cfg.Name,
		tripAfter: cfg.TripAfter,
		cooldown:  cfg.Cooldown,
		state:     BreakerClosed,
	}
}

// Do runs fn if the breaker allows it. In the open state it fails fast with
// [ErrBreakerOpen]; in the half-open state only one probe is let through at
// a time.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case BreakerOpen:
		if time.Since(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.state = BreakerHalfOpen
		slog.Info("circuit breaker probing", "name", b.name)
		fallthrough
	case BreakerHalfOpen:
		if b.probing {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.probing = true
	}
	probe := b.state == BreakerHalfOpen
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if probe {
		b.probing = false
	}
	if err != nil {
		b.onFailure(probe)
		return err
	}
	b.onSuccess(probe)
	return nil
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure(probe bool) {
	if probe {
		b.state = BreakerOpen
		b.openedAt = time.Now()
		slog.Warn("circuit breaker re-opened after failed probe", "name", b.name)
		return
	}
	b.failures++
	if b.failures >= b.tripAfter {
		b.state = BreakerOpen
		b.openedAt = time.Now()
		slog.Warn("circuit breaker opened",
			"name", b.name,
			"consecutive_failures", b.failures)
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess(probe bool) {
	if probe {
		slog.Info("circuit breaker closed after successful probe", "name", b.name)
	}
	b.state = BreakerClosed
	b.failures = 0
}

// State returns the current [BreakerState]. An open breaker whose cooldown
// has elapsed reports [BreakerHalfOpen]; the actual transition happens on
// the next [Breaker.Do].
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && time.Since(b.openedAt) >= b.cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to [BreakerClosed].
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.probing = false
}
