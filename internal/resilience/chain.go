package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrAllFailed is returned when every entry in a [Chain] fails or has an
// open circuit breaker.
var ErrAllFailed = errors.New("all models failed")

// chainEntry pairs a model identifier with its dedicated circuit breaker.
type chainEntry struct {
	name    string
	breaker *Breaker
}

// Chain is an ordered list of model identifiers with a circuit breaker per
// entry. When the primary fails or its breaker is open, the next healthy
// entry is tried in order.
//
// Chain is safe for concurrent use.
type Chain struct {
	mu      sync.Mutex
	entries []chainEntry
	cfg     BreakerConfig
}

// NewChain creates a [Chain] over names, in priority order. Breakers inherit
// cfg with the per-entry name filled in.
func NewChain(names []string, cfg BreakerConfig) *Chain {
	c := &Chain{cfg: cfg}
	for _, n := range names {
		c.Add(n)
	}
	return c
}

// Add appends a model identifier to the end of the chain. Duplicates are
// ignored.
func (c *Chain) Add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.name == name {
			return
		}
	}
	cfg := c.cfg
	cfg.Name = name
	c.entries = append(c.entries, chainEntry{name: name, breaker: NewBreaker(cfg)})
}

// Names returns the chain's model identifiers in priority order.
func (c *Chain) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.name
	}
	return out
}

// snapshot returns a copy of the entries for lock-free iteration.
func (c *Chain) snapshot() []chainEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chainEntry(nil), c.entries...)
}

// Execute tries fn against each model in the chain until one succeeds,
// returning the successful result and the model that produced it. Entries
// with an open breaker are skipped. This is a package-level function because
// Go does not support method-level type parameters.
func Execute[R any](c *Chain, fn func(model string) (R, error)) (R, string, error) {
	var (
		zero    R
		lastErr error
	)
	for _, entry := range c.snapshot() {
		var result R
		err := entry.breaker.Do(func() error {
			var innerErr error
			result, innerErr = fn(entry.name)
			return innerErr
		})
		if err == nil {
			return result, entry.name, nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("skipping model (circuit open)", "model", entry.name)
		} else {
			slog.Warn("model failed, trying next", "model", entry.name, "error", err)
		}
	}
	return zero, "", fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
