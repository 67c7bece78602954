// Package llmclient implements the analysis-facing model client on top of a
// generative provider backend.
//
// The client owns model selection with fallback, retries with exponential
// backoff and jitter, per-attempt timeouts, circuit breakers per model, and
// a bounded worker pool around provider calls. On top of those it exposes
// the five primitives the analyzers consume: [Client.Transcribe],
// [Client.TranscribeStream], [Client.QueryJSON], [Client.QueryJSONSchema],
// and [Client.JSONStream].
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/submit4201/candor/internal/config"
	"github.com/submit4201/candor/internal/observe"
	"github.com/submit4201/candor/internal/resilience"
	"github.com/submit4201/candor/pkg/provider/llm"
	"golang.org/x/sync/semaphore"
)

// ErrSchemaViolation is returned when model output parses but does not
// conform to the requested JSON Schema, or does not parse at all.
var ErrSchemaViolation = errors.New("llmclient: output violates response schema")

// modelRefreshInterval is how long the discovered model list stays fresh.
const modelRefreshInterval = 15 * time.Minute

// Client is the analysis-facing model client. It is safe for concurrent use.
type Client struct {
	provider llm.Provider
	cfg      config.LLMConfig
	sem      *semaphore.Weighted
	metrics  *observe.Metrics

	streamDelay time.Duration
	rng         *rand.Rand
	rngMu       sync.Mutex

	modelsMu      sync.Mutex
	models        map[string]bool
	modelsFetched time.Time

	chainsMu sync.Mutex
	chains   map[string]*resilience.Chain
}

// Option customises a [Client].
type Option func(*Client)

// WithMetrics attaches metric instruments; nil leaves recording disabled.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithStreamDelay overrides the inter-chunk delay of the simulated
// [Client.JSONStream] path. Tests set this to zero.
func WithStreamDelay(d time.Duration) Option {
	return func(c *Client) { c.streamDelay = d }
}

// WithRand injects the randomness source used for retry jitter and stream
// chunk sizing, letting tests make both deterministic.
func WithRand(r *rand.Rand) Option {
	return func(c *Client) { c.rng = r }
}

// New creates a [Client] over the given provider.
func New(provider llm.Provider, cfg config.LLMConfig, opts ...Option) *Client {
	workers := cfg.WorkerThreads
	if workers <= 0 {
		workers = 8
	}
	c := &Client{
		provider:    provider,
		cfg:         cfg,
		sem:         semaphore.NewWeighted(int64(workers)),
		streamDelay: 50 * time.Millisecond,
		chains:      make(map[string]*resilience.Chain),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveModel picks the model to use for a call: the hint when the backend
// offers it, otherwise the first configured fallback that is available,
// otherwise the first available model. When discovery fails the hint is
// returned unchanged and the provider decides.
func (c *Client) ResolveModel(ctx context.Context, hint string) string {
	available := c.availableModels(ctx)
	if available == nil {
		return hint
	}
	if available[hint] {
		return hint
	}
	for _, m := range c.cfg.FallbackModels {
		if available[m] {
			slog.Info("preferred model unavailable, using fallback", "hint", hint, "model", m)
			return m
		}
	}
	for m := range available {
		slog.Warn("no configured model available, using first discovered", "hint", hint, "model", m)
		return m
	}
	return hint
}

// availableModels returns the cached discovery set, refreshing it when
// stale. A nil return means discovery is currently impossible.
func (c *Client) availableModels(ctx context.Context) map[string]bool {
	c.modelsMu.Lock()
	defer c.modelsMu.Unlock()

	if c.models != nil && time.Since(c.modelsFetched) < modelRefreshInterval {
		return c.models
	}
	names, err := c.provider.ListModels(ctx)
	if err != nil {
		slog.Warn("model discovery failed", "error", err)
		return c.models
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.TrimPrefix(n, "models/")] = true
	}
	c.models = set
	c.modelsFetched = time.Now()
	return c.models
}

// chainFor returns the failover chain for calls preferring the given model.
// Chains are cached so circuit-breaker state persists across calls.
func (c *Client) chainFor(preferred string) *resilience.Chain {
	c.chainsMu.Lock()
	defer c.chainsMu.Unlock()
	if chain, ok := c.chains[preferred]; ok {
		return chain
	}
	names := []string{preferred}
	for _, m := range c.cfg.FallbackModels {
		if m != preferred {
			names = append(names, m)
		}
	}
	chain := resilience.NewChain(names, resilience.BreakerConfig{})
	c.chains[preferred] = chain
	return chain
}

// generate runs one provider call through the worker pool, the failover
// chain, and the retry loop. kind labels the call in logs and metrics.
func (c *Client) generate(ctx context.Context, kind, hint string, parts []llm.Part, gencfg *llm.GenerateConfig) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)

	preferred := c.ResolveModel(ctx, hint)
	retryCfg := resilience.RetryConfig{
		MaxAttempts:    c.cfg.MaxRetries,
		BackoffBase:    c.cfg.BackoffBase(),
		AttemptTimeout: c.cfg.Timeout(),
		Rand:           c.rng,
	}

	start := time.Now()
	text, model, err := resilience.Execute(c.chainFor(preferred), func(model string) (string, error) {
		return resilience.Retry(ctx, retryCfg, func(attemptCtx context.Context) (string, error) {
			return c.provider.GenerateContent(attemptCtx, model, parts, gencfg)
		})
	})

	if c.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		recordModel := model
		if recordModel == "" {
			recordModel = preferred
		}
		c.metrics.RecordLLMRequest(ctx, recordModel, kind, status, time.Since(start).Seconds())
	}
	if err != nil {
		return "", fmt.Errorf("%s call failed: %w", kind, err)
	}
	return text, nil
}

// float64n returns a deterministic random float in [0,1) when a seeded
// source was injected.
func (c *Client) float64n() float64 {
	if c.rng == nil {
		return rand.Float64()
	}
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.Float64()
}
