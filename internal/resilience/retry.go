package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// RetryConfig tunes the [Retry] loop.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first.
	// Default: 3.
	MaxAttempts int

	// BackoffBase is the delay before attempt n+1, doubled per attempt:
	// base, 2*base, 4*base, ... Default: 1s.
	BackoffBase time.Duration

	// AttemptTimeout bounds each attempt. Zero means no per-attempt bound
	// beyond the caller's context.
	AttemptTimeout time.Duration

	// Jitter adds a uniform random fraction of the backoff delay to spread
	// synchronized retries. Default: 0.25.
	Jitter float64

	// Rand supplies randomness for jitter. Nil uses the shared source;
	// tests inject a seeded one for determinism.
	Rand *rand.Rand
}

func (cfg *RetryConfig) withDefaults() RetryConfig {
	out := *cfg
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 3
	}
	if out.BackoffBase <= 0 {
		out.BackoffBase = time.Second
	}
	if out.Jitter == 0 {
		out.Jitter = 0.25
	}
	return out
}

// Retry runs op with exponential backoff until it succeeds, attempts are
// exhausted, or ctx is cancelled. The error from the last attempt is
// returned, wrapped with the attempt count; a cancelled context surfaces
// as ctx.Err.
func Retry[T any](ctx context.Context, cfg RetryConfig, op func(context.Context) (T, error)) (T, error) {
	c := cfg.withDefaults()

	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if c.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.AttemptTimeout)
		}
		result, err := op(attemptCtx)
		cancel()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt == c.MaxAttempts {
			break
		}

		delay := c.BackoffBase << (attempt - 1)
		delay += time.Duration(c.Jitter * c.rand() * float64(delay))
		slog.Debug("retrying after failure",
			"attempt", attempt,
			"delay", delay,
			"error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, fmt.Errorf("all %d attempts failed: %w", c.MaxAttempts, lastErr)
}

func (cfg *RetryConfig) rand() float64 {
	if cfg.Rand != nil {
		return cfg.Rand.Float64()
	}
	return rand.Float64()
}

// IsTimeout reports whether err stems from a deadline expiry rather than a
// provider-side failure.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
