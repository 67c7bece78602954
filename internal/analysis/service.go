package analysis

import "context"

// Service is the streaming analyzer contract.
//
// StreamAnalyze returns a channel of [ResultChunk] values and starts
// producing on a background goroutine. The contract every implementation
// must honor:
//
//  1. Emit at least one chunk with Phase=[PhaseFinal] and Partial=false.
//  2. Emit nothing after the terminal chunk, then close the channel.
//  3. Observe ctx cancellation at every blocking point and stop promptly.
//  4. Never mutate another service's entry in the shared result map.
//  5. Write its own terminal result via [Context.SetServiceResult] before
//     emitting the final chunk.
//
// Callers must drain the returned channel to avoid goroutine leaks.
type Service interface {
	// Name is the stable identifier used in result maps and event envelopes.
	Name() string

	// Version identifies the analyzer revision recorded on every chunk.
	Version() string

	// StreamAnalyze runs the analysis against the shared request state.
	StreamAnalyze(ctx context.Context, ac *Context) <-chan ResultChunk
}
