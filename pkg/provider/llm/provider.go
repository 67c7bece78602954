// Package llm defines the Provider interface for generative model backends.
//
// A provider wraps one vendor SDK (e.g. the Gemini API) and exposes the three
// primitives the analysis client needs: a batch content call, a streaming
// content call, and model discovery. Structured output is requested through
// [GenerateConfig]: a response MIME type of "application/json" plus an
// optional JSON Schema the provider enforces natively.
//
// Implementors must be safe for concurrent use. Channels returned by
// GenerateStream must be closed by the implementation when the stream ends or
// when the supplied context is cancelled; callers must drain the channel to
// avoid goroutine leaks.
package llm

import "context"

// Part is one piece of multimodal request content. Exactly one of Text or
// Blob is set; Blob carries MIME to describe the payload (e.g. "audio/wav").
type Part struct {
	Text string
	Blob []byte
	MIME string
}

// TextPart builds a text-only [Part].
func TextPart(s string) Part { return Part{Text: s} }

// BlobPart builds a binary [Part] with its MIME type.
func BlobPart(data []byte, mime string) Part { return Part{Blob: data, MIME: mime} }

// GenerateConfig tunes a single generation call. The zero value requests
// plain text with provider defaults.
type GenerateConfig struct {
	// ResponseMIMEType requests a specific output encoding. Set to
	// "application/json" for structured output.
	ResponseMIMEType string

	// ResponseSchema is a JSON Schema (as a plain map) the output must
	// conform to. Only honored when ResponseMIMEType is "application/json".
	ResponseSchema map[string]any

	// Temperature overrides the sampling temperature when non-nil.
	Temperature *float64

	// MaxOutputTokens caps generation length. Zero means provider default.
	MaxOutputTokens int
}

// StreamDelta is one increment of a streaming generation. A non-nil Err
// terminates the stream; the channel is closed right after.
type StreamDelta struct {
	Text string
	Err  error
}

// Provider is the abstraction over a generative model backend.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
type Provider interface {
	// Name identifies the backend in logs and metrics (e.g. "gemini").
	Name() string

	// GenerateContent sends parts to the named model and returns the full
	// concatenated text of the response.
	GenerateContent(ctx context.Context, model string, parts []Part, cfg *GenerateConfig) (string, error)

	// GenerateStream sends parts to the named model and returns a channel of
	// incremental text deltas. The channel is closed when generation ends,
	// an error is emitted, or ctx is cancelled. The returned channel is never
	// nil when error is nil.
	GenerateStream(ctx context.Context, model string, parts []Part, cfg *GenerateConfig) (<-chan StreamDelta, error)

	// ListModels returns the identifiers of the models currently available
	// to this backend.
	ListModels(ctx context.Context) ([]string, error)
}
