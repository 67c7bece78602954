// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to feed controlled model output without a live
// backend and to verify what the client sent. Response fields are consumed
// as a queue so successive calls can return different payloads; when the
// queue is exhausted the last entry repeats.
//
// Example:
//
//	p := &mock.Provider{
//	    GenerateResponses: []string{`{"score": 40}`},
//	}
//	out, err := p.GenerateContent(ctx, "m", parts, nil)
package mock

import (
	"context"
	"sync"

	"github.com/submit4201/candor/pkg/provider/llm"
)

// GenerateCall records a single invocation of GenerateContent or
// GenerateStream.
type GenerateCall struct {
	// Model is the model identifier passed by the caller.
	Model string
	// Parts is the request content.
	Parts []llm.Part
	// Config is the generation config, possibly nil.
	Config *llm.GenerateConfig
	// Stream is true for GenerateStream invocations.
	Stream bool
}

// Provider is a mock implementation of llm.Provider.
// Zero values cause methods to return empty output and nil errors.
// Set the Err fields to inject failures.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// GenerateResponses is the queue of texts returned by GenerateContent
	// (and, split into deltas, by GenerateStream). The last entry repeats
	// once the queue is exhausted.
	GenerateResponses []string

	// GenerateErr, if non-nil, is returned by GenerateContent and emitted
	// as the terminal delta by GenerateStream.
	GenerateErr error

	// FailFirst makes the first N generate calls fail with GenerateErr
	// before responses start succeeding. Used to exercise retry paths.
	FailFirst int

	// StreamDeltaSize is the number of bytes per delta emitted by
	// GenerateStream. Zero means the whole response in one delta.
	StreamDeltaSize int

	// Models is returned by ListModels.
	Models []string

	// ListModelsErr, if non-nil, is returned by ListModels.
	ListModelsErr error

	// --- Call records (read after test) ---

	// GenerateCalls records every generate invocation in order.
	GenerateCalls []GenerateCall

	// ListModelsCallCount is the number of ListModels invocations.
	ListModelsCallCount int

	generateSeq int
}

var _ llm.Provider = (*Provider)(nil)

// Name implements llm.Provider.
func (p *Provider) Name() string { return "mock" }

// GenerateContent records the call and returns the next queued response.
func (p *Provider) GenerateContent(_ context.Context, model string, parts []llm.Part, cfg *llm.GenerateConfig) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Model: model, Parts: parts, Config: cfg})
	return p.nextResponseLocked()
}

// GenerateStream records the call and emits the next queued response as a
// sequence of deltas.
func (p *Provider) GenerateStream(ctx context.Context, model string, parts []llm.Part, cfg *llm.GenerateConfig) (<-chan llm.StreamDelta, error) {
	p.mu.Lock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Model: model, Parts: parts, Config: cfg, Stream: true})
	text, err := p.nextResponseLocked()
	size := p.StreamDeltaSize
	p.mu.Unlock()

	out := make(chan llm.StreamDelta, 16)
	go func() {
		defer close(out)
		if err != nil {
			out <- llm.StreamDelta{Err: err}
			return
		}
		if size <= 0 {
			size = len(text)
		}
		for start := 0; start < len(text); start += size {
			end := start + size
			if end > len(text) {
				end = len(text)
			}
			select {
			case out <- llm.StreamDelta{Text: text[start:end]}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ListModels returns the configured model list.
func (p *Provider) ListModels(context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListModelsCallCount++
	if p.ListModelsErr != nil {
		return nil, p.ListModelsErr
	}
	return append([]string(nil), p.Models...), nil
}

// Reset clears all call records and the response cursor.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = nil
	p.ListModelsCallCount = 0
	p.generateSeq = 0
}

func (p *Provider) nextResponseLocked() (string, error) {
	seq := p.generateSeq
	p.generateSeq++
	if p.FailFirst > 0 && seq < p.FailFirst {
		return "", p.GenerateErr
	}
	if p.GenerateErr != nil && p.FailFirst == 0 {
		return "", p.GenerateErr
	}
	if len(p.GenerateResponses) == 0 {
		return "", nil
	}
	idx := seq
	if p.FailFirst > 0 {
		idx = seq - p.FailFirst
	}
	if idx >= len(p.GenerateResponses) {
		idx = len(p.GenerateResponses) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return p.GenerateResponses[idx], nil
}
