package services

import (
	"context"
	"fmt"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/internal/llmclient"
	"github.com/submit4201/candor/internal/promptbuild"
)

// Dimension is the generic LLM-backed analysis service. Each instance binds
// a registered prompt builder to a word-count gate; the streaming shape is
// identical across dimensions: a coarse pass while the transcript is still
// partial, then a final pass whose terminal chunk becomes the service result.
type Dimension struct {
	deps     Deps
	name     string
	minWords int
	build    promptbuild.BuilderFunc
}

// NewDimension builds the LLM dimension for a registered prompt builder.
func NewDimension(deps Deps, name string, minWords int) (*Dimension, error) {
	build, ok := promptbuild.For(name)
	if !ok {
		return nil, fmt.Errorf("services: no prompt builder for dimension %q", name)
	}
	return &Dimension{deps: deps, name: name, minWords: minWords, build: build}, nil
}

var _ analysis.Service = (*Dimension)(nil)

func (s *Dimension) Name() string    { return s.name }
func (s *Dimension) Version() string { return Version }

func (s *Dimension) StreamAnalyze(ctx context.Context, actx *analysis.Context) <-chan analysis.ResultChunk {
	out := make(chan analysis.ResultChunk, 8)
	go func() {
		defer close(out)
		em := analysis.NewEmitter(ctx, s.name, Version, out)

		if wc := actx.WordCount(); wc < s.minWords {
			em.FailFinal(analysis.Errorf(analysis.ErrInsufficientData,
				"transcript too short for %s analysis (%d words, need %d)", s.name, wc, s.minWords))
			return
		}

		// Coarse pass only while the transcript is still settling; once it
		// is final a second pass would see identical input.
		if _, final := actx.TranscriptFinal(); !final {
			s.runPhase(ctx, actx, em, analysis.PhaseCoarse)
			if ctx.Err() != nil {
				return
			}
		}
		s.runPhase(ctx, actx, em, analysis.PhaseFinal)
	}()
	return out
}

// runPhase streams one prompt pass. In the coarse phase every chunk,
// including the terminal one, is forwarded as partial; in the final phase the
// terminal chunk settles the service result or materializes the failure.
func (s *Dimension) runPhase(ctx context.Context, actx *analysis.Context, em *analysis.Emitter, phase analysis.Phase) {
	p := s.build(actx, phase)
	req := llmclient.JSONRequest{
		Prompt: p.Text,
		Schema: p.Schema,
		Audio:  actx.AudioBytes(),
		MIME:   actx.Meta().MimeType,
	}

	for chunk := range s.deps.LLM.JSONStream(ctx, req) {
		if !chunk.Done {
			em.Partial(nil, chunk.Data)
			continue
		}
		if phase == analysis.PhaseCoarse {
			if chunk.Err != nil {
				s.deps.logger().Warn("coarse pass failed, continuing to final",
					"service", s.name, "request_id", actx.Meta().RequestID, "error", chunk.Err)
				return
			}
			em.Partial(nil, chunk.Data)
			return
		}
		if chunk.Err != nil {
			em.FailFinal(analysis.Errorf(classifyLLMError(ctx, chunk.Err),
				"%s analysis failed: %v", s.name, chunk.Err))
			return
		}
		actx.SetServiceResult(s.name, chunk.Data)
		em.Final(nil, chunk.Data)
	}
}
