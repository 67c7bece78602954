package services

import (
	"context"
	"strings"

	"github.com/submit4201/candor/internal/analysis"
)

// Transcription converts request audio into the shared transcript. Partial
// transcripts are published to the context as they stream in; the terminal
// chunk finalizes the transcript for every downstream gate.
type Transcription struct {
	deps Deps
}

// NewTranscription builds the transcription service.
func NewTranscription(deps Deps) *Transcription {
	return &Transcription{deps: deps}
}

var _ analysis.Service = (*Transcription)(nil)

func (s *Transcription) Name() string    { return "transcription" }
func (s *Transcription) Version() string { return Version }

// StreamAnalyze transcribes the request audio. A text-only request finalizes
// the supplied transcript immediately so the rest of the pipeline treats both
// input shapes the same way.
func (s *Transcription) StreamAnalyze(ctx context.Context, actx *analysis.Context) <-chan analysis.ResultChunk {
	out := make(chan analysis.ResultChunk, 8)
	go func() {
		defer close(out)
		em := analysis.NewEmitter(ctx, s.Name(), Version, out)

		audio := actx.AudioBytes()
		if len(audio) == 0 {
			text := strings.TrimSpace(actx.Transcript())
			if text == "" {
				em.FailFinal(analysis.Errorf(analysis.ErrInsufficientData,
					"neither audio nor transcript supplied"))
				return
			}
			actx.FinalizeTranscript(text)
			s.finish(em, actx, text)
			return
		}

		var finalText string
		for d := range s.deps.LLM.TranscribeStream(ctx, audio, actx.Meta().MimeType, actx.Transcript()) {
			if d.Err != nil {
				s.deps.logger().Error("transcription failed",
					"request_id", actx.Meta().RequestID, "error", d.Err)
				em.FailFinal(analysis.Errorf(analysis.ErrTranscriptionFailed,
					"transcription failed: %v", d.Err))
				return
			}
			if d.Partial {
				actx.UpdatePartialTranscript(d.Text)
				em.Partial(map[string]any{"transcript_partial": d.Text}, nil)
				continue
			}
			finalText = strings.TrimSpace(d.Text)
		}

		if finalText == "" {
			em.FailFinal(analysis.Errorf(analysis.ErrTranscriptionFailed,
				"transcription produced no text"))
			return
		}
		actx.FinalizeTranscript(finalText)
		s.finish(em, actx, finalText)
	}()
	return out
}

func (s *Transcription) finish(em *analysis.Emitter, actx *analysis.Context, text string) {
	result := map[string]any{
		"transcript": text,
		"word_count": len(strings.Fields(text)),
	}
	actx.SetServiceResult(s.Name(), result)
	em.Final(result, nil)
}
