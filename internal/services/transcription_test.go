package services

import (
	"errors"
	"testing"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/pkg/provider/llm/mock"
)

func TestTranscriptionTextOnly(t *testing.T) {
	svc := NewTranscription(testDeps(&mock.Provider{}))
	actx := textCtx("  a transcript provided directly  ")

	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), actx)))
	if last.Local["transcript"] != "a transcript provided directly" {
		t.Fatalf("transcript = %v", last.Local["transcript"])
	}
	if last.Local["word_count"] != 4 {
		t.Errorf("word_count = %v", last.Local["word_count"])
	}
	if final, ok := actx.TranscriptFinal(); !ok || final != "a transcript provided directly" {
		t.Errorf("final transcript = %q, ok = %v", final, ok)
	}
}

func TestTranscriptionFromAudio(t *testing.T) {
	p := &mock.Provider{
		GenerateResponses: []string{"hello there from the audio"},
		StreamDeltaSize:   6,
	}
	svc := NewTranscription(testDeps(p))
	actx := audioCtx(t, []byte("RIFFfake"))

	chunks := drain(t, svc.StreamAnalyze(t.Context(), actx))
	last := terminal(t, chunks)

	if last.Local["transcript"] != "hello there from the audio" {
		t.Fatalf("transcript = %v", last.Local["transcript"])
	}
	if len(chunks) < 2 {
		t.Error("no partial transcript chunks streamed")
	}
	// Partials carry the growing transcript and publish it to the context.
	for _, c := range chunks[:len(chunks)-1] {
		if !c.Partial {
			t.Fatal("non-terminal chunk not partial")
		}
		if _, ok := c.Local["transcript_partial"]; !ok {
			t.Fatalf("partial chunk payload = %v", c.Local)
		}
	}
	if final, ok := actx.TranscriptFinal(); !ok || final == "" {
		t.Errorf("final transcript = %q, ok = %v", final, ok)
	}
}

func TestTranscriptionNoInput(t *testing.T) {
	svc := NewTranscription(testDeps(&mock.Provider{}))
	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), textCtx(""))))
	if !last.HasError(analysis.ErrInsufficientData) {
		t.Fatalf("errors = %v", last.Errors)
	}
}

func TestTranscriptionProviderFailure(t *testing.T) {
	p := &mock.Provider{GenerateErr: errors.New("audio rejected")}
	svc := NewTranscription(testDeps(p))
	actx := audioCtx(t, []byte("RIFFfake"))

	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), actx)))
	if !last.HasError(analysis.ErrTranscriptionFailed) {
		t.Fatalf("errors = %v", last.Errors)
	}
	if _, ok := actx.TranscriptFinal(); ok {
		t.Error("failed transcription finalized the transcript")
	}
}
