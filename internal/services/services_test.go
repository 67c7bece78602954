package services

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/internal/config"
	"github.com/submit4201/candor/internal/llmclient"
	"github.com/submit4201/candor/pkg/provider/llm/mock"
)

func testDeps(p *mock.Provider) Deps {
	cfg := config.LLMConfig{
		ModelTranscribe: "gemini-2.0-flash",
		ModelAnalysis:   "gemini-2.0-flash",
		ModelStructured: "gemini-2.0-flash",
		FallbackModels:  []string{"gemini-2.0-flash"},
		TimeoutS:        5,
		MaxRetries:      1,
		BackoffBaseS:    0.001,
		WorkerThreads:   4,
	}
	return Deps{LLM: llmclient.New(p, cfg,
		llmclient.WithStreamDelay(0),
		llmclient.WithRand(rand.New(rand.NewSource(7))),
	)}
}

func drain(t *testing.T, ch <-chan analysis.ResultChunk) []analysis.ResultChunk {
	t.Helper()
	var out []analysis.ResultChunk
	for c := range ch {
		out = append(out, c)
	}
	if len(out) == 0 {
		t.Fatal("service emitted no chunks")
	}
	return out
}

func terminal(t *testing.T, chunks []analysis.ResultChunk) analysis.ResultChunk {
	t.Helper()
	last := chunks[len(chunks)-1]
	if last.Partial {
		t.Fatal("last chunk is partial")
	}
	if last.Phase != analysis.PhaseFinal {
		t.Fatalf("last chunk phase = %q", last.Phase)
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, c.ChunkIndex)
		}
	}
	return last
}

func textCtx(transcript string) *analysis.Context {
	return analysis.NewContext(transcript, nil, analysis.Meta{RequestID: "r1"})
}

func TestDimensionGate(t *testing.T) {
	svc, err := NewDimension(testDeps(&mock.Provider{}), "psychological", 5)
	if err != nil {
		t.Fatal(err)
	}
	chunks := drain(t, svc.StreamAnalyze(t.Context(), textCtx("too short")))
	last := terminal(t, chunks)
	if !last.HasError(analysis.ErrInsufficientData) {
		t.Fatalf("errors = %v", last.Errors)
	}
}

func TestDimensionUnknownName(t *testing.T) {
	if _, err := NewDimension(testDeps(&mock.Provider{}), "astrology", 5); err == nil {
		t.Fatal("unknown dimension accepted")
	}
}

func TestDimensionCoarseThenFinal(t *testing.T) {
	p := &mock.Provider{GenerateResponses: []string{
		`{"emotional_state":"Calm","stress_level":0.2}`,
		`{"emotional_state":"Calm","stress_level":0.3,"psychological_summary":"steady"}`,
	}}
	svc, err := NewDimension(testDeps(p), "psychological", 5)
	if err != nil {
		t.Fatal(err)
	}

	actx := textCtx("this is a long enough transcript for the gate to open")
	chunks := drain(t, svc.StreamAnalyze(t.Context(), actx))
	last := terminal(t, chunks)

	if len(p.GenerateCalls) != 2 {
		t.Fatalf("provider calls = %d, want coarse + final", len(p.GenerateCalls))
	}
	if last.LLM["psychological_summary"] != "steady" {
		t.Fatalf("terminal payload = %v", last.LLM)
	}
	// Coarse output only travels as partial chunks.
	for _, c := range chunks[:len(chunks)-1] {
		if !c.Partial {
			t.Fatal("non-terminal chunk not marked partial")
		}
	}
	result, ok := actx.ServiceResult("psychological")
	if !ok || result["psychological_summary"] != "steady" {
		t.Fatalf("service result = %v", result)
	}
}

func TestDimensionSkipsCoarseWhenFinalTranscript(t *testing.T) {
	p := &mock.Provider{GenerateResponses: []string{`{"dominant_attitude":"Cooperative"}`}}
	svc, err := NewDimension(testDeps(p), "speaker_attitude", 5)
	if err != nil {
		t.Fatal(err)
	}

	actx := textCtx("")
	actx.FinalizeTranscript("a finalized transcript with plenty of words to analyze")
	terminal(t, drain(t, svc.StreamAnalyze(t.Context(), actx)))

	if len(p.GenerateCalls) != 1 {
		t.Fatalf("provider calls = %d, want final only", len(p.GenerateCalls))
	}
}

func TestDimensionProviderFailure(t *testing.T) {
	p := &mock.Provider{GenerateErr: errors.New("quota exhausted")}
	svc, err := NewDimension(testDeps(p), "manipulation", 5)
	if err != nil {
		t.Fatal(err)
	}

	actx := textCtx("")
	actx.FinalizeTranscript("a finalized transcript with plenty of words to analyze")
	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), actx)))
	if !last.HasError(analysis.ErrLLMProvider) {
		t.Fatalf("errors = %v", last.Errors)
	}
	if _, ok := actx.ServiceResult("manipulation"); ok {
		t.Fatal("failed dimension recorded a result")
	}
}

func TestDimensionSchemaViolation(t *testing.T) {
	// Manipulation enforces its schema; an empty object violates it.
	p := &mock.Provider{GenerateResponses: []string{`{}`}}
	svc, err := NewDimension(testDeps(p), "manipulation", 5)
	if err != nil {
		t.Fatal(err)
	}

	actx := textCtx("")
	actx.FinalizeTranscript("a finalized transcript with plenty of words to analyze")
	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), actx)))
	if !last.HasError(analysis.ErrSchemaViolation) {
		t.Fatalf("errors = %v", last.Errors)
	}
}
