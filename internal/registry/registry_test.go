package registry

import (
	"context"
	"testing"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/internal/config"
	"github.com/submit4201/candor/internal/llmclient"
	"github.com/submit4201/candor/internal/services"
	"github.com/submit4201/candor/pkg/provider/llm/mock"
)

func TestDefaultRegistryCoversAllServices(t *testing.T) {
	r := Default()
	want := []string{
		"transcription", "audio_quality", "quantitative_metrics",
		"enhanced_acoustic", "linguistic_enhancement",
		"manipulation", "argument", "psychological", "conversation_flow",
		"enhanced_understanding", "linguistic", "speaker_attitude",
		"session_insights", "credibility",
	}
	if got := len(r.Names()); got != len(want) {
		t.Fatalf("registered %d services, want %d: %v", got, len(want), r.Names())
	}
	for _, name := range want {
		svc, err := r.Build(name, services.Deps{})
		if err != nil {
			t.Errorf("Build(%q): %v", name, err)
			continue
		}
		if svc.Name() != name {
			t.Errorf("Build(%q) produced service named %q", name, svc.Name())
		}
	}
}

func TestShortTranscriptGatesEveryDimension(t *testing.T) {
	// Seven words sit below every dimension's gate, so each LLM service must
	// settle with a single final insufficient-data chunk and never reach the
	// provider.
	p := &mock.Provider{GenerateResponses: []string{`{"score": 40}`}}
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
	deps := services.Deps{LLM: llmclient.New(p, cfg, llmclient.WithStreamDelay(0))}
	actx := analysis.NewContext("seven words is never enough material here", nil, analysis.Meta{RequestID: "r1"})

	r := Default()
	for name := range llmDimensions {
		t.Run(name, func(t *testing.T) {
			svc, err := r.Build(name, deps)
			if err != nil {
				t.Fatalf("Build(%q): %v", name, err)
			}
			var chunks []analysis.ResultChunk
			for c := range svc.StreamAnalyze(context.Background(), actx) {
				chunks = append(chunks, c)
			}
			if len(chunks) != 1 {
				t.Fatalf("chunks = %d, want exactly 1", len(chunks))
			}
			c := chunks[0]
			if c.Partial || c.Phase != analysis.PhaseFinal {
				t.Errorf("chunk not terminal: partial=%v phase=%v", c.Partial, c.Phase)
			}
			if !c.HasError(analysis.ErrInsufficientData) {
				t.Errorf("chunk errors = %v, want insufficient_data", c.Errors)
			}
		})
	}
	if n := len(p.GenerateCalls); n != 0 {
		t.Errorf("provider consulted %d times for sub-gate transcripts", n)
	}
}

func TestBuildUnknown(t *testing.T) {
	if _, err := Default().Build("palmistry", services.Deps{}); err == nil {
		t.Fatal("unknown service built without error")
	}
}

func TestBuildAllPropagatesFailure(t *testing.T) {
	r := Default()
	if _, err := r.BuildAll([]string{"credibility", "palmistry"}, services.Deps{}); err == nil {
		t.Fatal("BuildAll ignored an unknown name")
	}
	svcs, err := r.BuildAll([]string{"credibility", "session_insights"}, services.Deps{})
	if err != nil || len(svcs) != 2 {
		t.Fatalf("BuildAll: %v, %d services", err, len(svcs))
	}
}
