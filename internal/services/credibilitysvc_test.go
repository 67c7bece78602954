package services

import (
	"math"
	"testing"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/pkg/provider/llm/mock"
)

func TestCollectMetrics(t *testing.T) {
	actx := textCtx("hello there")
	actx.SetEnhancedAcoustic(map[string]any{
		"pitch_jitter": 1.2,
		"hnr_mean":     14.5,
		"pause_rate":   6.0,
		"analysis_quality": "good",
	})
	actx.SetQuantitativeMetrics(map[string]any{
		"numerical_linguistic_metrics": map[string]any{
			"speech_rate_wpm":     150.0,
			"hesitation_rate_hpm": 3.0,
			"word_count":          100,
			"qualifier_count":     5,
		},
	})
	actx.SetEnhancedLinguistic(map[string]any{
		"pronoun_ratios": map[string]any{"first_person_ratio": 0.08},
	})
	actx.SetSpeakerSegments([]analysis.SpeakerSegment{
		{Speaker: "A", StartS: 0, EndS: 2},
		{Speaker: "B", StartS: 2.6, EndS: 5},
	})

	m := collectMetrics(actx)
	want := map[string]float64{
		"pitch_jitter":     1.2,
		"hnr_mean":         14.5,
		"pause_rate":       6.0,
		"speech_rate":      150,
		"hesitation_rate":  3,
		"qualifier_ratio":  0.05,
		"pronoun_ratio":    0.08,
		"response_latency": 0.6,
	}
	for k, v := range want {
		got, ok := m[k]
		if !ok {
			t.Errorf("missing metric %q", k)
			continue
		}
		if math.Abs(got-v) > 1e-9 {
			t.Errorf("%s = %v, want %v", k, got, v)
		}
	}
	if _, ok := m["analysis_quality"]; ok {
		t.Error("non-numeric field leaked into metrics")
	}
}

func TestResponseLatency(t *testing.T) {
	t.Run("same speaker ignored", func(t *testing.T) {
		_, ok := responseLatency([]analysis.SpeakerSegment{
			{Speaker: "A", StartS: 0, EndS: 1},
			{Speaker: "A", StartS: 2, EndS: 3},
		})
		if ok {
			t.Fatal("latency computed without a speaker change")
		}
	})
	t.Run("overlap clamps to zero", func(t *testing.T) {
		got, ok := responseLatency([]analysis.SpeakerSegment{
			{Speaker: "A", StartS: 0, EndS: 2},
			{Speaker: "B", StartS: 1.5, EndS: 3},
		})
		if !ok || got != 0 {
			t.Fatalf("latency = %v, ok = %v", got, ok)
		}
	})
}

func TestCredibilityService(t *testing.T) {
	actx := textCtx("hello there")
	actx.SetEnhancedAcoustic(map[string]any{"pitch_jitter": 1.1})

	svc := NewCredibility(testDeps(&mock.Provider{}))
	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), actx)))
	if len(last.Errors) != 0 {
		t.Fatalf("errors = %v", last.Errors)
	}
	if _, ok := last.Local["credibility_score"]; !ok {
		t.Fatalf("result = %v", last.Local)
	}
	if _, ok := actx.ServiceResult("credibility"); !ok {
		t.Error("credibility result not published to context")
	}
}

func TestCredibilityServiceNoMetrics(t *testing.T) {
	svc := NewCredibility(testDeps(&mock.Provider{}))
	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), textCtx("hello"))))
	if !last.HasError(analysis.ErrInsufficientData) {
		t.Fatalf("errors = %v", last.Errors)
	}
}

func TestPriorScoreFromHistory(t *testing.T) {
	actx := historyCtx(
		map[string]any{"credibility_score": 40.0},
		map[string]any{"credibility_score": 70.0},
	)
	prior := priorScore(actx)
	if prior == nil || *prior != 70 {
		t.Fatalf("prior = %v, want most recent entry", prior)
	}

	if priorScore(textCtx("hi")) != nil {
		t.Fatal("prior without history")
	}
}
