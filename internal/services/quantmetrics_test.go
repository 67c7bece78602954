package services

import (
	"errors"
	"testing"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/pkg/provider/llm/mock"
)

func TestNumericalMetrics(t *testing.T) {
	text := "Um, I think I was definitely there. I was was maybe late, you know."
	m := numericalMetrics(text, 30)

	if m["hesitation_marker_count"] != 1 {
		t.Errorf("hesitations = %v", m["hesitation_marker_count"])
	}
	// "maybe" plus the phrase "i think".
	if m["qualifier_count"] != 2 {
		t.Errorf("qualifiers = %v", m["qualifier_count"])
	}
	if m["certainty_indicator_count"] != 1 {
		t.Errorf("certainty = %v", m["certainty_indicator_count"])
	}
	// "you know" phrase.
	if m["filler_word_count"].(int) < 1 {
		t.Errorf("fillers = %v", m["filler_word_count"])
	}
	// consecutive "was was"
	if m["repetition_count"] != 1 {
		t.Errorf("repetitions = %v", m["repetition_count"])
	}
	if m["sentence_count"] != 2 {
		t.Errorf("sentences = %v", m["sentence_count"])
	}

	// 30s of audio: wpm is words / 0.5 minutes.
	wc := m["word_count"].(int)
	if got := m["speech_rate_wpm"].(float64); got != float64(wc)*2 {
		t.Errorf("speech_rate_wpm = %v for %d words", got, wc)
	}
	if m["hesitation_rate_hpm"].(float64) != 2 {
		t.Errorf("hesitation_rate_hpm = %v", m["hesitation_rate_hpm"])
	}

	ttr := m["vocabulary_richness_ttr"].(float64)
	if ttr <= 0 || ttr > 1 {
		t.Errorf("ttr = %v", ttr)
	}
}

func TestNumericalMetricsNoDuration(t *testing.T) {
	m := numericalMetrics("some words here", 0)
	if _, ok := m["speech_rate_wpm"]; ok {
		t.Error("speech rate present without audio duration")
	}
}

func TestEngagementFeatures(t *testing.T) {
	t.Run("inquisitive", func(t *testing.T) {
		ratio, level, _, events := engagementFeatures("Why? How? When? Tell me everything.")
		if ratio < 0.5 {
			t.Errorf("question ratio = %v", ratio)
		}
		if level != "high" {
			t.Errorf("engagement = %q", level)
		}
		found := false
		for _, e := range events {
			if e == "high inquisitiveness" {
				found = true
			}
		}
		if !found {
			t.Errorf("events = %v", events)
		}
	})

	t.Run("flat", func(t *testing.T) {
		_, level, energy, _ := engagementFeatures("It was a normal day. Nothing happened. I went home.")
		if level != "low" || energy >= 0.3 {
			t.Errorf("level = %q, energy = %v", level, energy)
		}
	})
}

func TestEstimateSentiment(t *testing.T) {
	label, score, _, _ := estimateSentiment("I am happy and glad, it was great")
	if label != "positive" || score <= 0.5 {
		t.Errorf("label = %q, score = %v", label, score)
	}

	label, _, confidence, emotions := estimateSentiment("the quick brown fox")
	if label != "neutral" || confidence != 0.1 || len(emotions) != 1 {
		t.Errorf("neutral case: %q %v %v", label, confidence, emotions)
	}
}

func TestQuantMetricsStream(t *testing.T) {
	p := &mock.Provider{GenerateResponses: []string{
		`{"engagement_level":"medium","overall_sentiment_label":"neutral"}`,
	}}
	svc := NewQuantMetrics(testDeps(p))

	actx := textCtx("I was definitely at home that evening, you know, just watching television.")
	chunks := drain(t, svc.StreamAnalyze(t.Context(), actx))
	last := terminal(t, chunks)

	if chunks[0].Partial != true {
		t.Fatal("first chunk not the coarse numerical pass")
	}
	if last.LLM == nil {
		t.Fatal("LLM interaction metrics missing from terminal chunk")
	}
	quant := actx.QuantitativeMetrics()
	if _, ok := quant["numerical_linguistic_metrics"]; !ok {
		t.Error("numerical metrics not published to context")
	}
	if _, ok := quant["interaction_metrics"]; !ok {
		t.Error("interaction metrics not published to context")
	}
}

func TestQuantMetricsLocalFallback(t *testing.T) {
	p := &mock.Provider{GenerateErr: errors.New("llm unavailable")}
	svc := NewQuantMetrics(testDeps(p))

	actx := textCtx("I was there. Nothing unusual happened at all that night.")
	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), actx)))

	if last.HasError(analysis.ErrLLMProvider) {
		t.Fatal("LLM failure escalated instead of degrading to local fallback")
	}
	interaction, ok := last.Local["interaction_metrics"].(map[string]any)
	if !ok {
		t.Fatalf("local chunk = %v", last.Local)
	}
	if interaction["engagement_level"] == nil {
		t.Error("fallback produced no engagement level")
	}
}

func TestLocalInteractionMetricsTurns(t *testing.T) {
	segs := []analysis.SpeakerSegment{
		{Speaker: "A", StartS: 0, EndS: 2},
		{Speaker: "B", StartS: 2.5, EndS: 4},
		{Speaker: "A", StartS: 4.2, EndS: 9},
	}
	m := localInteractionMetrics("Fine. Sure. Whatever you say.", segs, 10)

	if m["speaker_turn_duration_avg_seconds"] == nil {
		t.Fatal("no average turn duration")
	}
	ratio, ok := m["talk_to_listen_ratio"].(float64)
	if !ok || ratio <= 0 || ratio > 1 {
		t.Errorf("talk_to_listen_ratio = %v", m["talk_to_listen_ratio"])
	}
}

func TestQuantMetricsEmptyTranscript(t *testing.T) {
	svc := NewQuantMetrics(testDeps(&mock.Provider{}))
	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), textCtx("   "))))
	if !last.HasError(analysis.ErrInsufficientData) {
		t.Fatalf("errors = %v", last.Errors)
	}
}
