package services

import (
	"strings"
	"testing"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/pkg/provider/llm/mock"
)

func historyCtx(entries ...map[string]any) *analysis.Context {
	raw := make([]any, len(entries))
	for i, e := range entries {
		raw[i] = e
	}
	return analysis.NewContext("hello", nil, analysis.Meta{
		RequestID:      "r1",
		SessionSummary: map[string]any{"history": raw},
	})
}

func TestSessionInsightsNoHistory(t *testing.T) {
	svc := NewSessionInsights(testDeps(&mock.Provider{}))
	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), textCtx("hello"))))

	if last.Local["status"] != "No session history available" {
		t.Errorf("status = %v", last.Local["status"])
	}
	if last.Local["total_analyses"] != 0 {
		t.Errorf("total_analyses = %v", last.Local["total_analyses"])
	}
	for _, key := range []string{"consistency_analysis", "behavioral_evolution", "risk_trajectory"} {
		if s, _ := last.Local[key].(string); !strings.HasPrefix(s, "Initial analysis") {
			t.Errorf("%s = %v", key, last.Local[key])
		}
	}
}

func TestSessionInsightsConsistency(t *testing.T) {
	t.Run("stable scores", func(t *testing.T) {
		actx := historyCtx(
			map[string]any{"credibility_score": 62.0},
			map[string]any{"credibility_score": 60.0},
			map[string]any{"credibility_score": 64.0},
		)
		svc := NewSessionInsights(testDeps(&mock.Provider{}))
		last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), actx)))
		if s := last.Local["consistency_analysis"].(string); !strings.HasPrefix(s, "HIGH consistency") {
			t.Errorf("consistency = %q", s)
		}
		if last.Local["total_analyses"] != 3 {
			t.Errorf("total_analyses = %v", last.Local["total_analyses"])
		}
	})

	t.Run("erratic scores", func(t *testing.T) {
		actx := historyCtx(
			map[string]any{"credibility_score": 20.0},
			map[string]any{"credibility_score": 85.0},
			map[string]any{"credibility_score": 15.0},
		)
		svc := NewSessionInsights(testDeps(&mock.Provider{}))
		last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), actx)))
		if s := last.Local["consistency_analysis"].(string); !strings.HasPrefix(s, "LOW consistency") {
			t.Errorf("consistency = %q", s)
		}
	})

	t.Run("nested analysis entries", func(t *testing.T) {
		actx := historyCtx(
			map[string]any{"analysis": map[string]any{"credibility_score": 50.0}},
			map[string]any{"analysis": map[string]any{"credibility_score": 52.0}},
		)
		svc := NewSessionInsights(testDeps(&mock.Provider{}))
		last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), actx)))
		if s := last.Local["consistency_analysis"].(string); !strings.HasPrefix(s, "HIGH consistency") {
			t.Errorf("consistency = %q", s)
		}
	})
}

func TestSessionInsightsBehavior(t *testing.T) {
	actx := historyCtx(
		map[string]any{"hesitation_count": 1.0},
		map[string]any{"hesitation_count": 2.0},
		map[string]any{"hesitation_count": 7.0},
		map[string]any{"hesitation_count": 9.0},
	)
	svc := NewSessionInsights(testDeps(&mock.Provider{}))
	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), actx)))
	if s := last.Local["behavioral_evolution"].(string); !strings.HasPrefix(s, "Increasing hesitation") {
		t.Errorf("behavior = %q", s)
	}
}

func TestSessionInsightsRiskTrajectory(t *testing.T) {
	actx := historyCtx(
		map[string]any{"overall_risk": "low"},
		map[string]any{"overall_risk": "low"},
		map[string]any{"overall_risk": "high"},
		map[string]any{"overall_risk": "high"},
	)
	svc := NewSessionInsights(testDeps(&mock.Provider{}))
	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), actx)))
	if s := last.Local["risk_trajectory"].(string); !strings.HasPrefix(s, "Risk levels increasing") {
		t.Errorf("risk = %q", s)
	}
}

func TestHalvesTrend(t *testing.T) {
	if got := halvesTrend([]float64{1, 1, 5, 5}); got != 4 {
		t.Errorf("trend = %v, want 4", got)
	}
	if got := halvesTrend([]float64{5}); got != 0 {
		t.Errorf("trend = %v, want 0 for single point", got)
	}
}
