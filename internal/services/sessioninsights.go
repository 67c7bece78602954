package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/submit4201/candor/internal/analysis"
)

// SessionInsights analyzes the session history carried in the request's
// session summary: score consistency across turns, behavioral drift, and the
// risk trajectory. It is fully local.
type SessionInsights struct {
	deps Deps
}

// NewSessionInsights builds the session insights service.
func NewSessionInsights(deps Deps) *SessionInsights {
	return &SessionInsights{deps: deps}
}

var _ analysis.Service = (*SessionInsights)(nil)

func (s *SessionInsights) Name() string    { return "session_insights" }
func (s *SessionInsights) Version() string { return Version }

func (s *SessionInsights) StreamAnalyze(ctx context.Context, actx *analysis.Context) <-chan analysis.ResultChunk {
	out := make(chan analysis.ResultChunk, 4)
	go func() {
		defer close(out)
		em := analysis.NewEmitter(ctx, s.Name(), Version, out)

		history := sessionHistory(actx.SessionSummary())
		var result map[string]any
		if len(history) == 0 {
			result = map[string]any{
				"status":               "No session history available",
				"consistency_analysis": "Initial analysis - no historical data",
				"behavioral_evolution": "Initial analysis - no historical data",
				"risk_trajectory":      "Initial analysis - no historical data",
				"total_analyses":       0,
			}
		} else {
			result = map[string]any{
				"consistency_analysis": analyzeConsistency(history),
				"behavioral_evolution": analyzeBehavior(history),
				"risk_trajectory":      analyzeRiskTrajectory(history),
				"total_analyses":       len(history),
			}
		}
		actx.SetServiceResult(s.Name(), result)
		em.Final(result, nil)
	}()
	return out
}

// sessionHistory extracts the per-turn entries from the session summary.
func sessionHistory(summary map[string]any) []map[string]any {
	raw, ok := summary["history"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, e := range raw {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// historyValue looks a key up on the entry itself, then inside its nested
// "analysis" map.
func historyValue(entry map[string]any, key string) (float64, bool) {
	if v, ok := asFloat(entry[key]); ok {
		return v, true
	}
	if nested, ok := entry["analysis"].(map[string]any); ok {
		if v, ok := asFloat(nested[key]); ok {
			return v, true
		}
	}
	return 0, false
}

func historyString(entry map[string]any, key string) (string, bool) {
	if v, ok := entry[key].(string); ok && v != "" {
		return v, true
	}
	if nested, ok := entry["analysis"].(map[string]any); ok {
		if v, ok := nested[key].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func analyzeConsistency(history []map[string]any) string {
	var scores []float64
	for _, entry := range history {
		if v, ok := historyValue(entry, "credibility_score"); ok {
			scores = append(scores, v)
		}
	}
	if len(scores) < 2 {
		return "Insufficient data for consistency analysis."
	}

	avg := meanOf(scores)
	var variance float64
	for _, v := range scores {
		variance += (v - avg) * (v - avg)
	}
	variance /= float64(len(scores) - 1)

	switch {
	case variance < 100:
		return fmt.Sprintf("HIGH consistency with stable patterns (avg: %.1f)", avg)
	case variance < 400:
		return fmt.Sprintf("MODERATE consistency with some variation (variance: %.1f)", variance)
	default:
		return fmt.Sprintf("LOW consistency with significant variation (variance: %.1f)", variance)
	}
}

func analyzeBehavior(history []map[string]any) string {
	if len(history) < 2 {
		return "Not enough data to analyze behavioral evolution."
	}
	counts := make([]float64, 0, len(history))
	for _, entry := range history {
		v, _ := historyValue(entry, "hesitation_count")
		counts = append(counts, v)
	}
	switch trend := halvesTrend(counts); {
	case trend > 2:
		return "Increasing hesitation over time - possible growing discomfort"
	case trend < -2:
		return "Decreasing hesitation - speaker becoming more comfortable"
	default:
		return "Stable behavioral patterns throughout session"
	}
}

func analyzeRiskTrajectory(history []map[string]any) string {
	if len(history) < 2 {
		return "Insufficient data for risk trajectory analysis."
	}
	riskMap := map[string]float64{"low": 25, "medium": 50, "high": 75}
	var scores []float64
	for _, entry := range history {
		if label, ok := historyString(entry, "overall_risk"); ok {
			score, ok := riskMap[strings.ToLower(label)]
			if !ok {
				score = 50
			}
			scores = append(scores, score)
		}
	}
	if len(scores) < 2 {
		return "Risk trajectory stable"
	}
	switch trend := halvesTrend(scores); {
	case trend > 10:
		return "Risk levels increasing - growing concerns"
	case trend < -10:
		return "Risk levels decreasing - improving credibility"
	default:
		return "Risk levels stable throughout session"
	}
}

// halvesTrend is the mean of the second half minus the mean of the first.
func halvesTrend(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mid := len(values) / 2
	return meanOf(values[mid:]) - meanOf(values[:mid])
}

func meanOf(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}
