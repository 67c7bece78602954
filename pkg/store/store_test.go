package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/pkg/store"
	"github.com/submit4201/candor/pkg/store/mock"
)

func TestBuildSummary(t *testing.T) {
	t.Run("empty history is nil", func(t *testing.T) {
		if got := store.BuildSummary(nil); got != nil {
			t.Fatalf("BuildSummary(nil) = %v, want nil", got)
		}
	})

	t.Run("lifts downstream fields", func(t *testing.T) {
		entries := []store.SessionEntry{
			{
				RequestID: "req-1",
				CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
				Results: map[string]any{
					"credibility":  map[string]any{"credibility_score": 72.5},
					"manipulation": map[string]any{"overall_risk_score": 80.0},
					"quantitative_metrics": map[string]any{
						"numerical_linguistic_metrics": map[string]any{
							"hesitation_marker_count": 3.0,
						},
					},
				},
			},
			{
				RequestID: "req-2",
				Results:   map[string]any{"credibility": map[string]any{"credibility_score": 41.0}},
			},
		}

		summary := store.BuildSummary(entries)
		history, ok := summary["history"].([]any)
		if !ok || len(history) != 2 {
			t.Fatalf("summary history = %v, want 2 turns", summary["history"])
		}

		first := history[0].(map[string]any)
		if first["request_id"] != "req-1" {
			t.Errorf("request_id = %v", first["request_id"])
		}
		flat := first["analysis"].(map[string]any)
		if flat["credibility_score"] != 72.5 {
			t.Errorf("credibility_score = %v, want 72.5", flat["credibility_score"])
		}
		if flat["overall_risk"] != "high" {
			t.Errorf("overall_risk = %v, want high", flat["overall_risk"])
		}
		if flat["hesitation_count"] != 3.0 {
			t.Errorf("hesitation_count = %v, want 3", flat["hesitation_count"])
		}

		second := history[1].(map[string]any)
		flat2 := second["analysis"].(map[string]any)
		if _, ok := flat2["overall_risk"]; ok {
			t.Error("overall_risk present without a manipulation result")
		}
	})

	t.Run("risk bands", func(t *testing.T) {
		for _, tc := range []struct {
			score float64
			want  string
		}{
			{10, "low"},
			{33, "medium"},
			{65, "medium"},
			{66, "high"},
		} {
			entries := []store.SessionEntry{{
				Results: map[string]any{
					"manipulation": map[string]any{"overall_risk_score": tc.score},
				},
			}}
			history := store.BuildSummary(entries)["history"].([]any)
			flat := history[0].(map[string]any)["analysis"].(map[string]any)
			if flat["overall_risk"] != tc.want {
				t.Errorf("score %.0f: overall_risk = %v, want %s", tc.score, flat["overall_risk"], tc.want)
			}
		}
	})
}

func TestMockBaselineStore(t *testing.T) {
	ctx := context.Background()
	bs := &mock.BaselineStore{}

	if got, err := bs.GetBaseline(ctx, "u1"); err != nil || got != nil {
		t.Fatalf("GetBaseline on empty store = (%v, %v), want (nil, nil)", got, err)
	}

	profile := &analysis.BaselineProfile{UserID: "u1", Metrics: map[string]analysis.MetricBaseline{
		"speech_rate": {Mean: 140, Std: 12},
	}}
	if err := bs.SaveBaseline(ctx, profile); err != nil {
		t.Fatalf("SaveBaseline: %v", err)
	}

	got, err := bs.GetBaseline(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBaseline: %v", err)
	}
	if got == nil || got.Metrics["speech_rate"].Mean != 140 {
		t.Fatalf("GetBaseline = %+v, want saved profile", got)
	}

	if err := bs.DeleteBaseline(ctx, "u1"); err != nil {
		t.Fatalf("DeleteBaseline: %v", err)
	}
	if got, _ := bs.GetBaseline(ctx, "u1"); got != nil {
		t.Fatal("profile still present after delete")
	}

	bs.SaveErr = errors.New("boom")
	if err := bs.SaveBaseline(ctx, profile); err == nil {
		t.Fatal("SaveBaseline did not surface the forced error")
	}
}

func TestMockSessionStore(t *testing.T) {
	ctx := context.Background()
	ss := &mock.SessionStore{}

	for i, req := range []string{"r1", "r2", "r3"} {
		entry := store.SessionEntry{
			SessionID: "s1",
			RequestID: req,
			CreatedAt: time.Date(2026, 8, 1, 12, i, 0, 0, time.UTC),
			Results:   map[string]any{"credibility": map[string]any{"credibility_score": float64(50 + i)}},
		}
		if err := ss.AppendEntry(ctx, entry); err != nil {
			t.Fatalf("AppendEntry: %v", err)
		}
	}

	history, err := ss.History(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 || history[0].RequestID != "r2" || history[1].RequestID != "r3" {
		t.Fatalf("History(limit 2) = %v, want newest two in order", history)
	}

	summary, err := ss.Summary(ctx, "s1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	turns := summary["history"].([]any)
	if len(turns) != 3 {
		t.Fatalf("summary turns = %d, want 3", len(turns))
	}

	if summary, err := ss.Summary(ctx, "other"); err != nil || summary != nil {
		t.Fatalf("Summary for unknown session = (%v, %v), want (nil, nil)", summary, err)
	}
}
