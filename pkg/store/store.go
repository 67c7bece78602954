// Package store defines the persistence contracts for Candor: per-user
// baseline calibration profiles and per-session analysis history.
//
// The interfaces are public so alternative backends can be supplied without
// depending on Candor internals. Every implementation must be safe for
// concurrent use.
package store

import (
	"context"
	"time"

	"github.com/submit4201/candor/internal/analysis"
)

// SessionEntry is one completed analysis appended to a session's history.
type SessionEntry struct {
	SessionID string         `json:"session_id"`
	RequestID string         `json:"request_id"`
	CreatedAt time.Time      `json:"created_at"`

	// Results is the aggregated service result set of the request, keyed by
	// service name.
	Results map[string]any `json:"results"`
}

// BaselineStore persists per-user calibration profiles.
type BaselineStore interface {
	// SaveBaseline upserts a user's profile.
	SaveBaseline(ctx context.Context, profile *analysis.BaselineProfile) error

	// GetBaseline retrieves a user's profile. Returns (nil, nil) when the
	// user has no stored baseline.
	GetBaseline(ctx context.Context, userID string) (*analysis.BaselineProfile, error)

	// DeleteBaseline removes a user's profile. Deleting an absent profile is
	// not an error.
	DeleteBaseline(ctx context.Context, userID string) error
}

// SessionStore persists per-session analysis history.
type SessionStore interface {
	// AppendEntry records one completed analysis.
	AppendEntry(ctx context.Context, entry SessionEntry) error

	// History returns the most recent entries of a session in chronological
	// order. Limit 0 applies the implementation default.
	History(ctx context.Context, sessionID string, limit int) ([]SessionEntry, error)

	// Summary builds the session digest injected into analysis requests:
	// a map with a "history" key holding the per-turn entries the session
	// insight and credibility services consume.
	Summary(ctx context.Context, sessionID string) (map[string]any, error)
}

// BuildSummary converts history entries into the request digest shape.
// Exported so every backend produces an identical summary.
func BuildSummary(entries []SessionEntry) map[string]any {
	if len(entries) == 0 {
		return nil
	}
	history := make([]any, 0, len(entries))
	for _, e := range entries {
		turn := map[string]any{
			"request_id": e.RequestID,
			"created_at": e.CreatedAt,
			"analysis":   flattenResults(e.Results),
		}
		history = append(history, turn)
	}
	return map[string]any{"history": history}
}

// flattenResults lifts the fields the downstream services key on out of the
// per-service result maps.
func flattenResults(results map[string]any) map[string]any {
	flat := make(map[string]any)
	if cred, ok := results["credibility"].(map[string]any); ok {
		if v, ok := cred["credibility_score"]; ok {
			flat["credibility_score"] = v
		}
	}
	if manip, ok := results["manipulation"].(map[string]any); ok {
		if v, ok := manip["overall_risk_score"]; ok {
			flat["overall_risk"] = riskLabel(v)
		}
	}
	if quant, ok := results["quantitative_metrics"].(map[string]any); ok {
		if numerical, ok := quant["numerical_linguistic_metrics"].(map[string]any); ok {
			if v, ok := numerical["hesitation_marker_count"]; ok {
				flat["hesitation_count"] = v
			}
		}
	}
	return flat
}

func riskLabel(v any) string {
	score, ok := v.(float64)
	if !ok {
		if i, isInt := v.(int); isInt {
			score = float64(i)
		} else {
			return "medium"
		}
	}
	switch {
	case score >= 66:
		return "high"
	case score >= 33:
		return "medium"
	default:
		return "low"
	}
}
