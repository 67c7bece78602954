// Package services implements the fourteen analysis dimensions of the
// Candor pipeline.
//
// Local services (audio quality, quantitative metrics, enhanced acoustic,
// linguistic enhancement, session insights, credibility) compute their
// results in-process. LLM-backed dimensions share the generic [Dimension]
// type, which assembles its prompt from promptbuild and streams structured
// output through the llmclient. Every service satisfies [analysis.Service]
// and honors the chunk protocol: partial chunks first, one terminal chunk,
// channel closed afterwards.
package services

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/internal/llmclient"
	"github.com/submit4201/candor/internal/resilience"
)

// Version is the protocol version stamped on every chunk.
const Version = "2.0"

// Deps carries the shared dependencies a service may need. Local-only
// services ignore LLM.
type Deps struct {
	LLM *llmclient.Client
	Log *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

// classifyLLMError maps a client error onto the wire error code.
func classifyLLMError(ctx context.Context, err error) analysis.ErrorCode {
	switch {
	case ctx.Err() != nil:
		return analysis.ErrCancelled
	case errors.Is(err, llmclient.ErrSchemaViolation):
		return analysis.ErrSchemaViolation
	case resilience.IsTimeout(err):
		return analysis.ErrLLMTimeout
	default:
		return analysis.ErrLLMProvider
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

// asFloat converts the numeric types that survive JSON decoding.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
