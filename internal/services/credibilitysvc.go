package services

import (
	"context"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/internal/credibility"
)

// Credibility fuses every numeric indicator the earlier dimensions produced
// into the baseline-normalized credibility score. It runs last and is fully
// local; the heavy lifting lives in the credibility package.
type Credibility struct {
	deps Deps
}

// NewCredibility builds the credibility fusion service.
func NewCredibility(deps Deps) *Credibility {
	return &Credibility{deps: deps}
}

var _ analysis.Service = (*Credibility)(nil)

func (s *Credibility) Name() string    { return "credibility" }
func (s *Credibility) Version() string { return Version }

func (s *Credibility) StreamAnalyze(ctx context.Context, actx *analysis.Context) <-chan analysis.ResultChunk {
	out := make(chan analysis.ResultChunk, 4)
	go func() {
		defer close(out)
		em := analysis.NewEmitter(ctx, s.Name(), Version, out)

		metrics := collectMetrics(actx)
		if len(metrics) == 0 {
			em.FailFinal(analysis.Errorf(analysis.ErrInsufficientData,
				"no numeric indicators available for scoring"))
			return
		}

		score := credibility.Compute(metrics, actx.Baseline(), priorScore(actx))
		result := score.ToMap()
		actx.SetServiceResult(s.Name(), result)
		em.Final(result, nil)
	}()
	return out
}

// collectMetrics gathers every fusion input the upstream services published
// to the context. Absent slices simply contribute nothing.
func collectMetrics(actx *analysis.Context) map[string]float64 {
	metrics := make(map[string]float64)

	pick := func(src map[string]any, srcKey, dstKey string) {
		if v, ok := asFloat(src[srcKey]); ok {
			metrics[dstKey] = v
		}
	}

	if acoustic := actx.EnhancedAcoustic(); acoustic != nil {
		for _, key := range []string{
			"pitch_jitter", "pitch_shimmer", "pitch_std", "vocal_tremor",
			"formant_dispersion", "hnr_mean", "intensity_std", "pause_rate",
		} {
			pick(acoustic, key, key)
		}
	}

	if quant := actx.QuantitativeMetrics(); quant != nil {
		if numerical, ok := quant["numerical_linguistic_metrics"].(map[string]any); ok {
			pick(numerical, "speech_rate_wpm", "speech_rate")
			pick(numerical, "hesitation_rate_hpm", "hesitation_rate")
			if wc, ok := asFloat(numerical["word_count"]); ok && wc > 0 {
				if qc, ok := asFloat(numerical["qualifier_count"]); ok {
					metrics["qualifier_ratio"] = qc / wc
				}
			}
		}
	}

	if linguistic := actx.EnhancedLinguistic(); linguistic != nil {
		if pronouns, ok := linguistic["pronoun_ratios"].(map[string]any); ok {
			pick(pronouns, "first_person_ratio", "pronoun_ratio")
		}
	}

	if latency, ok := responseLatency(actx.SpeakerSegments()); ok {
		metrics["response_latency"] = latency
	}

	return metrics
}

// responseLatency is the mean gap in seconds between a speaker finishing and
// a different speaker starting.
func responseLatency(segs []analysis.SpeakerSegment) (float64, bool) {
	var total float64
	n := 0
	for i := 1; i < len(segs); i++ {
		if segs[i].Speaker == segs[i-1].Speaker {
			continue
		}
		gap := segs[i].StartS - segs[i-1].EndS
		if gap < 0 {
			gap = 0
		}
		total += gap
		n++
	}
	if n == 0 {
		return 0, false
	}
	return total / float64(n), true
}

// priorScore pulls the most recent credibility score out of the session
// history for EMA smoothing across turns.
func priorScore(actx *analysis.Context) *float64 {
	history := sessionHistory(actx.SessionSummary())
	for i := len(history) - 1; i >= 0; i-- {
		if v, ok := historyValue(history[i], "credibility_score"); ok {
			return &v
		}
	}
	return nil
}
