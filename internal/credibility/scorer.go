// Package credibility implements the baseline-normalized scoring engine.
//
// The scorer is pure: the same observed metrics, baseline profile, and prior
// score always produce the same [Score]. Metric deviations are standardized
// against the personal baseline (with a MAD-based robust alternative when it
// is less extreme), fused through direction-aware weights into a bounded
// score, and annotated with a confidence interval, a category, and the
// top-contributing indicators.
//
// The score signals statistical deviation from a personal baseline. It is
// not a deception verdict; the category space deliberately says
// "credibility" and includes an inconclusive state for wide intervals.
package credibility

import (
	"fmt"
	"math"
	"sort"

	"github.com/submit4201/candor/internal/analysis"
)

// Weights per metric, in [0,1]. Higher means the metric moves the score
// more. Normalized to sum to 1 within the subset active for a request.
var metricWeights = map[string]float64{
	// acoustic high
	"pitch_jitter":        0.85,
	"pitch_shimmer":       0.85,
	"vocal_tremor":        0.80,
	"prosodic_congruence": 0.80,
	"pause_rate":          0.75,
	"formant_dispersion":  0.70,
	"hnr_mean":            0.65,

	// prosodic mid
	"response_latency": 0.65,
	"pitch_std":        0.60,
	"speech_rate":      0.60,
	"intensity_std":    0.55,
	"hesitation_rate":  0.70,

	// linguistic mid
	"qualifier_ratio": 0.60,
	"pronoun_ratio":   0.55,
}

// Directions: +1 when an increase over baseline raises suspicion, -1 when a
// decrease does.
var metricDirections = map[string]float64{
	"pitch_jitter":        +1,
	"pitch_shimmer":       +1,
	"vocal_tremor":        +1,
	"prosodic_congruence": +1,
	"pause_rate":          +1,
	"formant_dispersion":  +1,
	"hnr_mean":            -1,
	"response_latency":    +1,
	"pitch_std":           +1,
	"speech_rate":         -1,
	"intensity_std":       +1,
	"hesitation_rate":     +1,
	"qualifier_ratio":     +1,
	"pronoun_ratio":       -1,
}

// acousticMetrics feed the physiological load composite.
var acousticMetrics = map[string]bool{
	"pitch_jitter":       true,
	"pitch_shimmer":      true,
	"vocal_tremor":       true,
	"formant_dispersion": true,
	"hnr_mean":           true,
	"pitch_std":          true,
	"intensity_std":      true,
}

// temporalMetrics feed the cognitive load composite.
var temporalMetrics = map[string]bool{
	"hesitation_rate":  true,
	"pause_rate":       true,
	"speech_rate":      true,
	"response_latency": true,
}

// Category labels a fused score.
type Category string

const (
	CategoryHigh         Category = "high_credibility"
	CategoryModerate     Category = "moderate"
	CategoryLow          Category = "low_credibility"
	CategoryVeryLow      Category = "very_low_credibility"
	CategoryInconclusive Category = "inconclusive"
)

// ConfidenceLevel grades how narrow the confidence interval is.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// MetricContribution is one metric's share of the fused score.
type MetricContribution struct {
	Name         string   `json:"name"`
	ZScore       *float64 `json:"z_score,omitempty"`
	Direction    float64  `json:"direction"`
	Weight       float64  `json:"weight"`
	Contribution float64  `json:"contribution"`
}

// Score is the scorer's complete output.
type Score struct {
	CredibilityScore       float64              `json:"credibility_score"`
	ConfidenceIntervalLow  float64              `json:"confidence_interval_low"`
	ConfidenceIntervalHigh float64              `json:"confidence_interval_high"`
	CredibilityCategory    Category             `json:"credibility_category"`
	ConfidenceLevel        ConfidenceLevel      `json:"confidence_level"`
	PrimaryIndicators      []string             `json:"primary_indicators"`
	MetricBreakdown        []MetricContribution `json:"metric_breakdown"`
	BaselineQuality        string               `json:"baseline_quality"`
	QualityWarnings        []string             `json:"quality_warnings"`
	InconclusiveReason     string               `json:"inconclusive_reason,omitempty"`
	PhysiologicalLoad      *float64             `json:"physiological_load_score,omitempty"`
	CognitiveLoad          *float64             `json:"cognitive_load_indicator,omitempty"`
	SmoothedScore          *float64             `json:"smoothed_score,omitempty"`
}

// emaAlpha weights the current score when smoothing across a session.
const emaAlpha = 0.3

// Compute fuses observed metric values against a baseline profile into a
// [Score]. Metrics without a baseline entry contribute nothing. prior, when
// non-nil, is the previous session score used for EMA smoothing.
func Compute(metrics map[string]float64, baseline *analysis.BaselineProfile, prior *float64) Score {
	out := Score{BaselineQuality: string(analysis.CalibrationNone)}
	if baseline != nil {
		out.BaselineQuality = string(baseline.CalibrationQuality)
	}

	var (
		weightedSum  float64
		totalWeight  float64
		zScores      []float64
		acousticZs   []float64
		temporalZs   []float64
	)

	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		weight, known := metricWeights[name]
		if !known {
			continue
		}
		direction := metricDirections[name]

		contribution := MetricContribution{Name: name, Direction: direction, Weight: weight}
		if baseline != nil {
			if mb, ok := baseline.Metrics[name]; ok && mb.Std > 0 {
				z := robustZ(metrics[name], mb)
				contribution.ZScore = &z
				contribution.Contribution = direction * z * weight

				weightedSum += contribution.Contribution
				totalWeight += weight
				zScores = append(zScores, z)
				if acousticMetrics[name] {
					acousticZs = append(acousticZs, z)
				}
				if temporalMetrics[name] {
					temporalZs = append(temporalZs, z)
				}
			}
		}
		out.MetricBreakdown = append(out.MetricBreakdown, contribution)
	}

	// Fusion: -2σ of suspicious deviation maps to 100, 0 to 50, +2σ to 0.
	if totalWeight > 0 {
		normalized := weightedSum / totalWeight
		out.CredibilityScore = clamp(50-25*normalized, 0, 100)
		// Report weights normalized within the active subset.
		for i := range out.MetricBreakdown {
			if out.MetricBreakdown[i].ZScore != nil {
				out.MetricBreakdown[i].Weight /= totalWeight
			}
		}
	} else {
		out.CredibilityScore = 50
		out.QualityWarnings = append(out.QualityWarnings,
			"insufficient metrics with baseline coverage; defaulting to neutral score")
	}

	// Confidence interval.
	margin := 30.0
	if len(zScores) >= 3 {
		sem := stddev(zScores) / math.Sqrt(float64(len(zScores)))
		margin = sem * 1.96 * 25
	}
	out.ConfidenceIntervalLow = clamp(out.CredibilityScore-margin, 0, 100)
	out.ConfidenceIntervalHigh = clamp(out.CredibilityScore+margin, 0, 100)

	width := out.ConfidenceIntervalHigh - out.ConfidenceIntervalLow
	out.CredibilityCategory = categorize(out.CredibilityScore, width)
	if out.CredibilityCategory == CategoryInconclusive {
		out.InconclusiveReason = fmt.Sprintf(
			"confidence interval too wide (%.1f points) to support a graded judgment", width)
	}
	out.ConfidenceLevel = confidenceLevel(width)

	// Composite load indicators.
	if len(acousticZs) > 0 {
		v := clamp(50+mean(acousticZs)*20, 0, 100)
		out.PhysiologicalLoad = &v
	}
	if len(temporalZs) > 0 {
		v := clamp(50+mean(temporalZs)*20, 0, 100)
		out.CognitiveLoad = &v
	}

	out.PrimaryIndicators = primaryIndicators(out.MetricBreakdown)

	if prior != nil {
		v := emaAlpha*out.CredibilityScore + (1-emaAlpha)**prior
		out.SmoothedScore = &v
	}
	return out
}

// robustZ standardizes value against the baseline, substituting the
// MAD-based z when it is less extreme than the standard one.
func robustZ(value float64, mb analysis.MetricBaseline) float64 {
	z := (value - mb.Mean) / mb.Std
	if mb.MAD != nil && *mb.MAD > 0 {
		madZ := 0.6745 * (value - mb.Mean) / *mb.MAD
		if math.Abs(madZ) < math.Abs(z) {
			return madZ
		}
	}
	return z
}

func categorize(score, ciWidth float64) Category {
	if ciWidth > 50 {
		return CategoryInconclusive
	}
	switch {
	case score >= 70:
		return CategoryHigh
	case score >= 40:
		return CategoryModerate
	case score >= 20:
		return CategoryLow
	default:
		return CategoryVeryLow
	}
}

func confidenceLevel(ciWidth float64) ConfidenceLevel {
	switch {
	case ciWidth < 20:
		return ConfidenceHigh
	case ciWidth < 40:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// primaryIndicators picks the top 5 suspicious deviations by absolute
// contribution. Only metrics deviating in their suspicious direction
// qualify.
func primaryIndicators(breakdown []MetricContribution) []string {
	type candidate struct {
		name string
		z    float64
		abs  float64
	}
	var suspicious []candidate
	for _, mc := range breakdown {
		if mc.ZScore == nil {
			continue
		}
		if mc.Direction**mc.ZScore <= 0 {
			continue
		}
		suspicious = append(suspicious, candidate{
			name: mc.Name,
			z:    *mc.ZScore,
			abs:  math.Abs(mc.Contribution),
		})
	}
	sort.Slice(suspicious, func(i, j int) bool {
		if suspicious[i].abs != suspicious[j].abs {
			return suspicious[i].abs > suspicious[j].abs
		}
		return suspicious[i].name < suspicious[j].name
	})
	if len(suspicious) > 5 {
		suspicious = suspicious[:5]
	}
	out := make([]string, len(suspicious))
	for i, s := range suspicious {
		out[i] = fmt.Sprintf("%s: %+.2fσ (suspicious)", s.name, s.z)
	}
	return out
}

// ToMap renders the score as the loosely-typed map stored in the shared
// result set and serialized onto the event stream.
func (s Score) ToMap() map[string]any {
	breakdown := make([]map[string]any, len(s.MetricBreakdown))
	for i, mc := range s.MetricBreakdown {
		entry := map[string]any{
			"name":         mc.Name,
			"direction":    mc.Direction,
			"weight":       mc.Weight,
			"contribution": mc.Contribution,
		}
		if mc.ZScore != nil {
			entry["z_score"] = *mc.ZScore
		}
		breakdown[i] = entry
	}
	out := map[string]any{
		"credibility_score":        s.CredibilityScore,
		"confidence_interval_low":  s.ConfidenceIntervalLow,
		"confidence_interval_high": s.ConfidenceIntervalHigh,
		"credibility_category":     string(s.CredibilityCategory),
		"confidence_level":         string(s.ConfidenceLevel),
		"primary_indicators":       s.PrimaryIndicators,
		"metric_breakdown":         breakdown,
		"baseline_quality":         s.BaselineQuality,
		"quality_warnings":         s.QualityWarnings,
	}
	if s.InconclusiveReason != "" {
		out["inconclusive_reason"] = s.InconclusiveReason
	}
	if s.PhysiologicalLoad != nil {
		out["physiological_load_score"] = *s.PhysiologicalLoad
	}
	if s.CognitiveLoad != nil {
		out["cognitive_load_indicator"] = *s.CognitiveLoad
	}
	if s.SmoothedScore != nil {
		out["smoothed_score"] = *s.SmoothedScore
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func mean(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

func stddev(x []float64) float64 {
	m := mean(x)
	var sum float64
	for _, v := range x {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(x)))
}
