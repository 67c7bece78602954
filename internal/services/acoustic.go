package services

import (
	"context"
	"math"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/pkg/audio"
)

// minAcousticBytes is the smallest payload worth analyzing; anything shorter
// cannot hold a single voiced window.
const minAcousticBytes = 1000

// EnhancedAcoustic extracts the vocal stress indicators from the raw audio:
// pitch statistics, jitter, shimmer, tremor, formants, harmonics-to-noise
// ratio, intensity dynamics, pauses, and spectral shape. Extraction failures
// degrade the quality grade instead of failing the service, so partial
// feature sets still reach the credibility fusion.
type EnhancedAcoustic struct {
	deps Deps
}

// NewEnhancedAcoustic builds the enhanced acoustic service.
func NewEnhancedAcoustic(deps Deps) *EnhancedAcoustic {
	return &EnhancedAcoustic{deps: deps}
}

var _ analysis.Service = (*EnhancedAcoustic)(nil)

func (s *EnhancedAcoustic) Name() string    { return "enhanced_acoustic" }
func (s *EnhancedAcoustic) Version() string { return Version }

func (s *EnhancedAcoustic) StreamAnalyze(ctx context.Context, actx *analysis.Context) <-chan analysis.ResultChunk {
	out := make(chan analysis.ResultChunk, 4)
	go func() {
		defer close(out)
		em := analysis.NewEmitter(ctx, s.Name(), Version, out)

		data := actx.AudioBytes()
		if len(data) < minAcousticBytes {
			em.FailFinal(analysis.Errorf(analysis.ErrInsufficientData,
				"audio too short for acoustic analysis (%d bytes)", len(data)))
			return
		}

		result := extractAcousticFeatures(data)
		actx.SetEnhancedAcoustic(result)
		actx.SetServiceResult(s.Name(), result)
		em.Final(result, nil)
	}()
	return out
}

// extractAcousticFeatures computes the full feature map. It never returns an
// error: undecodable audio yields analysis_quality "failed" and clips with
// too little voiced speech yield "poor", both with insufficient_voiced set.
func extractAcousticFeatures(data []byte) map[string]any {
	clip, err := audio.Decode(data)
	if err != nil {
		return map[string]any{"analysis_quality": "failed", "insufficient_voiced": true}
	}
	if clip.Duration() < 0.5 {
		return map[string]any{"analysis_quality": "poor", "insufficient_voiced": true}
	}

	frames := audio.TrackPitch(clip.Samples, clip.SampleRate)
	if len(frames) < 10 {
		return map[string]any{"analysis_quality": "poor", "insufficient_voiced": true}
	}

	m := map[string]any{"insufficient_voiced": false}
	featuresExtracted := 0

	f0s := make([]float64, len(frames))
	for i, f := range frames {
		f0s[i] = f.F0
	}
	pitchMean := audio.Mean(f0s)
	m["pitch_mean"] = round2(pitchMean)
	m["pitch_std"] = round2(audio.Std(f0s))
	m["pitch_range"] = round2(maxOf(f0s) - minOf(f0s))
	featuresExtracted++

	m["pitch_jitter"] = round3(audio.JitterPercent(frames))
	m["pitch_shimmer"] = round3(audio.ShimmerPercent(frames))
	featuresExtracted++

	// Tremor proxy: mean absolute frame-to-frame F0 delta relative to the
	// mean F0, in percent. Slow periodic modulation inflates it.
	if pitchMean > 0 {
		var delta float64
		for i := 1; i < len(f0s); i++ {
			delta += math.Abs(f0s[i] - f0s[i-1])
		}
		m["vocal_tremor"] = round3(delta / float64(len(f0s)-1) / pitchMean * 100)
	}

	if f1, f2, f3, ok := audio.FormantEstimate(clip.Samples, clip.SampleRate); ok {
		m["formant_f1_mean"] = round2(f1)
		m["formant_f2_mean"] = round2(f2)
		m["formant_f3_mean"] = round2(f3)
		m["formant_dispersion"] = round2(audio.Std([]float64{f1, f2, f3}))
		featuresExtracted++
	}

	hnrs := make([]float64, 0, len(frames))
	for _, f := range frames {
		r := f.Harmonic
		if r >= 0.999 {
			r = 0.999
		}
		if r > 0 {
			hnrs = append(hnrs, 10*math.Log10(r/(1-r)))
		}
	}
	if len(hnrs) > 0 {
		m["hnr_mean"] = round2(audio.Mean(hnrs))
		m["hnr_std"] = round2(audio.Std(hnrs))
		featuresExtracted++
	}

	intensity := audio.FrameRMS(clip.Samples, clip.SampleRate, 10)
	if len(intensity) > 0 {
		m["intensity_mean"] = round3(audio.Mean(intensity))
		m["intensity_std"] = round3(audio.Std(intensity))
		m["intensity_range"] = round3(maxOf(intensity) - minOf(intensity))
		featuresExtracted++

		// Pause: at least 100ms of intensity below 40% of the clip mean.
		count, totalS := audio.DetectPauses(intensity, 0.01, 0.4, 10)
		m["pause_count"] = count
		m["pause_duration_total"] = round2(totalS)
		m["pause_rate"] = round2(float64(count) / clip.Duration() * 60)
	}

	m["spectral_centroid"] = round2(audio.SpectralCentroid(clip.Samples, clip.SampleRate))
	m["spectral_entropy"] = round3(audio.SpectralEntropy(clip.Samples, clip.SampleRate))

	switch {
	case featuresExtracted >= 4:
		m["analysis_quality"] = "good"
	case featuresExtracted >= 2:
		m["analysis_quality"] = "fair"
	default:
		m["analysis_quality"] = "poor"
	}
	return m
}

func minOf(x []float64) float64 {
	v := x[0]
	for _, e := range x[1:] {
		if e < v {
			v = e
		}
	}
	return v
}

func maxOf(x []float64) float64 {
	v := x[0]
	for _, e := range x[1:] {
		if e > v {
			v = e
		}
	}
	return v
}
