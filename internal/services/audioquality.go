package services

import (
	"context"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/pkg/audio"
)

// AudioQuality decodes the request audio and grades its fitness for the
// acoustic dimensions. Its summary (duration plus quality metrics) is shared
// through the context because downstream services key their own gates off it.
type AudioQuality struct {
	deps Deps
}

// NewAudioQuality builds the audio quality service.
func NewAudioQuality(deps Deps) *AudioQuality {
	return &AudioQuality{deps: deps}
}

var _ analysis.Service = (*AudioQuality)(nil)

func (s *AudioQuality) Name() string    { return "audio_quality" }
func (s *AudioQuality) Version() string { return Version }

func (s *AudioQuality) StreamAnalyze(ctx context.Context, actx *analysis.Context) <-chan analysis.ResultChunk {
	out := make(chan analysis.ResultChunk, 4)
	go func() {
		defer close(out)
		em := analysis.NewEmitter(ctx, s.Name(), Version, out)

		data := actx.AudioBytes()
		if len(data) == 0 {
			em.FailFinal(analysis.Errorf(analysis.ErrInsufficientData, "no audio supplied"))
			return
		}

		clip, err := audio.Decode(data)
		if err != nil {
			em.FailFinal(analysis.Errorf(analysis.ErrAudioDecode, "decode audio: %v", err))
			return
		}

		em.Partial(map[string]any{
			"duration":    round2(clip.Duration()),
			"sample_rate": clip.SampleRate,
			"channels":    clip.Channels,
		}, nil)

		result := assessQuality(clip)
		actx.SetAudioSummary(map[string]any{
			"duration_s":      clip.Duration(),
			"quality_metrics": result,
		})
		actx.SetServiceResult(s.Name(), result)
		em.Final(result, nil)
	}()
	return out
}

// assessQuality scores the clip on five equally weighted checks: usable
// duration, wideband sample rate, audible loudness, tolerable noise floor,
// and high-frequency clarity.
func assessQuality(clip *audio.Clip) map[string]any {
	duration := clip.Duration()
	loudness := audio.LoudnessDBFS(clip.Samples)
	snr := audio.SNREstimate(clip.Samples, clip.SampleRate)
	clarity := audio.ClarityRatio(clip.Samples, clip.SampleRate, 4000)

	score := 0
	if duration > 1 {
		score += 20
	}
	if clip.SampleRate >= 16000 {
		score += 20
	}
	if loudness > -60 {
		score += 20
	}
	if snr > 10 {
		score += 20
	}
	if clarity > 10 {
		score += 20
	}

	band := "poor"
	switch {
	case score >= 60:
		band = "good"
	case score >= 40:
		band = "fair"
	}

	return map[string]any{
		"duration":              round2(duration),
		"sample_rate":           clip.SampleRate,
		"channels":              clip.Channels,
		"loudness":              round2(loudness),
		"signal_to_noise_ratio": round2(snr),
		"clarity_score":         round2(clarity),
		"quality_score":         score,
		"overall_quality":       band,
	}
}
