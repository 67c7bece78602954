package services

import (
	"math"
	"testing"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/pkg/audio"
	"github.com/submit4201/candor/pkg/provider/llm/mock"
)

func sineWAV(t *testing.T, freq float64, durS float64, sampleRate int) []byte {
	t.Helper()
	n := int(durS * float64(sampleRate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return audio.EncodePCM16(samples, sampleRate)
}

func audioCtx(t *testing.T, wav []byte) *analysis.Context {
	t.Helper()
	return analysis.NewContext("", wav, analysis.Meta{RequestID: "r1", MimeType: "audio/wav"})
}

func TestAudioQuality(t *testing.T) {
	svc := NewAudioQuality(testDeps(&mock.Provider{}))
	actx := audioCtx(t, sineWAV(t, 440, 2, 16000))

	chunks := drain(t, svc.StreamAnalyze(t.Context(), actx))
	last := terminal(t, chunks)

	if len(last.Errors) != 0 {
		t.Fatalf("errors = %v", last.Errors)
	}
	if last.Local["sample_rate"] != 16000 {
		t.Errorf("sample_rate = %v", last.Local["sample_rate"])
	}
	if d := last.Local["duration"].(float64); d < 1.9 || d > 2.1 {
		t.Errorf("duration = %v", d)
	}
	score := last.Local["quality_score"].(int)
	if score < 40 {
		t.Errorf("quality_score = %d for a clean wideband tone", score)
	}

	summary := actx.AudioSummary()
	if _, ok := summary["quality_metrics"]; !ok {
		t.Error("quality metrics not shared through the context")
	}
	if d, _ := summary["duration_s"].(float64); d < 1.9 {
		t.Errorf("duration_s = %v", summary["duration_s"])
	}
}

func TestAudioQualityNoAudio(t *testing.T) {
	svc := NewAudioQuality(testDeps(&mock.Provider{}))
	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), textCtx("text only"))))
	if !last.HasError(analysis.ErrInsufficientData) {
		t.Fatalf("errors = %v", last.Errors)
	}
}

func TestAudioQualityGarbage(t *testing.T) {
	svc := NewAudioQuality(testDeps(&mock.Provider{}))
	actx := audioCtx(t, []byte("definitely not a wav file, not even close"))
	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), actx)))
	if !last.HasError(analysis.ErrAudioDecode) {
		t.Fatalf("errors = %v", last.Errors)
	}
}
