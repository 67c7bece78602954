package services

import (
	"testing"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/pkg/provider/llm/mock"
)

func TestEnhancedAcoustic(t *testing.T) {
	svc := NewEnhancedAcoustic(testDeps(&mock.Provider{}))
	actx := audioCtx(t, sineWAV(t, 200, 2, 16000))

	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), actx)))
	if len(last.Errors) != 0 {
		t.Fatalf("errors = %v", last.Errors)
	}

	m := last.Local
	if m["insufficient_voiced"] != false {
		t.Fatalf("insufficient_voiced = %v", m["insufficient_voiced"])
	}
	if q := m["analysis_quality"]; q != "good" {
		t.Errorf("analysis_quality = %v", q)
	}
	pitch := m["pitch_mean"].(float64)
	if pitch < 190 || pitch > 210 {
		t.Errorf("pitch_mean = %v, want ~200", pitch)
	}
	// A steady tone has near-zero cycle-to-cycle variation.
	if j := m["pitch_jitter"].(float64); j > 2 {
		t.Errorf("pitch_jitter = %v for a steady tone", j)
	}
	if hnr := m["hnr_mean"].(float64); hnr < 3 {
		t.Errorf("hnr_mean = %v, want strongly harmonic", hnr)
	}
	if _, ok := m["pause_rate"]; !ok {
		t.Error("pause metrics missing")
	}

	if actx.EnhancedAcoustic() == nil {
		t.Error("acoustic features not published to context")
	}
}

func TestEnhancedAcousticTooFewBytes(t *testing.T) {
	svc := NewEnhancedAcoustic(testDeps(&mock.Provider{}))
	actx := audioCtx(t, []byte("tiny"))
	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), actx)))
	if !last.HasError(analysis.ErrInsufficientData) {
		t.Fatalf("errors = %v", last.Errors)
	}
}

func TestEnhancedAcousticShortClip(t *testing.T) {
	svc := NewEnhancedAcoustic(testDeps(&mock.Provider{}))
	actx := audioCtx(t, sineWAV(t, 200, 0.3, 16000))

	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), actx)))
	if len(last.Errors) != 0 {
		t.Fatalf("short clip must degrade, not error: %v", last.Errors)
	}
	if last.Local["analysis_quality"] != "poor" || last.Local["insufficient_voiced"] != true {
		t.Fatalf("result = %v", last.Local)
	}
}

func TestEnhancedAcousticUndecodable(t *testing.T) {
	svc := NewEnhancedAcoustic(testDeps(&mock.Provider{}))
	garbage := make([]byte, 2000)
	for i := range garbage {
		garbage[i] = byte(i * 31)
	}
	actx := audioCtx(t, garbage)

	last := terminal(t, drain(t, svc.StreamAnalyze(t.Context(), actx)))
	if last.Local["analysis_quality"] != "failed" {
		t.Fatalf("result = %v", last.Local)
	}
}
