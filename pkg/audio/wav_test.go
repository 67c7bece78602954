package audio

import (
	"math"
	"testing"
)

// sine generates a pure tone at freq Hz with the given amplitude.
func sine(freq float64, amp float64, durS float64, sampleRate int) []float64 {
	n := int(durS * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	samples := sine(440, 0.5, 0.1, 16000)
	wav := EncodePCM16(samples, 16000)

	clip, err := Decode(wav)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if clip.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", clip.SampleRate)
	}
	if clip.Channels != 1 {
		t.Errorf("Channels = %d, want 1", clip.Channels)
	}
	if got, want := len(clip.Samples), len(samples); got != want {
		t.Fatalf("len(Samples) = %d, want %d", got, want)
	}
	for i := range samples {
		if math.Abs(clip.Samples[i]-samples[i]) > 0.001 {
			t.Fatalf("sample %d differs: %f vs %f", i, clip.Samples[i], samples[i])
		}
	}
}

func TestProbe(t *testing.T) {
	wav := EncodePCM16(sine(200, 0.5, 2.5, 16000), 16000)

	info, err := Probe(wav)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 || info.BitsPerSem != 16 {
		t.Errorf("Probe = %+v", info)
	}
	if math.Abs(info.DurationS-2.5) > 0.01 {
		t.Errorf("DurationS = %f, want 2.5", info.DurationS)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, tc := range [][]byte{nil, []byte("not audio at all"), make([]byte, 100)} {
		if _, err := Decode(tc); err == nil {
			t.Errorf("Decode(%d bytes) succeeded, want error", len(tc))
		}
	}
}

func TestTrackPitchFindsTone(t *testing.T) {
	// 200 Hz is inside the voiced band.
	samples := sine(200, 0.5, 1.0, 16000)
	frames := TrackPitch(samples, 16000)
	if len(frames) == 0 {
		t.Fatal("no voiced frames detected in a pure tone")
	}
	f0 := make([]float64, len(frames))
	for i, f := range frames {
		f0[i] = f.F0
	}
	if m := Mean(f0); math.Abs(m-200) > 10 {
		t.Errorf("mean F0 = %f, want ~200", m)
	}
	// A steady tone has almost no cycle-to-cycle perturbation.
	if j := JitterPercent(frames); j > 2 {
		t.Errorf("jitter = %f%% on a steady tone", j)
	}
	if s := ShimmerPercent(frames); s > 5 {
		t.Errorf("shimmer = %f%% on a steady tone", s)
	}
	if h := HNR(frames); h < 10 {
		t.Errorf("HNR = %f dB on a pure tone, want strongly harmonic", h)
	}
}

func TestLoudness(t *testing.T) {
	t.Run("silence floors at -96", func(t *testing.T) {
		if got := LoudnessDBFS(make([]float64, 1000)); got != -96 {
			t.Errorf("LoudnessDBFS(silence) = %f", got)
		}
	})
	t.Run("full-scale sine near -3", func(t *testing.T) {
		got := LoudnessDBFS(sine(440, 1.0, 0.1, 16000))
		if math.Abs(got-(-3.01)) > 0.2 {
			t.Errorf("LoudnessDBFS(full-scale sine) = %f, want ~-3.01", got)
		}
	})
}

func TestDetectPauses(t *testing.T) {
	// loud - silent - loud: exactly one pause.
	intensity := []float64{1, 1, 1, 0, 0, 0, 0, 1, 1, 1}
	count, total := DetectPauses(intensity, 0.1, 0.4, 3)
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	if math.Abs(total-0.4) > 1e-9 {
		t.Fatalf("total = %f, want 0.4", total)
	}

	t.Run("short gaps ignored", func(t *testing.T) {
		count, _ := DetectPauses([]float64{1, 0, 1, 0, 1}, 0.1, 0.4, 3)
		if count != 0 {
			t.Fatalf("count = %d, want 0", count)
		}
	})
}

func TestSpectralMeasures(t *testing.T) {
	tone := sine(1000, 0.8, 0.25, 16000)

	centroid := SpectralCentroid(tone, 16000)
	if math.Abs(centroid-1000) > 100 {
		t.Errorf("centroid = %f, want ~1000", centroid)
	}

	// A pure tone concentrates power in one bin: low entropy, no HF power.
	if e := SpectralEntropy(tone, 16000); e > 0.3 {
		t.Errorf("entropy = %f for a pure tone", e)
	}
	if c := ClarityRatio(tone, 16000, 4000); c > 1 {
		t.Errorf("clarity = %f%% for a 1 kHz tone", c)
	}
	if c := ClarityRatio(sine(6000, 0.8, 0.25, 16000), 16000, 4000); c < 90 {
		t.Errorf("clarity = %f%% for a 6 kHz tone, want >90", c)
	}
}
