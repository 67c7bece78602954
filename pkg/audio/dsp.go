package audio

import (
	"math"
	"math/cmplx"
)

// Mean returns the arithmetic mean of x, or 0 for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

// Std returns the population standard deviation of x.
func Std(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	m := Mean(x)
	var sum float64
	for _, v := range x {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(x)))
}

// RMS returns the root-mean-square amplitude of x.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

// LoudnessDBFS converts the RMS amplitude of x to dBFS. Silence maps to -96.
func LoudnessDBFS(x []float64) float64 {
	r := RMS(x)
	if r <= 0 {
		return -96
	}
	db := 20 * math.Log10(r)
	if db < -96 {
		return -96
	}
	return db
}

// FFT computes the discrete Fourier transform of x in place using the
// iterative radix-2 algorithm. len(x) must be a power of two.
func FFT(x []complex128) {
	n := len(x)
	if n <= 1 {
		return
	}

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		ang := -2 * math.Pi / float64(length)
		wl := cmplx.Exp(complex(0, ang))
		for i := 0; i < n; i += length {
			w := complex(1, 0)
			for j := 0; j < length/2; j++ {
				u := x[i+j]
				v := x[i+j+length/2] * w
				x[i+j] = u + v
				x[i+j+length/2] = u - v
				w *= wl
			}
		}
	}
}

// powerSpectrum returns per-bin power for the first half of the FFT of x,
// zero-padded to the next power of two.
func powerSpectrum(x []float64) []float64 {
	n := 1
	for n < len(x) {
		n <<= 1
	}
	buf := make([]complex128, n)
	for i, v := range x {
		buf[i] = complex(v, 0)
	}
	FFT(buf)

	half := n / 2
	power := make([]float64, half)
	for i := 0; i < half; i++ {
		power[i] = real(buf[i])*real(buf[i]) + imag(buf[i])*imag(buf[i])
	}
	return power
}

// SpectralCentroid returns the power-weighted mean frequency of x in Hz.
func SpectralCentroid(x []float64, sampleRate int) float64 {
	power := powerSpectrum(x)
	var num, den float64
	binHz := float64(sampleRate) / float64(2*len(power))
	for i, p := range power {
		num += float64(i) * binHz * p
		den += p
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// SpectralEntropy returns the normalized Shannon entropy of the power
// spectrum of x, in [0, 1]. White noise approaches 1, a pure tone 0.
func SpectralEntropy(x []float64, sampleRate int) float64 {
	power := powerSpectrum(x)
	var total float64
	for _, p := range power {
		total += p
	}
	if total == 0 || len(power) < 2 {
		return 0
	}
	var h float64
	for _, p := range power {
		if p <= 0 {
			continue
		}
		q := p / total
		h -= q * math.Log2(q)
	}
	return h / math.Log2(float64(len(power)))
}

// FormantEstimate approximates the first three formant frequencies as the
// spectral power peaks inside the conventional F1/F2/F3 search bands. It is a
// coarse stand-in for LPC analysis; ok is false when the spectrum carries no
// energy in one of the bands.
func FormantEstimate(x []float64, sampleRate int) (f1, f2, f3 float64, ok bool) {
	power := powerSpectrum(x)
	if len(power) == 0 {
		return 0, 0, 0, false
	}
	binHz := float64(sampleRate) / float64(2*len(power))

	peak := func(loHz, hiHz float64) (float64, bool) {
		var bestP, bestF float64
		found := false
		for i, p := range power {
			f := float64(i) * binHz
			if f < loHz || f > hiHz {
				continue
			}
			if p > bestP {
				bestP, bestF = p, f
				found = true
			}
		}
		return bestF, found && bestP > 0
	}

	var ok1, ok2, ok3 bool
	f1, ok1 = peak(200, 1000)
	f2, ok2 = peak(800, 2500)
	f3, ok3 = peak(1500, 3500)
	return f1, f2, f3, ok1 && ok2 && ok3
}

// ClarityRatio returns the percentage of spectral power above cutoffHz.
func ClarityRatio(x []float64, sampleRate int, cutoffHz float64) float64 {
	power := powerSpectrum(x)
	if len(power) == 0 {
		return 0
	}
	binHz := float64(sampleRate) / float64(2*len(power))
	var high, total float64
	for i, p := range power {
		total += p
		if float64(i)*binHz >= cutoffHz {
			high += p
		}
	}
	if total == 0 {
		return 0
	}
	return high / total * 100
}

// SNREstimate approximates the signal-to-noise ratio in dB by comparing the
// energy of loud frames against the quietest-decile frames.
func SNREstimate(x []float64, sampleRate int) float64 {
	frames := FrameRMS(x, sampleRate, 20)
	if len(frames) < 10 {
		return 0
	}
	sorted := append([]float64(nil), frames...)
	insertionSort(sorted)

	decile := len(sorted) / 10
	if decile == 0 {
		decile = 1
	}
	noise := Mean(sorted[:decile])
	signal := Mean(sorted[len(sorted)-decile:])
	if noise <= 0 {
		noise = 1e-6
	}
	snr := 20 * math.Log10(signal/noise)
	if snr < 0 {
		return 0
	}
	return snr
}

func insertionSort(x []float64) {
	for i := 1; i < len(x); i++ {
		for j := i; j > 0 && x[j] < x[j-1]; j-- {
			x[j], x[j-1] = x[j-1], x[j]
		}
	}
}

// FrameRMS splits x into frameMs windows and returns per-frame RMS.
func FrameRMS(x []float64, sampleRate, frameMs int) []float64 {
	frameLen := sampleRate * frameMs / 1000
	if frameLen <= 0 {
		return nil
	}
	var out []float64
	for start := 0; start+frameLen <= len(x); start += frameLen {
		out = append(out, RMS(x[start:start+frameLen]))
	}
	return out
}

// Pitch bounds for voiced speech.
const (
	MinPitchHz = 75
	MaxPitchHz = 500
)

// PitchFrame is one voiced frame from a pitch track.
type PitchFrame struct {
	F0        float64 // fundamental frequency in Hz
	Amplitude float64 // frame RMS
	Harmonic  float64 // normalized autocorrelation peak in [0, 1]
}

// TrackPitch runs autocorrelation pitch detection over 40ms windows hopped
// every 10ms, returning the voiced frames only. A frame is voiced when its
// autocorrelation peak within the pitch bounds exceeds 0.3 and its energy
// exceeds a tenth of the clip mean.
func TrackPitch(x []float64, sampleRate int) []PitchFrame {
	win := sampleRate * 40 / 1000
	hop := sampleRate * 10 / 1000
	if win <= 0 || len(x) < win {
		return nil
	}

	clipRMS := RMS(x)
	minLag := sampleRate / MaxPitchHz
	maxLag := sampleRate / MinPitchHz

	var frames []PitchFrame
	for start := 0; start+win <= len(x); start += hop {
		frame := x[start : start+win]
		amp := RMS(frame)
		if amp < clipRMS*0.1 {
			continue
		}
		lag, peak := bestLag(frame, minLag, maxLag)
		if lag == 0 || peak < 0.3 {
			continue
		}
		frames = append(frames, PitchFrame{
			F0:        float64(sampleRate) / float64(lag),
			Amplitude: amp,
			Harmonic:  peak,
		})
	}
	return frames
}

// bestLag returns the lag with the highest normalized autocorrelation in
// [minLag, maxLag] and the peak value.
func bestLag(frame []float64, minLag, maxLag int) (int, float64) {
	if maxLag >= len(frame) {
		maxLag = len(frame) - 1
	}
	var energy float64
	for _, v := range frame {
		energy += v * v
	}
	if energy == 0 {
		return 0, 0
	}

	bestL, bestV := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var sum float64
		for i := 0; i+lag < len(frame); i++ {
			sum += frame[i] * frame[i+lag]
		}
		v := sum / energy
		if v > bestV {
			bestV, bestL = v, lag
		}
	}
	return bestL, bestV
}

// JitterPercent is the mean absolute cycle-to-cycle period difference of the
// voiced frames, relative to the mean period, in percent.
func JitterPercent(frames []PitchFrame) float64 {
	if len(frames) < 2 {
		return 0
	}
	periods := make([]float64, len(frames))
	for i, f := range frames {
		periods[i] = 1 / f.F0
	}
	var diff float64
	for i := 1; i < len(periods); i++ {
		diff += math.Abs(periods[i] - periods[i-1])
	}
	mean := Mean(periods)
	if mean == 0 {
		return 0
	}
	return diff / float64(len(periods)-1) / mean * 100
}

// ShimmerPercent is the mean absolute frame-to-frame amplitude difference of
// the voiced frames, relative to the mean amplitude, in percent.
func ShimmerPercent(frames []PitchFrame) float64 {
	if len(frames) < 2 {
		return 0
	}
	amps := make([]float64, len(frames))
	for i, f := range frames {
		amps[i] = f.Amplitude
	}
	var diff float64
	for i := 1; i < len(amps); i++ {
		diff += math.Abs(amps[i] - amps[i-1])
	}
	mean := Mean(amps)
	if mean == 0 {
		return 0
	}
	return diff / float64(len(amps)-1) / mean * 100
}

// HNR returns the mean harmonics-to-noise ratio of the voiced frames in dB,
// derived from each frame's autocorrelation peak r as 10*log10(r/(1-r)).
func HNR(frames []PitchFrame) float64 {
	if len(frames) == 0 {
		return 0
	}
	var sum float64
	for _, f := range frames {
		r := f.Harmonic
		if r >= 0.999 {
			r = 0.999
		}
		if r <= 0 {
			continue
		}
		sum += 10 * math.Log10(r/(1-r))
	}
	return sum / float64(len(frames))
}

// DetectPauses finds silent stretches in the per-frame intensity track.
// A frame is silent when below threshold (a fraction of mean intensity);
// runs of at least minFrames silent frames count as one pause. Returns the
// pause count and total paused time given the frame duration in seconds.
func DetectPauses(intensity []float64, frameDurS, thresholdFrac float64, minFrames int) (count int, totalS float64) {
	if len(intensity) == 0 {
		return 0, 0
	}
	threshold := Mean(intensity) * thresholdFrac

	run := 0
	flush := func() {
		if run >= minFrames {
			count++
			totalS += float64(run) * frameDurS
		}
		run = 0
	}
	for _, v := range intensity {
		if v < threshold {
			run++
		} else {
			flush()
		}
	}
	flush()
	return count, totalS
}
