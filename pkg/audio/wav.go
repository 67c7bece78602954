// Package audio provides WAV decoding and the signal-processing primitives
// used by the acoustic analyzers: loudness, spectral measures, pitch
// tracking, perturbation measures, and pause detection.
//
// All analysis operates on mono float64 samples in [-1, 1]. Decoding
// downmixes multi-channel input by averaging.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrNotWAV is returned when the input does not start with a RIFF/WAVE header.
var ErrNotWAV = errors.New("audio: not a RIFF/WAVE stream")

// Info describes a WAV stream from its header alone.
type Info struct {
	SampleRate int
	Channels   int
	BitsPerSem int
	DurationS  float64
}

// Clip is decoded audio: mono samples normalized to [-1, 1].
type Clip struct {
	Samples    []float64
	SampleRate int
	// Channels is the channel count of the source before downmix.
	Channels int
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Probe parses only the WAV header. It is cheap enough to run before the
// full decode so callers can publish duration and format early.
func Probe(data []byte) (Info, error) {
	fmtChunk, dataLen, err := findChunks(data)
	if err != nil {
		return Info{}, err
	}
	info := Info{
		SampleRate: fmtChunk.sampleRate,
		Channels:   fmtChunk.channels,
		BitsPerSem: fmtChunk.bitsPerSample,
	}
	bytesPerSample := fmtChunk.bitsPerSample / 8
	if bytesPerSample > 0 && fmtChunk.channels > 0 && fmtChunk.sampleRate > 0 {
		frames := dataLen / (bytesPerSample * fmtChunk.channels)
		info.DurationS = float64(frames) / float64(fmtChunk.sampleRate)
	}
	return info, nil
}

// Decode parses a WAV stream into a mono [Clip]. Supported sample formats:
// unsigned 8-bit, signed 16-bit, signed 32-bit, and 32-bit float PCM.
func Decode(data []byte) (*Clip, error) {
	fmtChunk, _, err := findChunks(data)
	if err != nil {
		return nil, err
	}
	raw, err := dataChunk(data)
	if err != nil {
		return nil, err
	}

	ch := fmtChunk.channels
	if ch <= 0 {
		return nil, fmt.Errorf("audio: invalid channel count %d", ch)
	}
	bytesPerSample := fmtChunk.bitsPerSample / 8
	if bytesPerSample <= 0 {
		return nil, fmt.Errorf("audio: invalid bits per sample %d", fmtChunk.bitsPerSample)
	}
	frameSize := bytesPerSample * ch
	frames := len(raw) / frameSize

	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < ch; c++ {
			off := i*frameSize + c*bytesPerSample
			sum += decodeSample(raw[off:], fmtChunk.format, fmtChunk.bitsPerSample)
		}
		samples[i] = sum / float64(ch)
	}

	return &Clip{Samples: samples, SampleRate: fmtChunk.sampleRate, Channels: ch}, nil
}

const (
	waveFormatPCM   = 1
	waveFormatFloat = 3
)

type wavFormat struct {
	format        int
	channels      int
	sampleRate    int
	bitsPerSample int
}

func decodeSample(b []byte, format, bits int) float64 {
	switch {
	case format == waveFormatFloat && bits == 32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case bits == 8:
		// Unsigned, biased at 128.
		return (float64(b[0]) - 128) / 128
	case bits == 16:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
	case bits == 32:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648
	default:
		return 0
	}
}

// findChunks walks the RIFF chunk list and returns the parsed fmt chunk and
// the declared length of the data chunk.
func findChunks(data []byte) (wavFormat, int, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return wavFormat{}, 0, ErrNotWAV
	}

	var f wavFormat
	var dataLen int
	haveFmt := false

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		switch id {
		case "fmt ":
			if body+16 > len(data) {
				return wavFormat{}, 0, fmt.Errorf("audio: truncated fmt chunk")
			}
			f.format = int(binary.LittleEndian.Uint16(data[body:]))
			f.channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			f.sampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			f.bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14:]))
			haveFmt = true
		case "data":
			dataLen = size
		}
		// Chunks are word-aligned.
		pos = body + size + size%2
	}

	if !haveFmt {
		return wavFormat{}, 0, fmt.Errorf("audio: missing fmt chunk")
	}
	if f.format != waveFormatPCM && f.format != waveFormatFloat {
		return wavFormat{}, 0, fmt.Errorf("audio: unsupported format tag %d", f.format)
	}
	return f, dataLen, nil
}

func dataChunk(data []byte) ([]byte, error) {
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if id == "data" {
			end := body + size
			if end > len(data) {
				end = len(data)
			}
			return data[body:end], nil
		}
		pos = body + size + size%2
	}
	return nil, fmt.Errorf("audio: missing data chunk")
}

// EncodePCM16 builds a minimal mono 16-bit WAV stream from samples. Intended
// for tests and fixtures.
func EncodePCM16(samples []float64, sampleRate int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 44+dataLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], waveFormatPCM)
	binary.LittleEndian.PutUint16(buf[22:], 1)
	binary.LittleEndian.PutUint32(buf[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:], 2)
	binary.LittleEndian.PutUint16(buf[34:], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataLen))
	for i, s := range samples {
		v := int16(math.Max(-1, math.Min(1, s)) * 32767)
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(v))
	}
	return buf
}
