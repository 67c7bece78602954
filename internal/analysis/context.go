// Package analysis defines the shared request state, the streamed result
// protocol, and the service contract for the Candor analysis pipeline.
//
// A [Context] is created per request and shared by reference between the
// runner and all services. All mutation goes through accessor methods that
// enforce the protocol rules: the partial transcript only grows, the final
// transcript is set exactly once, and each service writes only its own entry
// in the result map. The [Service] interface is the streaming analyzer
// contract; results travel as [ResultChunk] values on a channel that the
// producer closes after its terminal chunk. Callers must drain the channel
// to avoid goroutine leaks.
package analysis

import (
	"strings"
	"sync"
	"time"
)

// SpeakerSegment attributes a span of the transcript to one speaker.
type SpeakerSegment struct {
	Speaker string  `json:"speaker"`
	StartS  float64 `json:"start_s"`
	EndS    float64 `json:"end_s"`
	Text    string  `json:"text"`
}

// MetricBaseline holds the calibration statistics for one metric.
type MetricBaseline struct {
	Mean        float64  `json:"mean"`
	Std         float64  `json:"std"`
	MAD         *float64 `json:"mad,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	SampleCount int      `json:"sample_count"`
}

// CalibrationQuality grades how trustworthy a baseline profile is.
type CalibrationQuality string

const (
	CalibrationNone CalibrationQuality = "none"
	CalibrationPoor CalibrationQuality = "poor"
	CalibrationFair CalibrationQuality = "fair"
	CalibrationGood CalibrationQuality = "good"
)

// BaselineProfile is a user's personal calibration across metrics.
type BaselineProfile struct {
	UserID             string                    `json:"user_id"`
	CreatedAt          time.Time                 `json:"created_at"`
	Metrics            map[string]MetricBaseline `json:"metrics"`
	CalibrationQuality CalibrationQuality        `json:"calibration_quality"`
}

// Meta carries the request-scoped inputs that are not transcript or audio.
type Meta struct {
	RequestID      string           `json:"request_id"`
	SessionID      string           `json:"session_id,omitempty"`
	UserID         string           `json:"user_id,omitempty"`
	MimeType       string           `json:"mime_type,omitempty"`
	DurationS      float64          `json:"duration,omitempty"`
	SampleRate     int              `json:"sample_rate,omitempty"`
	Channels       int              `json:"channels,omitempty"`
	Baseline       *BaselineProfile `json:"baseline_profile,omitempty"`
	SessionSummary map[string]any   `json:"session_summary,omitempty"`
	Config         map[string]any   `json:"config,omitempty"`
}

// Context is the per-request mutable state shared across services.
//
// It is owned by the runner and handed to services by reference. An internal
// mutex protects the maps because services run on separate goroutines; the
// protocol additionally guarantees a single writer per field.
type Context struct {
	mu sync.Mutex

	transcriptPartial string
	transcriptFinal   *string

	audioBytes   []byte
	audioSummary map[string]any

	quantitativeMetrics map[string]any
	enhancedAcoustic    map[string]any
	enhancedLinguistic  map[string]any

	baseline       *BaselineProfile
	serviceResults map[string]map[string]any
	speakerSegs    []SpeakerSegment
	sessionSummary map[string]any
	config         map[string]any

	meta Meta
}

// NewContext builds a [Context] for one request. Audio bytes are stored once
// and shared by all consumers; they must not be mutated after this call.
func NewContext(transcript string, audio []byte, meta Meta) *Context {
	c := &Context{
		transcriptPartial:   transcript,
		audioBytes:          audio,
		audioSummary:        make(map[string]any),
		quantitativeMetrics: make(map[string]any),
		serviceResults:      make(map[string]map[string]any),
		baseline:            meta.Baseline,
		sessionSummary:      meta.SessionSummary,
		config:              meta.Config,
		meta:                meta,
	}
	if meta.DurationS > 0 {
		c.audioSummary["duration_s"] = meta.DurationS
	}
	return c
}

// Meta returns the request metadata.
func (c *Context) Meta() Meta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta
}

// AudioBytes returns the shared audio buffer, or nil when the request is
// text-only. Callers must treat the slice as read-only.
func (c *Context) AudioBytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioBytes
}

// Transcript returns the best transcript currently available: the final one
// if set, the partial otherwise.
func (c *Context) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transcriptFinal != nil {
		return *c.transcriptFinal
	}
	return c.transcriptPartial
}

// TranscriptFinal returns the final transcript and whether it has been set.
func (c *Context) TranscriptFinal() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transcriptFinal == nil {
		return "", false
	}
	return *c.transcriptFinal, true
}

// UpdatePartialTranscript grows the partial transcript. Shorter text is
// ignored so the partial never regresses; after finalization all updates
// are ignored.
func (c *Context) UpdatePartialTranscript(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transcriptFinal != nil {
		return
	}
	if len(text) >= len(c.transcriptPartial) {
		c.transcriptPartial = text
	}
}

// FinalizeTranscript sets the final transcript exactly once and reports
// whether this call performed the write.
func (c *Context) FinalizeTranscript(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transcriptFinal != nil {
		return false
	}
	c.transcriptFinal = &text
	if len(text) >= len(c.transcriptPartial) {
		c.transcriptPartial = text
	}
	return true
}

// WordCount returns the whitespace-token count of the best transcript.
func (c *Context) WordCount() int {
	return len(strings.Fields(c.Transcript()))
}

// SetAudioSummary merges kv into the audio summary.
func (c *Context) SetAudioSummary(kv map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range kv {
		c.audioSummary[k] = v
	}
}

// AudioSummary returns a copy of the audio summary map.
func (c *Context) AudioSummary() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.audioSummary)
}

// SetQuantitativeMetrics merges kv into the quantitative metrics map.
func (c *Context) SetQuantitativeMetrics(kv map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range kv {
		c.quantitativeMetrics[k] = v
	}
}

// QuantitativeMetrics returns a copy of the quantitative metrics map.
func (c *Context) QuantitativeMetrics() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.quantitativeMetrics)
}

// SetEnhancedAcoustic stores the enhanced acoustic feature map.
func (c *Context) SetEnhancedAcoustic(m map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enhancedAcoustic = m
}

// EnhancedAcoustic returns the enhanced acoustic feature map, or nil.
func (c *Context) EnhancedAcoustic() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.enhancedAcoustic)
}

// SetEnhancedLinguistic stores the enhanced linguistic feature map.
func (c *Context) SetEnhancedLinguistic(m map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enhancedLinguistic = m
}

// EnhancedLinguistic returns the enhanced linguistic feature map, or nil.
func (c *Context) EnhancedLinguistic() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.enhancedLinguistic)
}

// Baseline returns the baseline profile, or nil when uncalibrated.
func (c *Context) Baseline() *BaselineProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseline
}

// SetBaseline attaches a baseline profile loaded after context creation.
// An existing inline profile is never overwritten.
func (c *Context) SetBaseline(p *BaselineProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.baseline == nil {
		c.baseline = p
	}
}

// SetServiceResult records the terminal result for one service. Each service
// writes only its own entry; a second write for the same name is ignored so
// a completed result is never clobbered.
func (c *Context) SetServiceResult(service string, result map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.serviceResults[service]; exists {
		return
	}
	c.serviceResults[service] = result
}

// ServiceResult returns one service's terminal result and whether it exists.
func (c *Context) ServiceResult(service string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.serviceResults[service]
	return r, ok
}

// ServiceResults returns a shallow copy of the full result map.
func (c *Context) ServiceResults() map[string]map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]map[string]any, len(c.serviceResults))
	for k, v := range c.serviceResults {
		out[k] = v
	}
	return out
}

// SetSpeakerSegments stores the speaker attribution for the transcript.
func (c *Context) SetSpeakerSegments(segs []SpeakerSegment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speakerSegs = segs
}

// SpeakerSegments returns the speaker segments recorded so far.
func (c *Context) SpeakerSegments() []SpeakerSegment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SpeakerSegment(nil), c.speakerSegs...)
}

// SessionSummary returns the prior-turn digest, or nil for a fresh session.
func (c *Context) SessionSummary() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.sessionSummary)
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
