// Package runner orchestrates the analysis pipeline: it builds the services
// from the registry, runs them in dependency-ordered phases, and multiplexes
// their chunk streams onto a single bounded event channel.
package runner

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/internal/observe"
	"github.com/submit4201/candor/internal/registry"
	"github.com/submit4201/candor/internal/services"
)

// Event names on the output stream.
const (
	EventUpdate = "analysis.update"
	EventDone   = "analysis.done"
)

// outBuffer bounds the event channel so a slow consumer applies backpressure
// instead of ballooning memory.
const outBuffer = 64

// Word-count gates for the later LLM phases. Either the transcript is final
// or it has accumulated enough words to be worth a model call.
const (
	phaseCMinWords = 20
	phaseDMinWords = 30
)

// Event is one unit on the output stream. Updates carry a single service
// chunk; the terminal done event carries the aggregated results.
type Event struct {
	Event   string `json:"event"`
	Service string `json:"service,omitempty"`
	Payload any    `json:"payload"`
}

// phases is the execution plan. Within a phase services run concurrently;
// phases run in order because later ones read what earlier ones publish to
// the shared context.
var phases = []struct {
	name     string
	services []string
	minWords int // 0 means no gate
}{
	{name: "A", services: []string{"transcription", "audio_quality"}},
	{name: "B", services: []string{"quantitative_metrics", "enhanced_acoustic", "linguistic_enhancement"}},
	{name: "C", services: []string{"manipulation", "argument", "psychological", "conversation_flow"}, minWords: phaseCMinWords},
	{name: "D", services: []string{"enhanced_understanding", "linguistic", "speaker_attitude", "session_insights"}, minWords: phaseDMinWords},
	{name: "E", services: []string{"credibility"}},
}

// Runner executes the full pipeline for one request.
type Runner struct {
	reg     *registry.Registry
	deps    services.Deps
	metrics *observe.Metrics
	log     *slog.Logger

	deadline time.Duration
}

// Option configures a [Runner].
type Option func(*Runner)

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithDeadline bounds the wall-clock time of one request. Zero disables the
// deadline.
func WithDeadline(d time.Duration) Option {
	return func(r *Runner) { r.deadline = d }
}

// New builds a runner over the given registry and shared dependencies.
func New(reg *registry.Registry, deps services.Deps, opts ...Option) *Runner {
	r := &Runner{reg: reg, deps: deps, log: deps.Log}
	if r.log == nil {
		r.log = slog.Default()
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every phase against the request context and streams events.
// The returned channel is closed after the terminal done event. Callers must
// drain it.
func (r *Runner) Run(ctx context.Context, actx *analysis.Context) <-chan Event {
	out := make(chan Event, outBuffer)
	go func() {
		defer close(out)

		if r.metrics != nil {
			r.metrics.ActiveAnalyses.Add(ctx, 1)
			defer r.metrics.ActiveAnalyses.Add(ctx, -1)
		}

		cancel := func() {}
		if r.deadline > 0 {
			ctx, cancel = context.WithTimeout(ctx, r.deadline)
		}
		defer cancel()

		meta := actx.Meta()
		log := r.log.With("request_id", meta.RequestID)

		// A request with neither transcript nor audio cannot feed any
		// service; fail before spinning anything up.
		if actx.Transcript() == "" && len(actx.AudioBytes()) == 0 {
			r.send(ctx, out, Event{Event: EventDone, Payload: map[string]any{
				"results": map[string]any{},
				"errors": []analysis.ErrorDetail{
					analysis.Errorf(analysis.ErrInvalidInput, "request carries neither transcript nor audio"),
				},
			}})
			return
		}

		start := time.Now()
		for _, phase := range phases {
			if ctx.Err() != nil {
				break
			}
			if phase.minWords > 0 {
				if _, final := actx.TranscriptFinal(); !final && actx.WordCount() < phase.minWords {
					r.skipPhase(ctx, out, actx, phase.services, phase.minWords)
					continue
				}
			}
			r.runPhase(ctx, out, actx, phase.services)
		}
		log.Info("analysis pipeline finished",
			"elapsed", time.Since(start), "services", len(actx.ServiceResults()))

		r.send(ctx, out, Event{Event: EventDone, Payload: r.donePayload(ctx, actx)})
	}()
	return out
}

// runPhase fans the phase's services out on an errgroup and forwards every
// chunk as an update event.
func (r *Runner) runPhase(ctx context.Context, out chan<- Event, actx *analysis.Context, names []string) {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		svc, err := r.reg.Build(name, r.deps)
		if err != nil {
			r.log.Error("service construction failed", "service", name, "error", err)
			continue
		}
		g.Go(func() error {
			start := time.Now()
			for chunk := range svc.StreamAnalyze(gctx, actx) {
				r.observeChunk(gctx, chunk)
				r.send(gctx, out, Event{Event: EventUpdate, Service: chunk.ServiceName, Payload: chunk})
			}
			if r.metrics != nil {
				r.metrics.RecordServiceDuration(gctx, name, time.Since(start).Seconds())
			}
			return nil
		})
	}
	_ = g.Wait()
}

// skipPhase emits a terminal insufficient-data chunk for every service whose
// phase gate never opened.
func (r *Runner) skipPhase(ctx context.Context, out chan<- Event, actx *analysis.Context, names []string, minWords int) {
	for _, name := range names {
		chunk := analysis.ResultChunk{
			ServiceName:    name,
			ServiceVersion: services.Version,
			Local:          map[string]any{},
			Errors: []analysis.ErrorDetail{analysis.Errorf(analysis.ErrInsufficientData,
				"transcript too short for this phase (%d words, need %d)", actx.WordCount(), minWords)},
			Phase: analysis.PhaseFinal,
		}
		r.observeChunk(ctx, chunk)
		r.send(ctx, out, Event{Event: EventUpdate, Service: name, Payload: chunk})
	}
}

func (r *Runner) observeChunk(ctx context.Context, chunk analysis.ResultChunk) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordChunk(ctx, chunk.ServiceName, string(chunk.Phase))
	for _, e := range chunk.Errors {
		r.metrics.RecordServiceError(ctx, chunk.ServiceName, string(e.Code))
	}
}

// donePayload aggregates the terminal state of the request.
// meta.transcript_final carries the settled transcript text, or null when
// the transcript never settled; meta.transcript always holds the latest
// text either way.
func (r *Runner) donePayload(ctx context.Context, actx *analysis.Context) map[string]any {
	var transcriptFinal any
	if text, final := actx.TranscriptFinal(); final {
		transcriptFinal = text
	}
	payload := map[string]any{
		"results": actx.ServiceResults(),
		"meta": map[string]any{
			"transcript_final":     transcriptFinal,
			"transcript":           actx.Transcript(),
			"speaker_segments":     actx.SpeakerSegments(),
			"audio_summary":        actx.AudioSummary(),
			"quantitative_metrics": actx.QuantitativeMetrics(),
		},
	}
	if err := ctx.Err(); err != nil {
		code := analysis.ErrCancelled
		if err == context.DeadlineExceeded {
			code = analysis.ErrLLMTimeout
		}
		payload["errors"] = []analysis.ErrorDetail{analysis.Errorf(code, "pipeline stopped early: %v", err)}
	}
	return payload
}

// send forwards one event, dropping it only when the request is gone. The
// done event is sent on a best-effort basis even after cancellation so
// consumers always observe a terminal event if they are still listening.
func (r *Runner) send(ctx context.Context, out chan<- Event, ev Event) {
	if ev.Event == EventDone {
		select {
		case out <- ev:
		case <-time.After(time.Second):
		}
		return
	}
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}
