package analysis

import "context"

// Phase annotates a [ResultChunk] with how settled its content is.
type Phase string

const (
	// PhaseCoarse marks a best-effort early result that may be revised.
	PhaseCoarse Phase = "coarse"

	// PhaseFinal marks the settled result of a service.
	PhaseFinal Phase = "final"
)

// ResultChunk is a single streamed output unit from one service.
//
// Every service emits zero or more partial chunks followed by exactly one
// terminal chunk with Partial=false and Phase=[PhaseFinal]. ChunkIndex is
// strictly increasing and contiguous from 0 within a service.
type ResultChunk struct {
	ServiceName    string         `json:"service_name"`
	ServiceVersion string         `json:"service_version"`
	Local          map[string]any `json:"local,omitempty"`
	LLM            map[string]any `json:"llm,omitempty"`
	Errors         []ErrorDetail  `json:"errors,omitempty"`
	Partial        bool           `json:"partial"`
	Phase          Phase          `json:"phase"`
	ChunkIndex     int            `json:"chunk_index"`
}

// HasError reports whether the chunk carries an error with the given code.
func (c ResultChunk) HasError(code ErrorCode) bool {
	for _, e := range c.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// Emitter numbers and forwards chunks for one service on a channel. It keeps
// the per-service chunk index contiguous, guards against emissions after the
// terminal chunk, and drops sends once the request context is cancelled so a
// service never blocks on an abandoned stream.
type Emitter struct {
	ctx     context.Context
	name    string
	version string
	out     chan<- ResultChunk
	next    int
	done    bool
}

// NewEmitter creates an [Emitter] for the named service writing to out.
// The caller retains ownership of out and must close it after the terminal
// chunk has been sent.
func NewEmitter(ctx context.Context, name, version string, out chan<- ResultChunk) *Emitter {
	return &Emitter{ctx: ctx, name: name, version: version, out: out}
}

// Partial sends a coarse partial chunk. It is a no-op after [Emitter.Final].
func (e *Emitter) Partial(local, llm map[string]any) {
	if e.done {
		return
	}
	e.send(ResultChunk{
		ServiceName:    e.name,
		ServiceVersion: e.version,
		Local:          local,
		LLM:            llm,
		Partial:        true,
		Phase:          PhaseCoarse,
	})
}

// Final sends the terminal chunk. Subsequent calls are no-ops.
func (e *Emitter) Final(local, llm map[string]any, errs ...ErrorDetail) {
	if e.done {
		return
	}
	e.done = true
	e.send(ResultChunk{
		ServiceName:    e.name,
		ServiceVersion: e.version,
		Local:          local,
		LLM:            llm,
		Errors:         errs,
		Partial:        false,
		Phase:          PhaseFinal,
	})
}

// FailFinal sends a terminal chunk carrying only an error entry.
func (e *Emitter) FailFinal(err ErrorDetail) {
	e.Final(map[string]any{}, nil, err)
}

func (e *Emitter) send(c ResultChunk) {
	c.ChunkIndex = e.next
	e.next++
	select {
	case e.out <- c:
	case <-e.ctx.Done():
		e.done = true
	}
}
