package analysis

import (
	"context"
	"testing"
)

func collect(ch chan ResultChunk) []ResultChunk {
	var out []ResultChunk
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func TestEmitterNumbering(t *testing.T) {
	ch := make(chan ResultChunk, 8)
	em := NewEmitter(t.Context(), "demo", "1.0", ch)

	em.Partial(map[string]any{"a": 1}, nil)
	em.Partial(map[string]any{"a": 2}, nil)
	em.Final(map[string]any{"a": 3}, nil)
	close(ch)

	chunks := collect(ch)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, c.ChunkIndex)
		}
	}
	last := chunks[len(chunks)-1]
	if last.Partial || last.Phase != PhaseFinal {
		t.Fatalf("terminal chunk: partial=%v phase=%q", last.Partial, last.Phase)
	}
}

func TestEmitterStopsAfterFinal(t *testing.T) {
	ch := make(chan ResultChunk, 8)
	em := NewEmitter(t.Context(), "demo", "1.0", ch)

	em.Final(map[string]any{}, nil)
	em.Partial(map[string]any{"late": true}, nil)
	em.Final(map[string]any{"late": true}, nil)
	close(ch)

	chunks := collect(ch)
	if len(chunks) != 1 {
		t.Fatalf("emissions after terminal chunk: got %d chunks", len(chunks))
	}
}

func TestEmitterUnblocksOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	ch := make(chan ResultChunk) // unbuffered, nobody reading
	em := NewEmitter(ctx, "demo", "1.0", ch)

	done := make(chan struct{})
	go func() {
		em.Partial(map[string]any{"a": 1}, nil)
		close(done)
	}()
	cancel()
	<-done // would hang forever if the emitter ignored cancellation
}

func TestChunkHasError(t *testing.T) {
	c := ResultChunk{Errors: []ErrorDetail{Errorf(ErrLLMTimeout, "deadline after %d attempts", 3)}}
	if !c.HasError(ErrLLMTimeout) {
		t.Fatal("HasError(ErrLLMTimeout) = false")
	}
	if c.HasError(ErrInvalidInput) {
		t.Fatal("HasError(ErrInvalidInput) = true")
	}
}
