package llmclient

import (
	"context"
	"sort"
	"time"

	"github.com/submit4201/candor/pkg/provider/llm"
)

// JSONRequest describes one structured streaming call.
type JSONRequest struct {
	// Prompt is the instruction text.
	Prompt string

	// Schema, when non-nil, constrains the output via provider-native
	// structured output plus post-parse validation.
	Schema map[string]any

	// Audio optionally attaches audio content; MIME describes it.
	Audio []byte
	MIME  string

	// ModelHint selects the preferred model. Empty uses the structured
	// model when Schema is set, the analysis model otherwise.
	ModelHint string
}

// JSONChunk is one increment of a structured stream. Data of every partial
// chunk is a key-subset of the final chunk's Data. The terminal chunk has
// Done=true; on failure it additionally carries Err and an "error" key so
// consumers that only look at Data still see the failure.
type JSONChunk struct {
	Data       map[string]any
	ChunkIndex int
	Done       bool
	Err        error
}

// JSONStream turns a structured-JSON call into incremental chunks.
//
// When the provider offers native structured streaming this would forward
// it; the Gemini batch API does not, so the stream is simulated: the batch
// result is split into 3–5 monotonically growing key-prefix chunks with a
// small delay between them, followed by a terminal chunk with the complete
// object and Done=true. Key order is sorted, so for a fixed payload the
// chunk sequence is deterministic. Errors never escape the channel; they
// are materialized on the terminal chunk. Callers must drain the channel.
func (c *Client) JSONStream(ctx context.Context, req JSONRequest) <-chan JSONChunk {
	out := make(chan JSONChunk, 8)
	go func() {
		defer close(out)

		result, err := c.batchQuery(ctx, req)
		if err != nil {
			out <- JSONChunk{
				Data: map[string]any{"error": err.Error()},
				Done: true,
				Err:  err,
			}
			return
		}

		keys := make([]string, 0, len(result))
		for k := range result {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		index := 0
		for _, cut := range prefixCuts(len(keys)) {
			subset := make(map[string]any, cut)
			for _, k := range keys[:cut] {
				subset[k] = result[k]
			}
			select {
			case out <- JSONChunk{Data: subset, ChunkIndex: index}:
			case <-ctx.Done():
				return
			}
			index++
			if c.streamDelay > 0 {
				select {
				case <-time.After(c.streamDelay):
				case <-ctx.Done():
					return
				}
			}
		}

		select {
		case out <- JSONChunk{Data: result, ChunkIndex: index, Done: true}:
		case <-ctx.Done():
		}
	}()
	return out
}

// batchQuery performs the underlying structured call, attaching audio parts
// when present.
func (c *Client) batchQuery(ctx context.Context, req JSONRequest) (map[string]any, error) {
	hint := req.ModelHint
	gencfg := &llm.GenerateConfig{ResponseMIMEType: "application/json"}
	kind := "json_stream"
	if req.Schema != nil {
		gencfg.ResponseSchema = req.Schema
		if hint == "" {
			hint = c.cfg.ModelStructured
		}
	} else if hint == "" {
		hint = c.cfg.ModelAnalysis
	}

	var parts []llm.Part
	if len(req.Audio) > 0 {
		mime := req.MIME
		if mime == "" {
			mime = "audio/wav"
		}
		parts = append(parts, llm.BlobPart(req.Audio, mime))
	}
	parts = append(parts, llm.TextPart(req.Prompt))

	text, err := c.generate(ctx, kind, hint, parts, gencfg)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseJSONObject(text)
	if err != nil {
		return nil, err
	}
	if err := validateSchema(parsed, req.Schema); err != nil {
		return nil, err
	}
	return parsed, nil
}

// prefixCuts returns the partial-chunk key counts for a payload of n keys:
// 3 to 5 strictly growing prefixes, fewer for small payloads, none for an
// empty object.
func prefixCuts(n int) []int {
	if n == 0 {
		return nil
	}
	chunks := n / 2
	if chunks < 3 {
		chunks = 3
	}
	if chunks > 5 {
		chunks = 5
	}
	if chunks > n {
		chunks = n
	}

	var cuts []int
	prev := 0
	for i := 1; i <= chunks; i++ {
		cut := n * i / chunks
		if cut > prev && cut < n {
			cuts = append(cuts, cut)
			prev = cut
		}
	}
	// The full map is sent by the terminal chunk, so the last partial is
	// always a strict prefix.
	return cuts
}
