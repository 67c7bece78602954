package llmclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/submit4201/candor/pkg/provider/llm"
)

// transcribePrompt instructs the model to return a verbatim transcript and
// nothing else.
const transcribePrompt = "Transcribe this audio verbatim. Return only the spoken words, " +
	"with normal punctuation. Do not describe the audio, do not add commentary."

// TranscriptDelta is one event from [Client.TranscribeStream]. Partial
// deltas carry the transcript accumulated so far; the terminal delta has
// Partial=false and the full text. A non-nil Err terminates the stream.
type TranscriptDelta struct {
	Text    string
	Partial bool
	Err     error
}

// Transcribe returns the final transcript of the audio in one call.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mime string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("transcribe: no audio supplied")
	}
	if mime == "" {
		mime = "audio/wav"
	}
	parts := []llm.Part{
		llm.BlobPart(audio, mime),
		llm.TextPart(transcribePrompt),
	}
	text, err := c.generate(ctx, "transcribe", c.cfg.ModelTranscribe, parts, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// TranscribeStream transcribes audio incrementally. Interim deltas carry the
// accumulated transcript with Partial=true; the terminal delta repeats the
// full text with Partial=false. The channel is closed after the terminal
// delta or the first error; callers must drain it.
//
// The native streaming surface is used when the provider has one. If the
// stream fails before producing anything, one batch [Client.Transcribe] is
// attempted before giving up, so a flaky streaming path degrades instead of
// failing the request.
func (c *Client) TranscribeStream(ctx context.Context, audio []byte, mime string, contextPrompt string) <-chan TranscriptDelta {
	out := make(chan TranscriptDelta, 16)
	go func() {
		defer close(out)
		if len(audio) == 0 {
			out <- TranscriptDelta{Err: fmt.Errorf("transcribe: no audio supplied")}
			return
		}
		if mime == "" {
			mime = "audio/wav"
		}

		prompt := transcribePrompt
		if contextPrompt != "" {
			prompt += "\n\nContext from earlier in this session:\n" + contextPrompt
		}
		parts := []llm.Part{
			llm.BlobPart(audio, mime),
			llm.TextPart(prompt),
		}

		model := c.ResolveModel(ctx, c.cfg.ModelTranscribe)
		accumulated, streamed, err := c.streamOnce(ctx, model, parts, out)
		if err != nil && !streamed {
			// Nothing made it out of the stream; fall back to one batch call.
			text, berr := c.Transcribe(ctx, audio, mime)
			if berr != nil {
				out <- TranscriptDelta{Err: err}
				return
			}
			accumulated = text
		} else if err != nil {
			out <- TranscriptDelta{Err: err}
			return
		}

		select {
		case out <- TranscriptDelta{Text: strings.TrimSpace(accumulated), Partial: false}:
		case <-ctx.Done():
		}
	}()
	return out
}

// streamOnce runs one provider stream, forwarding partial accumulations.
// It reports the accumulated text and whether any delta was forwarded.
func (c *Client) streamOnce(ctx context.Context, model string, parts []llm.Part, out chan<- TranscriptDelta) (string, bool, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", false, err
	}
	defer c.sem.Release(1)

	start := time.Now()
	stream, err := c.provider.GenerateStream(ctx, model, parts, nil)
	if err != nil {
		c.recordStream(ctx, model, "error", start)
		return "", false, err
	}

	var sb strings.Builder
	streamed := false
	for delta := range stream {
		if delta.Err != nil {
			c.recordStream(ctx, model, "error", start)
			return sb.String(), streamed, delta.Err
		}
		sb.WriteString(delta.Text)
		streamed = true
		select {
		case out <- TranscriptDelta{Text: sb.String(), Partial: true}:
		case <-ctx.Done():
			return sb.String(), streamed, ctx.Err()
		}
	}
	c.recordStream(ctx, model, "ok", start)
	return sb.String(), streamed, nil
}

func (c *Client) recordStream(ctx context.Context, model, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordLLMRequest(ctx, model, "transcribe_stream", status, time.Since(start).Seconds())
}
