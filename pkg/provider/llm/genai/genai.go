// Package genai adapts the Google Gemini SDK to the llm.Provider interface.
//
// Structured output uses the API's native response-schema enforcement: the
// plain-map JSON Schema carried by llm.GenerateConfig is converted to the
// SDK's typed schema before each call.
package genai

import (
	"context"
	"fmt"

	"github.com/submit4201/candor/pkg/provider/llm"
	"google.golang.org/genai"
)

// Provider is a Gemini-backed implementation of [llm.Provider].
// It is safe for concurrent use.
type Provider struct {
	client *genai.Client
}

var _ llm.Provider = (*Provider)(nil)

// New creates a Gemini provider authenticated with apiKey against the
// Gemini API backend.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai: api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Name implements [llm.Provider].
func (p *Provider) Name() string { return "gemini" }

// GenerateContent implements [llm.Provider].
func (p *Provider) GenerateContent(ctx context.Context, model string, parts []llm.Part, cfg *llm.GenerateConfig) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, model, toContents(parts), toConfig(cfg))
	if err != nil {
		return "", fmt.Errorf("genai: generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("genai: empty response from model %q", model)
	}
	return text, nil
}

// GenerateStream implements [llm.Provider].
func (p *Provider) GenerateStream(ctx context.Context, model string, parts []llm.Part, cfg *llm.GenerateConfig) (<-chan llm.StreamDelta, error) {
	out := make(chan llm.StreamDelta, 16)
	go func() {
		defer close(out)
		for resp, err := range p.client.Models.GenerateContentStream(ctx, model, toContents(parts), toConfig(cfg)) {
			if err != nil {
				select {
				case out <- llm.StreamDelta{Err: fmt.Errorf("genai: stream: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case out <- llm.StreamDelta{Text: text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ListModels implements [llm.Provider].
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	var names []string
	for model, err := range p.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("genai: list models: %w", err)
		}
		names = append(names, model.Name)
	}
	return names, nil
}

func toContents(parts []llm.Part) []*genai.Content {
	converted := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Blob != nil {
			converted = append(converted, genai.NewPartFromBytes(p.Blob, p.MIME))
		} else {
			converted = append(converted, genai.NewPartFromText(p.Text))
		}
	}
	return []*genai.Content{genai.NewContentFromParts(converted, genai.RoleUser)}
}

func toConfig(cfg *llm.GenerateConfig) *genai.GenerateContentConfig {
	if cfg == nil {
		return nil
	}
	out := &genai.GenerateContentConfig{
		ResponseMIMEType: cfg.ResponseMIMEType,
	}
	if cfg.ResponseSchema != nil {
		out.ResponseSchema = toSchema(cfg.ResponseSchema)
	}
	if cfg.Temperature != nil {
		t := float32(*cfg.Temperature)
		out.Temperature = &t
	}
	if cfg.MaxOutputTokens > 0 {
		out.MaxOutputTokens = int32(cfg.MaxOutputTokens)
	}
	return out
}

// toSchema converts a plain-map JSON Schema into the SDK's typed schema.
// Unknown keywords are dropped; the API only enforces the subset below.
func toSchema(m map[string]any) *genai.Schema {
	s := &genai.Schema{}

	if t, ok := m["type"].(string); ok {
		s.Type = schemaType(t)
	}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				s.Properties[name] = toSchema(sub)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	if req, ok := m["required"].([]any); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	if req, ok := m["required"].([]string); ok {
		s.Required = append(s.Required, req...)
	}
	if enum, ok := m["enum"].([]any); ok {
		for _, e := range enum {
			if v, ok := e.(string); ok {
				s.Enum = append(s.Enum, v)
			}
		}
	}
	if enum, ok := m["enum"].([]string); ok {
		s.Enum = append(s.Enum, enum...)
	}
	return s
}

func schemaType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}
