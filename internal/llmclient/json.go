package llmclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/submit4201/candor/pkg/provider/llm"
	"github.com/xeipuuv/gojsonschema"
)

// QueryJSON sends prompt to the analysis model and parses the reply as a
// JSON object. Markdown code fences around the payload are tolerated.
func (c *Client) QueryJSON(ctx context.Context, prompt, modelHint string) (map[string]any, error) {
	if modelHint == "" {
		modelHint = c.cfg.ModelAnalysis
	}
	text, err := c.generate(ctx, "query_json", modelHint, []llm.Part{llm.TextPart(prompt)}, &llm.GenerateConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, err
	}
	parsed, err := ParseJSONObject(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	return parsed, nil
}

// QueryJSONSchema sends prompt to the structured-output model with a JSON
// Schema the provider enforces natively, then validates the parsed reply
// against the same schema. A conforming object is returned; anything else
// fails with [ErrSchemaViolation].
func (c *Client) QueryJSONSchema(ctx context.Context, prompt string, schema map[string]any, modelHint string) (map[string]any, error) {
	if modelHint == "" {
		modelHint = c.cfg.ModelStructured
	}
	text, err := c.generate(ctx, "query_json_schema", modelHint, []llm.Part{llm.TextPart(prompt)}, &llm.GenerateConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return nil, err
	}
	parsed, err := ParseJSONObject(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if err := validateSchema(parsed, schema); err != nil {
		return nil, err
	}
	return parsed, nil
}

// ParseJSONObject extracts a JSON object from model output. Providers
// occasionally wrap payloads in markdown fences or prepend prose; the first
// balanced object in the text is decoded.
func ParseJSONObject(text string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in output")
	}

	var out map[string]any
	if err := sonic.Unmarshal([]byte(trimmed[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return out, nil
}

// validateSchema checks data against the JSON Schema. Validation errors are
// collapsed into one [ErrSchemaViolation] listing every failed constraint.
func validateSchema(data, schema map[string]any) error {
	if schema == nil {
		return nil
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(data),
	)
	if err != nil {
		// A malformed schema is a programming error in the prompt builder,
		// not a model failure.
		return fmt.Errorf("llmclient: invalid schema: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(msgs, "; "))
}
