// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schemas are JSON-Schema maps. They are sent to the provider as the response
// constraint and used locally to validate the reply.

func figureSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":        map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"box_2d": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "number"},
			},
		},
		"required": []string{"name", "description", "box_2d"},
	}
}

// MarkdownSchema describes a transcription-only reply.
func MarkdownSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"markdown": map[string]any{"type": "string"},
		},
		"required": []string{"markdown"},
	}
}

// FiguresSchema describes a figure-boxes-only reply.
func FiguresSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"images": map[string]any{"type": "array", "items": figureSchema()},
		},
		"required": []string{"images"},
	}
}

// PageSchema describes the combined transcription and figure reply.
func PageSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"markdown": map[string]any{"type": "string"},
			"images":   map[string]any{"type": "array", "items": figureSchema()},
		},
		"required": []string{"markdown", "images"},
	}
}

// ValidateJSONAgainstSchema validates data against schemaMap.
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// providerSchemaKeys are the JSON-Schema keywords the provider accepts in a
// response schema.
var providerSchemaKeys = map[string]bool{
	"type": true, "properties": true, "required": true, "items": true,
	"description": true, "enum": true, "format": true, "nullable": true,
	"minItems": true, "maxItems": true, "propertyOrdering": true,
}

// toProviderSchema converts a JSON-Schema map to the provider's OpenAPI
// subset: type names are upper-cased and unsupported keywords dropped.
func toProviderSchema(s map[string]any) map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		if !providerSchemaKeys[k] {
			continue
		}
		switch k {
		case "type":
			if t, ok := v.(string); ok {
				out[k] = strings.ToUpper(t)
				continue
			}
		case "properties":
			if props, ok := v.(map[string]any); ok {
				conv := make(map[string]any, len(props))
				for name, p := range props {
					if pm, ok := p.(map[string]any); ok {
						conv[name] = toProviderSchema(pm)
					}
				}
				out[k] = conv
				continue
			}
		case "items":
			if im, ok := v.(map[string]any); ok {
				out[k] = toProviderSchema(im)
				continue
			}
		}
		out[k] = v
	}
	return out
}

var reFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\s*```$")

// stripFence removes a single surrounding Markdown code fence, if present.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if m := reFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// decodeStructured validates text against schema and decodes it into v.
func decodeStructured(text string, schema map[string]any, v any) error {
	raw := []byte(stripFence(text))
	if len(raw) == 0 {
		return ErrEmptyResponse
	}
	if err := ValidateJSONAgainstSchema(schema, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}
