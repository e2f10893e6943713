package web

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// templateSchema gates template payloads before decoding. The struct
// validator checks field-level constraints afterwards; the schema rejects
// obviously malformed shapes (wrong types, unknown modes) with a precise
// message.
var templateSchema = map[string]any{
	"type":     "object",
	"required": []any{"name", "steps"},
	"properties": map[string]any{
		"name":      map[string]any{"type": "string", "minLength": 1},
		"is_active": map[string]any{"type": "boolean"},
		"steps": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []any{"step_key", "mode", "assignee_ids"},
				"properties": map[string]any{
					"step_key":    map[string]any{"type": "string", "minLength": 1, "maxLength": 64},
					"order_index": map[string]any{"type": "integer"},
					"mode":        map[string]any{"type": "string", "enum": []any{"Serial", "Parallel"}},
					"assignee_ids": map[string]any{
						"type":     "array",
						"minItems": 1,
						"items":    map[string]any{"type": "string", "minLength": 1},
					},
				},
			},
		},
	},
}

// validateTemplatePayload validates a raw template body against the schema.
func validateTemplatePayload(body []byte) error {
	schemaLoader := gojsonschema.NewGoLoader(templateSchema)
	dataLoader := gojsonschema.NewBytesLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}
