package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"billscan/constants"
)

// BuildAmountsJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. It is used locally to validate what the model returned.
func BuildAmountsJSONSchema() map[string]any {
	types := make([]string, 0, len(constants.TypePriority))
	for _, t := range constants.TypePriority {
		types = append(types, string(t))
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"currency": map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
			"amounts": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"type":       map[string]any{"type": "string", "enum": types},
						"value":      map[string]any{"type": "number"},
						"source":     map[string]any{"type": "string"},
						"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
					},
					"required": []string{"type", "value"},
				},
			},
			"status": map[string]any{
				"type": "string",
				"enum": []string{
					string(constants.StatusOK),
					string(constants.StatusWarning),
					string(constants.StatusError),
					string(constants.StatusNoAmountsFound),
				},
			},
		},
		"required": []string{"currency", "amounts", "status"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
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
