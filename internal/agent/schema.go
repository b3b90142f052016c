package agent

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const outputSchemaJSON = `{
  "type": "object",
  "required": ["tone", "message_draft", "reasoning"],
  "properties": {
    "tone": {"type": "string"},
    "message_draft": {"type": "string"},
    "reasoning": {"type": "string"}
  }
}`

func compileOutputSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("output.json", strings.NewReader(outputSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add output schema: %w", err)
	}
	schema, err := compiler.Compile("output.json")
	if err != nil {
		return nil, fmt.Errorf("compile output schema: %w", err)
	}
	return schema, nil
}

func validateOutput(schema *jsonschema.Schema, obj map[string]any) (Result, error) {
	if err := schema.Validate(obj); err != nil {
		return Result{}, &SchemaError{Cause: err}
	}
	return Result{
		Tone:         obj["tone"].(string),
		MessageDraft: obj["message_draft"].(string),
		Reasoning:    obj["reasoning"].(string),
	}, nil
}
