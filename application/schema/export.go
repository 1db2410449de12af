package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	model "github.com/reglet-dev/capkit/domain/schema"
)

// ToJSONSchema renders a parameter schema as a JSON Schema object.
// Closed schemas forbid additional properties. Validator rules are kept under
// the "x-rules" extension keyword.
func ToJSONSchema(s *model.Schema) *jsonschema.Schema {
	if s == nil {
		s = model.Empty()
	}
	js := objectToJSONSchema(s)
	js.Version = Draft
	return js
}

// Generate renders s as an indented JSON Schema document.
func Generate(s *model.Schema) ([]byte, error) {
	b, err := json.MarshalIndent(ToJSONSchema(s), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return b, nil
}

func objectToJSONSchema(s *model.Schema) *jsonschema.Schema {
	js := &jsonschema.Schema{
		Type:        "object",
		Description: s.Description,
		Properties:  jsonschema.NewProperties(),
	}
	if !s.Open {
		js.AdditionalProperties = jsonschema.FalseSchema
	}
	for _, f := range s.Fields {
		js.Properties.Set(f.Name, fieldToJSONSchema(f))
		if !f.Optional && f.Default == nil {
			js.Required = append(js.Required, f.Name)
		}
	}
	return js
}

func fieldToJSONSchema(f model.Field) *jsonschema.Schema {
	var js *jsonschema.Schema
	switch {
	case f.Type == model.TypeObject && f.Properties != nil:
		js = objectToJSONSchema(f.Properties)
	case f.Type == model.TypeAny:
		js = &jsonschema.Schema{}
	default:
		js = &jsonschema.Schema{Type: string(f.Type)}
	}

	if f.Type == model.TypeArray && f.Items != nil {
		js.Items = fieldToJSONSchema(*f.Items)
	}
	if f.Description != "" {
		js.Description = f.Description
	}
	js.Default = f.Default
	js.Enum = f.Enum
	if f.Rules != "" {
		js.Extras = map[string]any{"x-rules": f.Rules}
	}
	return js
}
