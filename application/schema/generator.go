// Package schema converts between Go structs, the parameter Schema Model and
// JSON Schema documents.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/reglet-dev/capkit/domain/errors"
	model "github.com/reglet-dev/capkit/domain/schema"
)

// Draft is the JSON Schema dialect of generated documents.
const Draft = "https://json-schema.org/draft/2020-12/schema"

// GenerateSchema creates a JSON schema from a Go struct.
// It uses the `invopop/jsonschema` library to reflect on the struct
// and generate a standard JSON Schema (Draft 2020-12).
func GenerateSchema(v any) ([]byte, error) {
	jsonBytes, err := json.MarshalIndent(reflector().Reflect(v), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return jsonBytes, nil
}

func reflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		ExpandedStruct: true, // Expand struct definitions inline
		DoNotReference: true,
	}
}

type fromStructConfig struct {
	description string
	open        bool
}

func defaultFromStructConfig() *fromStructConfig {
	return &fromStructConfig{}
}

// Option configures FromStruct.
type Option func(*fromStructConfig)

// WithOpen marks the resulting schema as accepting undeclared fields.
func WithOpen() Option {
	return func(c *fromStructConfig) { c.open = true }
}

// WithDescription sets the schema description.
func WithDescription(d string) Option {
	return func(c *fromStructConfig) { c.description = d }
}

// FromStruct derives a parameter schema from a Go struct.
//
// Field names come from `json` tags; `omitempty` fields are optional. Defaults,
// enums and descriptions come from `jsonschema` tags, e.g.
// `jsonschema:"default=World,description=who to greet"`. A `validate` tag is
// carried into the field's Rules.
func FromStruct(v any, opts ...Option) (*model.Schema, error) {
	cfg := defaultFromStructConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	rt := reflect.TypeOf(v)
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil, errors.New(errors.KindValidationError, "schema source must be a struct, got %T", v)
	}

	js := reflector().Reflect(v)
	s := objectFromJSONSchema(js, rt)
	s.Open = cfg.open
	if cfg.description != "" {
		s.Description = cfg.description
	}

	if err := s.Check(); err != nil {
		return nil, fmt.Errorf("schema for %s: %w", rt.Name(), err)
	}
	return s, nil
}

// MustFromStruct is like FromStruct but panics on error.
func MustFromStruct(v any, opts ...Option) *model.Schema {
	s, err := FromStruct(v, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func objectFromJSONSchema(js *jsonschema.Schema, rt reflect.Type) *model.Schema {
	s := &model.Schema{Description: js.Description}
	if js.Properties == nil {
		return s
	}

	required := make(map[string]bool, len(js.Required))
	for _, r := range js.Required {
		required[r] = true
	}
	goFields := structFields(rt)

	for pair := js.Properties.Oldest(); pair != nil; pair = pair.Next() {
		sf, hasGo := goFields[pair.Key]
		var ft reflect.Type
		if hasGo {
			ft = sf.Type
		}
		f := fieldFromJSONSchema(pair.Key, pair.Value, ft)
		f.Optional = !required[pair.Key]
		if hasGo {
			f.Rules = sf.Tag.Get("validate")
		}
		s.Fields = append(s.Fields, f)
	}
	return s
}

func fieldFromJSONSchema(name string, js *jsonschema.Schema, rt reflect.Type) model.Field {
	f := model.Field{
		Name:        name,
		Type:        typeFromJSONSchema(js.Type),
		Description: js.Description,
		Default:     js.Default,
		Enum:        js.Enum,
	}
	rt = deref(rt)

	switch f.Type {
	case model.TypeArray:
		if js.Items != nil {
			var et reflect.Type
			if rt != nil && (rt.Kind() == reflect.Slice || rt.Kind() == reflect.Array) {
				et = rt.Elem()
			}
			items := fieldFromJSONSchema("", js.Items, et)
			f.Items = &items
		}
	case model.TypeObject:
		if js.Properties != nil && js.Properties.Len() > 0 {
			f.Properties = objectFromJSONSchema(js, rt)
		}
	}
	return f
}

func typeFromJSONSchema(t string) model.Type {
	switch t {
	case "string":
		return model.TypeString
	case "integer":
		return model.TypeInteger
	case "number":
		return model.TypeNumber
	case "boolean":
		return model.TypeBoolean
	case "array":
		return model.TypeArray
	case "object":
		return model.TypeObject
	}
	return model.TypeAny
}

func deref(rt reflect.Type) reflect.Type {
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return rt
}

// structFields maps JSON names to struct fields, following embedded structs.
func structFields(rt reflect.Type) map[string]reflect.StructField {
	out := make(map[string]reflect.StructField)
	rt = deref(rt)
	if rt == nil || rt.Kind() != reflect.Struct {
		return out
	}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if sf.Anonymous && name == "" {
			for k, v := range structFields(sf.Type) {
				out[k] = v
			}
			continue
		}
		if name == "" {
			name = sf.Name
		}
		out[name] = sf
	}
	return out
}
