package schema

import (
	"fmt"
	"strings"
)

// Type is the declared type of a field.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
	TypeObject  Type = "object"
	TypeAny     Type = "any"
)

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeArray, TypeObject, TypeAny:
		return true
	}
	return false
}

// Field describes one named parameter.
type Field struct {
	// Default is used when the field is absent or null. Nil means no default.
	Default any `json:"default,omitempty"`

	// Items describes array elements. Only meaningful for TypeArray.
	Items *Field `json:"items,omitempty"`

	// Properties describes the nested object. Only meaningful for TypeObject.
	Properties *Schema `json:"properties,omitempty"`

	Name        string `json:"name"`
	Type        Type   `json:"type"`
	Description string `json:"description,omitempty"`

	// Rules is a go-playground/validator tag expression (e.g. "min=1,max=64")
	// checked after the type check succeeds.
	Rules string `json:"rules,omitempty"`

	Enum []any `json:"enum,omitempty"`

	// Optional fields without a default may be omitted by the caller.
	Optional bool `json:"optional,omitempty"`
}

// Schema is a structural description of a parameter set.
type Schema struct {
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields"`

	// Open schemas accept and pass through fields they do not declare.
	Open bool `json:"open,omitempty"`
}

// New creates a closed schema with the given fields.
func New(fields ...Field) *Schema {
	return &Schema{Fields: fields}
}

// Empty returns a closed schema without fields.
func Empty() *Schema {
	return &Schema{}
}

// Field returns the declared field with the given name.
func (s *Schema) Field(name string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns the declared field names in declaration order.
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Check verifies that the schema definition itself is well formed: field names
// are unique and non-empty, types are known and every default satisfies its field.
func (s *Schema) Check() error {
	if s == nil {
		return nil
	}
	var problems []string
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if strings.TrimSpace(f.Name) == "" {
			problems = append(problems, "field with empty name")
			continue
		}
		if seen[f.Name] {
			problems = append(problems, fmt.Sprintf("duplicate field %q", f.Name))
			continue
		}
		seen[f.Name] = true
		problems = append(problems, checkField(f.Name, f)...)
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid schema: %s", strings.Join(problems, "; "))
	}
	return nil
}

func checkField(path string, f Field) []string {
	var problems []string
	if !f.Type.Valid() {
		return append(problems, fmt.Sprintf("field %q has unknown type %q", path, f.Type))
	}
	if f.Items != nil {
		problems = append(problems, checkField(path+"[]", *f.Items)...)
	}
	if f.Properties != nil {
		if err := f.Properties.Check(); err != nil {
			problems = append(problems, fmt.Sprintf("field %q: %v", path, err))
		}
	}
	if f.Default != nil {
		var issues []Issue
		validateValue(path, f, f.Default, &issues)
		for _, is := range issues {
			problems = append(problems, fmt.Sprintf("default for %q: %s", path, is.Message))
		}
	}
	return problems
}

// String declares a string field.
func String(name, description string) Field {
	return Field{Name: name, Type: TypeString, Description: description}
}

// Integer declares an integer field.
func Integer(name, description string) Field {
	return Field{Name: name, Type: TypeInteger, Description: description}
}

// Number declares a floating point field.
func Number(name, description string) Field {
	return Field{Name: name, Type: TypeNumber, Description: description}
}

// Boolean declares a boolean field.
func Boolean(name, description string) Field {
	return Field{Name: name, Type: TypeBoolean, Description: description}
}

// Array declares an array field whose elements match items.
func Array(name, description string, items Field) Field {
	return Field{Name: name, Type: TypeArray, Description: description, Items: &items}
}

// Object declares a nested object field. A nil schema accepts any object.
func Object(name, description string, properties *Schema) Field {
	return Field{Name: name, Type: TypeObject, Description: description, Properties: properties}
}

// WithDefault returns a copy of the field with a default value.
func (f Field) WithDefault(v any) Field {
	f.Default = v
	return f
}

// AsOptional returns a copy of the field that may be omitted.
func (f Field) AsOptional() Field {
	f.Optional = true
	return f
}

// WithRules returns a copy of the field with validator rules attached.
func (f Field) WithRules(rules string) Field {
	f.Rules = rules
	return f
}

// WithEnum returns a copy of the field restricted to the given values.
func (f Field) WithEnum(values ...any) Field {
	f.Enum = values
	return f
}
