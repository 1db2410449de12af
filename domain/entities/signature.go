package entities

import (
	"encoding/json"

	"github.com/reglet-dev/capkit/domain/schema"
)

// FunctionSignature advertises one callable function of a capability.
type FunctionSignature struct {
	// Parameters describes the accepted parameter set. Nil accepts no parameters.
	Parameters *schema.Schema `json:"parameter_schema,omitempty"`

	// Result is an optional JSON Schema document the function's data must satisfy.
	Result json.RawMessage `json:"result_schema,omitempty"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// FindFunction returns the signature with the given name.
func FindFunction(sigs []FunctionSignature, name string) (FunctionSignature, bool) {
	for _, s := range sigs {
		if s.Name == name {
			return s, true
		}
	}
	return FunctionSignature{}, false
}

// FunctionNames returns the names of sigs in advertisement order.
func FunctionNames(sigs []FunctionSignature) []string {
	names := make([]string, 0, len(sigs))
	for _, s := range sigs {
		names = append(names, s.Name)
	}
	return names
}
