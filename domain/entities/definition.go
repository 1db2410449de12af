package entities

import (
	"encoding/json"
	"time"
)

// Runtimes a capability may be backed by.
const (
	RuntimeNative = "native"
	RuntimeWASM   = "wasm"
)

// CapabilityDefinition is the serializable advertisement of a capability,
// suitable for documentation tooling and the catalog.
type CapabilityDefinition struct {
	UpdatedAt   time.Time            `json:"updated_at,omitzero"`
	ID          CapabilityID         `json:"id"`
	Description string               `json:"description,omitempty"`
	Runtime     string               `json:"runtime,omitempty"`
	EntryPoint  string               `json:"entry_point,omitempty"`
	Functions   []FunctionDefinition `json:"functions"`
}

// FunctionDefinition advertises one function with JSON Schema documents for
// its input and, optionally, its output.
type FunctionDefinition struct {
	InputSchema  json.RawMessage `json:"input_schema,omitempty"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
}

// Function returns the definition of the named function.
func (d CapabilityDefinition) Function(name string) (FunctionDefinition, bool) {
	for _, f := range d.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return FunctionDefinition{}, false
}
