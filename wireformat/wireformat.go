// Package wireformat defines the JSON wire format structures exchanged between
// the host and WASM-backed capabilities. These types must remain stable and
// backward compatible as they define the guest ABI contract.
package wireformat

import (
	"encoding/json"
	"time"

	"github.com/reglet-dev/capkit/domain/schema"
)

// ContextWire is the JSON wire format for run context propagation.
type ContextWire struct {
	Deadline  *time.Time `json:"deadline,omitempty"`
	TraceID   string     `json:"trace_id,omitempty"`
	RunID     string     `json:"run_id,omitempty"`
	FlowID    string     `json:"flow_id,omitempty"`
	StepID    string     `json:"step_id,omitempty"`
	TimeoutMs int64      `json:"timeout_ms,omitempty"`
	Canceled  bool       `json:"canceled,omitempty"`
}

// DescribeWire is returned by the guest's "describe" export.
type DescribeWire struct {
	ID          string         `json:"id,omitempty"`
	Description string         `json:"description,omitempty"`
	Functions   []FunctionWire `json:"functions"`
}

// FunctionWire advertises one guest function.
type FunctionWire struct {
	Parameters  *schema.Schema  `json:"parameter_schema,omitempty"`
	Result      json.RawMessage `json:"result_schema,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
}

// ExecuteRequestWire is sent to the guest's "execute" export.
type ExecuteRequestWire struct {
	Parameters map[string]any `json:"parameters"`
	PipedInput any            `json:"piped_input,omitempty"`
	Function   string         `json:"function"`
	Context    ContextWire    `json:"context"`
}

// ExecuteResponseWire is returned by the guest's "execute" export.
type ExecuteResponseWire struct {
	Data      any            `json:"data"`
	Error     *ErrorWire     `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Artifacts []ArtifactWire `json:"artifacts,omitempty"`
}

// ArtifactWire references a file produced by a guest function.
type ArtifactWire struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// ErrorWire is the structured error format shared by host and guest.
type ErrorWire struct {
	Details map[string]any `json:"details,omitempty"`
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
}

// SecretRequestWire is sent by the guest to the "secret_get" host function.
// An empty Key requests every secret of the provider.
type SecretRequestWire struct {
	Provider string      `json:"provider"`
	Key      string      `json:"key,omitempty"`
	Context  ContextWire `json:"context"`
}

// SecretResponseWire is returned by the "secret_get" host function.
type SecretResponseWire struct {
	Values map[string]string `json:"values,omitempty"`
	Error  *ErrorWire        `json:"error,omitempty"`
	Value  string            `json:"value,omitempty"`
}

// LogMessageWire is sent by the guest to the "log_message" host function.
type LogMessageWire struct {
	Attrs   map[string]any `json:"attrs,omitempty"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Context ContextWire    `json:"context"`
}
