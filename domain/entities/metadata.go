package entities

import (
	"time"
)

// Metadata keys stamped on every dispatched StepResult.
const (
	MetaCallID       = "call_id"
	MetaTraceID      = "trace_id"
	MetaCapabilityID = "capability_id"
	MetaFunction     = "function"
	MetaDurationMs   = "duration_ms"
)

// RunMetadata describes one dispatch call.
type RunMetadata struct {
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	CallID       string        `json:"call_id,omitempty"`
	TraceID      string        `json:"trace_id,omitempty"`
	CapabilityID CapabilityID  `json:"capability_id,omitempty"`
	Function     string        `json:"function,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
}

// NewRunMetadata creates a new RunMetadata with the given start and end times.
func NewRunMetadata(start, end time.Time) *RunMetadata {
	return &RunMetadata{
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
	}
}

// WithCall sets the call and trace identifiers.
func (m *RunMetadata) WithCall(callID, traceID string) *RunMetadata {
	m.CallID = callID
	m.TraceID = traceID
	return m
}

// WithTarget sets the capability and function that were called.
func (m *RunMetadata) WithTarget(id CapabilityID, function string) *RunMetadata {
	m.CapabilityID = id
	m.Function = function
	return m
}

// Map renders the metadata as StepResult metadata entries. Empty values are omitted.
func (m *RunMetadata) Map() map[string]any {
	out := map[string]any{
		MetaDurationMs: m.Duration.Milliseconds(),
	}
	if m.CallID != "" {
		out[MetaCallID] = m.CallID
	}
	if m.TraceID != "" {
		out[MetaTraceID] = m.TraceID
	}
	if m.CapabilityID != "" {
		out[MetaCapabilityID] = string(m.CapabilityID)
	}
	if m.Function != "" {
		out[MetaFunction] = m.Function
	}
	return out
}
