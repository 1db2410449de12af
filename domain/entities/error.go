package entities

import "fmt"

// ErrorInfo is the structured error carried by a failed StepResult.
// Kind is a stable machine-readable category such as "UnknownFunction".
type ErrorInfo struct {
	// Details holds kind-specific context, e.g. per-field validation issues.
	Details map[string]any `json:"details,omitempty"`

	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ErrorInfo) Error() string {
	if e == nil {
		return ""
	}
	if e.Kind == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewErrorInfo creates an ErrorInfo with the given kind and message.
func NewErrorInfo(kind, message string) *ErrorInfo {
	return &ErrorInfo{Kind: kind, Message: message}
}

// WithDetail sets a single detail entry and returns the receiver.
func (e *ErrorInfo) WithDetail(key string, value any) *ErrorInfo {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithDetails merges details into the receiver and returns it.
func (e *ErrorInfo) WithDetails(details map[string]any) *ErrorInfo {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}
