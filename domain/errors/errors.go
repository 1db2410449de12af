// Package errors provides the dispatch error taxonomy.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/domain/schema"
)

// Kind is a stable, machine-readable error category.
type Kind string

const (
	KindUnknownCapability   Kind = "UnknownCapability"
	KindDuplicateIdentifier Kind = "DuplicateIdentifier"
	KindUnknownFunction     Kind = "UnknownFunction"
	KindValidationError     Kind = "ValidationError"
	KindCancelled           Kind = "Cancelled"
	KindCapabilityFault     Kind = "CapabilityFault"
	KindRegistryClosed      Kind = "RegistryClosed"
	KindInvalidIdentifier   Kind = "InvalidIdentifier"
)

// ValidationError enumerates every field-level problem found in a parameter set.
type ValidationError = schema.ValidationError

// DetailedError is implemented by error types that can describe themselves as
// a structured ErrorInfo. New error types only need to implement this
// interface to be classified by ToErrorInfo.
type DetailedError interface {
	error
	ToErrorInfo() *entities.ErrorInfo
}

// ToErrorInfo converts any error into the ErrorInfo carried by a failed StepResult.
// Unclassified errors become CapabilityFault with the original message kept
// under the "cause" detail.
func ToErrorInfo(err error) *entities.ErrorInfo {
	if err == nil {
		return nil
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return EnsureKind(de.ToErrorInfo(), "", "")
	}

	var info *entities.ErrorInfo
	if stdErrors.As(err, &info) {
		return EnsureKind(info, "", "")
	}

	var ve *schema.ValidationError
	if stdErrors.As(err, &ve) {
		return entities.NewErrorInfo(string(KindValidationError), ve.Error()).
			WithDetail("fields", ve.Fields()).
			WithDetail("issues", ve.Issues)
	}

	if IsCancellation(err) {
		return entities.NewErrorInfo(string(KindCancelled), err.Error()).
			WithDetail("cause", err.Error())
	}

	return entities.NewErrorInfo(string(KindCapabilityFault), err.Error()).
		WithDetail("cause", err.Error())
}

// EnsureKind returns info unchanged when it carries a kind. Otherwise it
// returns a copy classified as CapabilityFault, with the capability and
// function recorded in the details when given.
func EnsureKind(info *entities.ErrorInfo, id entities.CapabilityID, function string) *entities.ErrorInfo {
	if info == nil || info.Kind != "" {
		return info
	}
	out := entities.NewErrorInfo(string(KindCapabilityFault), info.Message).
		WithDetails(info.Details)
	if out.Message == "" {
		out.Message = "capability function failed"
	}
	if id != "" {
		out.WithDetail("capability_id", string(id))
	}
	if function != "" {
		out.WithDetail("function", function)
	}
	return out
}

// KindOf returns the kind ToErrorInfo would assign to err, or "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Kind(ToErrorInfo(err).Kind)
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsCancellation reports whether err stems from context cancellation or deadline expiry.
func IsCancellation(err error) bool {
	return stdErrors.Is(err, context.Canceled) || stdErrors.Is(err, context.DeadlineExceeded)
}

// CapabilityError is a classified failure. Capabilities return it to report
// business errors under their own kinds; those propagate to the caller unchanged.
type CapabilityError struct {
	Err     error
	Details map[string]any
	Kind    Kind
	Message string
}

// New creates a CapabilityError of the given kind.
func New(kind Kind, format string, args ...any) *CapabilityError {
	return &CapabilityError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a CapabilityError of the given kind wrapping err.
func Wrap(kind Kind, err error, message string) *CapabilityError {
	return &CapabilityError{Kind: kind, Message: message, Err: err}
}

// WithDetail sets a detail entry and returns the receiver.
func (e *CapabilityError) WithDetail(key string, value any) *CapabilityError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *CapabilityError) Error() string {
	if e.Kind == "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// ToErrorInfo implements DetailedError.
func (e *CapabilityError) ToErrorInfo() *entities.ErrorInfo {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	info := entities.NewErrorInfo(string(e.Kind), msg).WithDetails(e.Details)
	if e.Err != nil {
		info.WithDetail("cause", e.Err.Error())
	}
	return info
}

// UnknownCapabilityError reports a capability identifier that was never registered.
type UnknownCapabilityError struct {
	ID entities.CapabilityID
}

func (e *UnknownCapabilityError) Error() string {
	return fmt.Sprintf("unknown capability %q", string(e.ID))
}

// ToErrorInfo implements DetailedError.
func (e *UnknownCapabilityError) ToErrorInfo() *entities.ErrorInfo {
	return entities.NewErrorInfo(string(KindUnknownCapability), e.Error()).
		WithDetail("capability_id", string(e.ID))
}

// DuplicateIdentifierError reports a second registration under the same identifier.
type DuplicateIdentifierError struct {
	ID entities.CapabilityID
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("capability %q already registered", string(e.ID))
}

// ToErrorInfo implements DetailedError.
func (e *DuplicateIdentifierError) ToErrorInfo() *entities.ErrorInfo {
	return entities.NewErrorInfo(string(KindDuplicateIdentifier), e.Error()).
		WithDetail("capability_id", string(e.ID))
}

// InvalidIdentifierError reports a malformed capability identifier.
type InvalidIdentifierError struct {
	Err   error
	Value string
}

func (e *InvalidIdentifierError) Error() string {
	return e.Err.Error()
}

func (e *InvalidIdentifierError) Unwrap() error {
	return e.Err
}

// ToErrorInfo implements DetailedError.
func (e *InvalidIdentifierError) ToErrorInfo() *entities.ErrorInfo {
	return entities.NewErrorInfo(string(KindInvalidIdentifier), e.Error()).
		WithDetail("value", e.Value)
}

// UnknownFunctionError reports a function name absent from a capability's advertisement.
type UnknownFunctionError struct {
	CapabilityID entities.CapabilityID
	Function     string
	Available    []string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("capability %q has no function %q", string(e.CapabilityID), e.Function)
}

// ToErrorInfo implements DetailedError.
func (e *UnknownFunctionError) ToErrorInfo() *entities.ErrorInfo {
	info := entities.NewErrorInfo(string(KindUnknownFunction), e.Error()).
		WithDetail("capability_id", string(e.CapabilityID)).
		WithDetail("function", e.Function)
	if e.Available != nil {
		info.WithDetail("available", e.Available)
	}
	return info
}

// CancelledError reports that a call was aborted by its run context.
type CancelledError struct {
	Err          error
	CapabilityID entities.CapabilityID
	Function     string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("call to %s.%s cancelled: %v", string(e.CapabilityID), e.Function, e.Err)
}

func (e *CancelledError) Unwrap() error {
	return e.Err
}

// ToErrorInfo implements DetailedError.
func (e *CancelledError) ToErrorInfo() *entities.ErrorInfo {
	info := entities.NewErrorInfo(string(KindCancelled), e.Error()).
		WithDetail("capability_id", string(e.CapabilityID)).
		WithDetail("function", e.Function)
	if e.Err != nil {
		info.WithDetail("cause", e.Err.Error())
	}
	return info
}

// CapabilityFaultError wraps an unexpected failure raised while constructing or
// executing a capability. Panic is set when the failure was a recovered panic.
type CapabilityFaultError struct {
	Cause        error
	Panic        any
	CapabilityID entities.CapabilityID
	Function     string
	Stack        []byte
}

func (e *CapabilityFaultError) Error() string {
	target := string(e.CapabilityID)
	if e.Function != "" {
		target += "." + e.Function
	}
	if e.Panic != nil {
		return fmt.Sprintf("capability fault in %s: panic: %v", target, e.Panic)
	}
	return fmt.Sprintf("capability fault in %s: %v", target, e.Cause)
}

func (e *CapabilityFaultError) Unwrap() error {
	return e.Cause
}

// ToErrorInfo implements DetailedError.
func (e *CapabilityFaultError) ToErrorInfo() *entities.ErrorInfo {
	info := entities.NewErrorInfo(string(KindCapabilityFault), e.Error()).
		WithDetail("capability_id", string(e.CapabilityID))
	if e.Function != "" {
		info.WithDetail("function", e.Function)
	}
	switch {
	case e.Panic != nil:
		info.WithDetail("cause", fmt.Sprintf("panic: %v", e.Panic))
	case e.Cause != nil:
		info.WithDetail("cause", e.Cause.Error())
	}
	if len(e.Stack) > 0 {
		info.WithDetail("stack", string(e.Stack))
	}
	return info
}

// RegistryClosedError reports use of a registry after shutdown.
type RegistryClosedError struct {
	ID entities.CapabilityID
}

func (e *RegistryClosedError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("registry closed: cannot use capability %q", string(e.ID))
	}
	return "registry closed"
}

// ToErrorInfo implements DetailedError.
func (e *RegistryClosedError) ToErrorInfo() *entities.ErrorInfo {
	info := entities.NewErrorInfo(string(KindRegistryClosed), e.Error())
	if e.ID != "" {
		info.WithDetail("capability_id", string(e.ID))
	}
	return info
}
