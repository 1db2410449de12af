package hostfuncs

import (
	"context"

	"github.com/reglet-dev/capkit/domain/entities"
)

// HostContext is the context handed to host functions. It carries the invoked
// function name and the capability that made the call.
type HostContext interface {
	context.Context

	// FunctionName returns the name of the host function being invoked.
	FunctionName() string

	// CapabilityID returns the calling capability, or "" if unknown.
	CapabilityID() entities.CapabilityID
}

type hostContext struct {
	context.Context
	funcName string
}

func (c *hostContext) FunctionName() string {
	return c.funcName
}

func (c *hostContext) CapabilityID() entities.CapabilityID {
	return CapabilityIDFromContext(c.Context)
}

// NewHostContext wraps ctx for an invocation of funcName.
func NewHostContext(ctx context.Context, funcName string) HostContext {
	return &hostContext{Context: ctx, funcName: funcName}
}

// HostContextFrom returns ctx if it already is a HostContext for funcName.
func HostContextFrom(ctx context.Context, funcName string) HostContext {
	if hc, ok := ctx.(HostContext); ok && hc.FunctionName() == funcName {
		return hc
	}
	return NewHostContext(ctx, funcName)
}

type capabilityIDKey struct{}

// WithCapabilityID records the calling capability on ctx.
func WithCapabilityID(ctx context.Context, id entities.CapabilityID) context.Context {
	return context.WithValue(ctx, capabilityIDKey{}, id)
}

// CapabilityIDFromContext returns the calling capability recorded on ctx.
func CapabilityIDFromContext(ctx context.Context) entities.CapabilityID {
	id, _ := ctx.Value(capabilityIDKey{}).(entities.CapabilityID)
	return id
}
