package runctx

import (
	"context"
	"time"

	"github.com/reglet-dev/capkit/wireformat"
)

// ContextWire is the serialized form of a RunContext used across process or
// sandbox boundaries.
type ContextWire = wireformat.ContextWire

// ToWire converts rc for sending to a guest.
func ToWire(rc *RunContext) ContextWire {
	wire := ContextWire{
		TraceID: rc.traceID,
		RunID:   rc.runID,
		FlowID:  rc.flowID,
		StepID:  rc.stepID,
	}

	if deadline, ok := rc.Deadline(); ok {
		wire.Deadline = &deadline
		if timeout := time.Until(deadline); timeout > 0 {
			wire.TimeoutMs = timeout.Milliseconds()
		}
	}

	select {
	case <-rc.Done():
		wire.Canceled = true
	default:
	}

	return wire
}

// FromWire rebuilds a RunContext from its wire form. The returned cancel func
// must be called to release resources; a wire marked canceled yields an
// already-cancelled context.
func FromWire(parent context.Context, wire ContextWire, opts ...Option) (*RunContext, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	switch {
	case wire.Deadline != nil:
		ctx, cancel = context.WithDeadline(parent, *wire.Deadline)
	case wire.TimeoutMs > 0:
		ctx, cancel = context.WithTimeout(parent, time.Duration(wire.TimeoutMs)*time.Millisecond)
	default:
		ctx, cancel = context.WithCancel(parent)
	}

	if wire.Canceled {
		cancel()
	}

	base := []Option{
		WithTraceID(wire.TraceID),
		WithRunID(wire.RunID),
		WithFlowID(wire.FlowID),
		WithStepID(wire.StepID),
	}
	return New(ctx, append(base, opts...)...), cancel
}
