package dispatch

import (
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/domain/errors"
	"github.com/reglet-dev/capkit/domain/ports"
	"github.com/reglet-dev/capkit/domain/schema"
	"github.com/reglet-dev/capkit/runctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Invocation is a validated call on its way into a capability.
type Invocation struct {
	Capability   ports.Capability
	Params       schema.Values
	Signature    entities.FunctionSignature
	CallID       string
	CapabilityID entities.CapabilityID
	Function     string
}

// Handler executes an invocation.
type Handler func(rc *runctx.RunContext, inv *Invocation) (*entities.StepResult, error)

// Middleware wraps a Handler to add cross-cutting behavior around the
// Executing stage. Middleware executes in FIFO order: the first registered
// is the outermost.
type Middleware func(next Handler) Handler

func chain(h Handler, mws []Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func execute(rc *runctx.RunContext, inv *Invocation) (*entities.StepResult, error) {
	return inv.Capability.ExecuteFunction(rc, inv.Function, inv.Params)
}

// Recovery converts a panic inside a capability into a CapabilityFault.
// The dispatcher always installs it closest to the capability.
func Recovery() Middleware {
	return func(next Handler) Handler {
		return func(rc *runctx.RunContext, inv *Invocation) (res *entities.StepResult, err error) {
			defer func() {
				if p := recover(); p != nil {
					res = nil
					err = &errors.CapabilityFaultError{
						CapabilityID: inv.CapabilityID,
						Function:     inv.Function,
						Panic:        p,
						Stack:        debug.Stack(),
					}
				}
			}()
			return next(rc, inv)
		}
	}
}

// Logging logs the start and outcome of every execution. A nil logger uses
// the run context's logger.
func Logging(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(rc *runctx.RunContext, inv *Invocation) (*entities.StepResult, error) {
			l := logger
			if l == nil {
				l = rc.Logger()
			} else {
				l = l.With(rc.LogAttrs()...)
			}
			l = l.With(
				"call_id", inv.CallID,
				"capability_id", string(inv.CapabilityID),
				"function", inv.Function,
			)

			l.Debug("executing capability function")
			start := time.Now()
			res, err := next(rc, inv)
			elapsed := time.Since(start)

			switch {
			case err != nil:
				l.Warn("capability function failed", "duration", elapsed, "kind", string(errors.KindOf(err)), "error", err)
			case res != nil && res.Error != nil:
				l.Warn("capability function failed", "duration", elapsed, "kind", res.Error.Kind, "error", res.Error.Message)
			default:
				l.Info("capability function completed", "duration", elapsed)
			}
			return res, err
		}
	}
}

const tracerName = "github.com/reglet-dev/capkit/application/dispatch"

// Tracing records one span per execution. A nil provider uses the global
// OpenTelemetry tracer provider.
func Tracing(tp trace.TracerProvider) Middleware {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(tracerName)

	return func(next Handler) Handler {
		return func(rc *runctx.RunContext, inv *Invocation) (*entities.StepResult, error) {
			ctx, span := tracer.Start(rc, string(inv.CapabilityID)+"."+inv.Function,
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.String("capkit.call_id", inv.CallID),
					attribute.String("capkit.capability_id", string(inv.CapabilityID)),
					attribute.String("capkit.function", inv.Function),
					attribute.String("capkit.trace_id", rc.TraceID()),
					attribute.String("capkit.run_id", rc.RunID()),
				),
			)
			defer span.End()

			res, err := next(rc.WithContext(ctx), inv)
			switch {
			case err != nil:
				span.RecordError(err)
				span.SetAttributes(attribute.String("capkit.error_kind", string(errors.KindOf(err))))
				span.SetStatus(codes.Error, err.Error())
			case res != nil && res.Error != nil:
				span.SetAttributes(attribute.String("capkit.error_kind", res.Error.Kind))
				span.SetStatus(codes.Error, res.Error.Message)
			default:
				span.SetStatus(codes.Ok, "")
			}
			return res, err
		}
	}
}
