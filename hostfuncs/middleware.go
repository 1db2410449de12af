package hostfuncs

import (
	"context"
	"log/slog"
	"time"
)

// Middleware wraps a ByteHandler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first).
type Middleware func(next ByteHandler) ByteHandler

// PanicRecoveryMiddleware converts handler panics into a HostFault error
// response instead of crashing the host.
func PanicRecoveryMiddleware() Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp = NewPanicError(r).ToJSON()
					err = nil
				}
			}()
			return next(ctx, payload)
		}
	}
}

// LoggingMiddleware logs every host function invocation at debug level and
// failures at warn level. A nil logger uses slog.Default().
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			funcName := "unknown"
			var capID string
			if hc, ok := ctx.(HostContext); ok {
				funcName = hc.FunctionName()
				capID = string(hc.CapabilityID())
			}

			start := time.Now()
			resp, err := next(ctx, payload)
			attrs := []any{"host_function", funcName, "capability_id", capID, "duration", time.Since(start)}
			if err != nil {
				logger.WarnContext(ctx, "host function failed", append(attrs, "error", err)...)
			} else {
				logger.DebugContext(ctx, "host function completed", attrs...)
			}
			return resp, err
		}
	}
}
