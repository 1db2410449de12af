package hostfuncs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanicRecoveryMiddleware(t *testing.T) {
	wrapped := PanicRecoveryMiddleware()(func(context.Context, []byte) ([]byte, error) {
		panic("test panic")
	})

	resp, err := wrapped(context.Background(), []byte("{}"))
	require.NoError(t, err)

	errResp := decodeError(t, resp)
	assert.Equal(t, KindHostFault, errResp.Error.Kind)
	assert.Equal(t, "panic: test panic", errResp.Error.Message)
}

func TestPanicRecoveryMiddleware_NoPanic(t *testing.T) {
	wrapped := PanicRecoveryMiddleware()(func(context.Context, []byte) ([]byte, error) {
		return []byte(`{"result":"ok"}`), nil
	})

	resp, err := wrapped(context.Background(), []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, `{"result":"ok"}`, string(resp))
}

func TestMiddlewareOrder_FIFO(t *testing.T) {
	var callOrder []string
	record := func(name string) Middleware {
		return func(next ByteHandler) ByteHandler {
			return func(ctx context.Context, payload []byte) ([]byte, error) {
				callOrder = append(callOrder, name+"-before")
				resp, err := next(ctx, payload)
				callOrder = append(callOrder, name+"-after")
				return resp, err
			}
		}
	}

	reg, err := NewRegistry(
		WithMiddleware(record("mw1"), record("mw2")),
		WithByteHandler("test", func(context.Context, []byte) ([]byte, error) {
			callOrder = append(callOrder, "handler")
			return nil, nil
		}),
	)
	require.NoError(t, err)

	_, err = reg.Invoke(context.Background(), "test", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}, callOrder)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg, err := NewRegistry(
		WithMiddleware(LoggingMiddleware(logger)),
		WithByteHandler("ok", echoHandler),
		WithByteHandler("bad", func(context.Context, []byte) ([]byte, error) {
			return nil, errors.New("broken")
		}),
	)
	require.NoError(t, err)

	ctx := WithCapabilityID(context.Background(), "community:hello")
	_, _ = reg.Invoke(ctx, "ok", nil)
	_, _ = reg.Invoke(ctx, "bad", nil)

	out := buf.String()
	assert.Contains(t, out, `"msg":"host function completed"`)
	assert.Contains(t, out, `"msg":"host function failed"`)
	assert.Contains(t, out, `"host_function":"bad"`)
	assert.Contains(t, out, `"capability_id":"community:hello"`)
}
