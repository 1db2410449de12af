package runctx

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_GeneratesIdentifiers(t *testing.T) {
	rc := New(context.Background())

	assert.NotEmpty(t, rc.RunID())
	assert.NotEmpty(t, rc.TraceID())
	assert.Equal(t, rc.TraceID(), TraceIDFromContext(rc))

	other := New(context.Background())
	assert.NotEqual(t, rc.TraceID(), other.TraceID())
}

func TestNew_Options(t *testing.T) {
	prev := entities.Success("previous")
	rc := New(context.Background(),
		WithRunID("run-1"),
		WithFlowID("flow-1"),
		WithStepID("step-2"),
		WithTraceID("trace-abc"),
		WithPipedInput([]int{1, 2}),
		WithScriptInput(map[string]any{"region": "eu"}),
		WithSteps(map[string]*entities.StepResult{"step-1": prev}),
		WithSession(map[string]any{"user": "ada"}),
	)

	assert.Equal(t, "run-1", rc.RunID())
	assert.Equal(t, "flow-1", rc.FlowID())
	assert.Equal(t, "step-2", rc.StepID())
	assert.Equal(t, "trace-abc", rc.TraceID())
	assert.Equal(t, []int{1, 2}, rc.PipedInput())
	assert.Equal(t, "eu", rc.ScriptInput()["region"])
	assert.Equal(t, "ada", rc.Session()["user"])

	got, ok := rc.Step("step-1")
	require.True(t, ok)
	assert.Same(t, prev, got)
}

func TestNew_ReusesTraceIDFromContext(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), "upstream-trace")
	rc := New(ctx)
	assert.Equal(t, "upstream-trace", rc.TraceID())
}

func TestRunContext_AccessorsReturnCopies(t *testing.T) {
	rc := New(context.Background(), WithScriptInput(map[string]any{"a": 1}))

	in := rc.ScriptInput()
	in["a"] = 2
	assert.Equal(t, 1, rc.ScriptInput()["a"])
}

func TestRunContext_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := New(ctx)

	require.NoError(t, rc.Err())
	cancel()
	<-rc.Done()
	assert.ErrorIs(t, rc.Err(), context.Canceled)
}

func TestRunContext_WithContextKeepsState(t *testing.T) {
	rc := New(context.Background(), WithRunID("run-1"), WithTraceID("t-1"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	derived := rc.WithContext(ctx)

	assert.Equal(t, "run-1", derived.RunID())
	assert.Equal(t, "t-1", derived.TraceID())
	_, hasDeadline := derived.Deadline()
	assert.True(t, hasDeadline)

	found, ok := FromContext(context.WithValue(derived, struct{}{}, 1))
	require.True(t, ok)
	assert.Same(t, derived, found)
}

func TestRunContext_WithStep(t *testing.T) {
	rc := New(context.Background(), WithRunID("run-1"), WithStepID("a"))
	next := rc.WithStep("b", "piped")

	assert.Equal(t, "run-1", next.RunID())
	assert.Equal(t, "b", next.StepID())
	assert.Equal(t, "piped", next.PipedInput())
	assert.Equal(t, "a", rc.StepID())
}

func TestRunContext_Services(t *testing.T) {
	rc := New(context.Background())
	_, err := rc.Secrets().Get(rc, "db", "password")
	assert.ErrorIs(t, err, ErrNoSecrets)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	secrets := testutil.MapSecrets{"db": {"password": "hunter2"}}
	rc = New(context.Background(), WithServices(NewServices(secrets, logger)), WithRunID("run-7"))

	v, err := rc.Secrets().Get(rc, "db", "password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)

	rc.Logger().Info("hello")
	assert.Contains(t, buf.String(), `"run_id":"run-7"`)
	assert.Contains(t, buf.String(), `"trace_id":"`+rc.TraceID()+`"`)
}

func TestWire_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rc := New(ctx, WithRunID("run-1"), WithFlowID("f"), WithStepID("s"), WithTraceID("t"))

	wire := ToWire(rc)
	assert.Equal(t, "t", wire.TraceID)
	assert.Equal(t, "run-1", wire.RunID)
	require.NotNil(t, wire.Deadline)
	assert.Greater(t, wire.TimeoutMs, int64(0))
	assert.False(t, wire.Canceled)

	back, cancelBack := FromWire(context.Background(), wire)
	defer cancelBack()
	assert.Equal(t, "t", back.TraceID())
	assert.Equal(t, "f", back.FlowID())
	assert.Equal(t, "s", back.StepID())
	deadline, ok := back.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, *wire.Deadline, deadline, time.Millisecond)
}

func TestWire_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	wire := ToWire(New(ctx))
	assert.True(t, wire.Canceled)

	back, cancelBack := FromWire(context.Background(), wire)
	defer cancelBack()
	assert.ErrorIs(t, back.Err(), context.Canceled)
}
