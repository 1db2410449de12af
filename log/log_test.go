package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/reglet-dev/capkit/runctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestNewHandler_Defaults(t *testing.T) {
	h := NewHandler(&bytes.Buffer{})
	assert.True(t, h.Enabled(context.TODO(), slog.LevelInfo))
	assert.False(t, h.Enabled(context.TODO(), slog.LevelDebug))
}

func TestNewHandler_Options(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, WithLevel(slog.LevelDebug), WithSource(true), WithFormat(FormatText))
	logger.Debug("hello", "k", "v")

	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "source=")
}

func TestNewHandler_LevelVar(t *testing.T) {
	var lv slog.LevelVar
	lv.Set(slog.LevelWarn)
	h := NewHandler(&bytes.Buffer{}, WithLevel(&lv))
	assert.False(t, h.Enabled(context.TODO(), slog.LevelInfo))
	lv.Set(slog.LevelInfo)
	assert.True(t, h.Enabled(context.TODO(), slog.LevelInfo))
}

func TestContextHandler_StampsRunIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)
	rc := runctx.New(context.Background(), runctx.WithRunID("run-1"), runctx.WithStepID("s1"), runctx.WithTraceID("t-1"))

	logger.InfoContext(rc, "from run")
	logger.InfoContext(runctx.ContextWithTraceID(context.Background(), "t-2"), "from trace")
	logger.Info("bare")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 3)
	assert.Equal(t, "run-1", recs[0]["run_id"])
	assert.Equal(t, "s1", recs[0]["step_id"])
	assert.Equal(t, "t-1", recs[0]["trace_id"])
	assert.NotContains(t, recs[0], "flow_id")
	assert.Equal(t, "t-2", recs[1]["trace_id"])
	assert.NotContains(t, recs[2], "trace_id")
}

func TestContextHandler_NoDuplicateWhenBound(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)
	rc := runctx.New(context.Background(), runctx.WithRunID("run-1"), runctx.WithTraceID("t-1"))

	ForRun(logger, rc, "capability_id", "community:hello").InfoContext(rc, "bound")

	line := buf.String()
	assert.Equal(t, 1, strings.Count(line, `"run_id"`))
	assert.Equal(t, 1, strings.Count(line, `"trace_id"`))
	assert.Contains(t, line, `"capability_id":"community:hello"`)
}

func TestContextHandler_Group(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf).WithGroup("req")
	rc := runctx.New(context.Background(), runctx.WithRunID("run-1"))

	logger.InfoContext(rc, "grouped", "a", 1)
	recs := decodeLines(t, &buf)
	assert.NotContains(t, recs[0], "run_id")
	assert.Equal(t, map[string]any{"a": float64(1)}, recs[0]["req"])
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	lvl, err = ParseLevel(" WARN+2 ")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn+2, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestAttrsFromWire(t *testing.T) {
	attrs := AttrsFromWire(map[string]any{
		"str":   "v",
		"int":   json.Number("42"),
		"float": json.Number("1.5"),
		"plain": float64(3),
		"ok":    true,
		"obj":   map[string]any{"inner": "x"},
		"list":  []any{"a"},
	})

	keys := make([]string, len(attrs))
	for i, a := range attrs {
		keys[i] = a.Key
	}
	assert.Equal(t, []string{"float", "int", "list", "obj", "ok", "plain", "str"}, keys)

	byKey := map[string]slog.Attr{}
	for _, a := range attrs {
		byKey[a.Key] = a
	}
	assert.Equal(t, slog.KindInt64, byKey["int"].Value.Kind())
	assert.Equal(t, int64(42), byKey["int"].Value.Int64())
	assert.Equal(t, slog.KindFloat64, byKey["float"].Value.Kind())
	assert.Equal(t, int64(3), byKey["plain"].Value.Int64())
	assert.Equal(t, slog.KindGroup, byKey["obj"].Value.Kind())
	assert.Equal(t, slog.KindAny, byKey["list"].Value.Kind())
}
