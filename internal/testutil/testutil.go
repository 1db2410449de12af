// Package testutil provides fakes and assertions shared by capkit tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MapSecrets is an in-memory secret service keyed by provider then key.
type MapSecrets map[string]map[string]string

// Get returns the secret or an error naming the missing key.
func (m MapSecrets) Get(_ context.Context, provider, key string) (string, error) {
	v, ok := m[provider][key]
	if !ok {
		return "", fmt.Errorf("secret %s/%s not found", provider, key)
	}
	return v, nil
}

// GetAll returns every secret of provider.
func (m MapSecrets) GetAll(_ context.Context, provider string) (map[string]string, error) {
	all, ok := m[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not found", provider)
	}
	return all, nil
}

// LogBuffer captures JSON log records.
type LogBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

// Write implements io.Writer.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything written so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Logger returns a debug-level JSON logger writing to b.
func (b *LogBuffer) Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(b, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Records decodes every captured record.
func (b *LogBuffer) Records(t testing.TB) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), "log line %q", line)
		out = append(out, rec)
	}
	return out
}

// Find returns the first record with the given message.
func (b *LogBuffer) Find(t testing.TB, msg string) (map[string]any, bool) {
	t.Helper()
	for _, rec := range b.Records(t) {
		if rec["msg"] == msg {
			return rec, true
		}
	}
	return nil, false
}

// AssertJSONEqual compares two JSON documents for equality, ignoring formatting.
func AssertJSONEqual(t testing.TB, expected, actual string, msgAndArgs ...any) {
	t.Helper()

	var expectedJSON, actualJSON any
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}

// AssertMapContains asserts that actual contains every expected key-value pair.
func AssertMapContains(t testing.TB, expected, actual map[string]any, msgAndArgs ...any) {
	t.Helper()

	for key, want := range expected {
		got, ok := actual[key]
		if assert.True(t, ok, "map should contain key %q", key) {
			assert.Equal(t, want, got, msgAndArgs...)
		}
	}
}
