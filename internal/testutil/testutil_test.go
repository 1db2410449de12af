package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapSecrets(t *testing.T) {
	s := MapSecrets{"db": {"password": "hunter2"}}

	v, err := s.Get(context.Background(), "db", "password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)

	_, err = s.Get(context.Background(), "db", "user")
	assert.Error(t, err)

	_, err = s.GetAll(context.Background(), "cache")
	assert.Error(t, err)
}

func TestLogBuffer(t *testing.T) {
	var buf LogBuffer
	logger := buf.Logger()
	logger.Debug("first", "n", 1)
	logger.Info("second")

	recs := buf.Records(t)
	require.Len(t, recs, 2)

	rec, ok := buf.Find(t, "first")
	require.True(t, ok)
	AssertMapContains(t, map[string]any{"level": "DEBUG", "n": float64(1)}, rec)

	_, ok = buf.Find(t, "third")
	assert.False(t, ok)
}

func TestAssertJSONEqual(t *testing.T) {
	AssertJSONEqual(t, `{"a":1,"b":[true]}`, "{\n  \"b\": [true],\n  \"a\": 1\n}")
}
