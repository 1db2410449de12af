package config

import (
	"encoding/json"
	"testing"

	"github.com/reglet-dev/capkit/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetInt(t *testing.T) {
	cfg := Config{
		"yaml":   3,
		"json":   float64(4),
		"number": json.Number("5"),
		"frac":   1.5,
		"str":    "6",
	}
	tests := []struct {
		key    string
		want   int
		wantOK bool
	}{
		{"yaml", 3, true},
		{"json", 4, true},
		{"number", 5, true},
		{"frac", 0, false},
		{"str", 0, false},
		{"missing", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := GetInt(cfg, tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, 9, GetIntDefault(cfg, "frac", 9))
}

func TestGetStringSlice(t *testing.T) {
	got, ok := GetStringSlice(Config{"a": []any{"x", "y"}}, "a")
	require.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, got)

	_, ok = GetStringSlice(Config{"a": []any{"x", 1}}, "a")
	assert.False(t, ok)

	got, ok = GetStringSlice(Config{"a": []string{"z"}}, "a")
	require.True(t, ok)
	assert.Equal(t, []string{"z"}, got)
}

func TestStrings(t *testing.T) {
	cfg := Config{"greeting": "Hi", "empty": "", "flag": true}

	assert.Equal(t, "Hi", GetStringDefault(cfg, "greeting", "Hello"))
	assert.Equal(t, "Hello", GetStringDefault(cfg, "empty", "Hello"))

	b, ok := GetBool(cfg, "flag")
	assert.True(t, ok)
	assert.True(t, b)

	_, err := MustGetString(cfg, "empty")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidationError))

	s, err := MustGetString(cfg, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "Hi", s)
}
