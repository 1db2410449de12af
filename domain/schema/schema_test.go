package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_Check(t *testing.T) {
	tests := []struct {
		name    string
		schema  *Schema
		wantErr string
	}{
		{
			name:   "valid",
			schema: New(String("a", ""), Integer("b", "").WithDefault(3)),
		},
		{
			name:   "nil schema",
			schema: nil,
		},
		{
			name:    "duplicate names",
			schema:  New(String("a", ""), Integer("a", "")),
			wantErr: `duplicate field "a"`,
		},
		{
			name:    "empty name",
			schema:  New(String(" ", "")),
			wantErr: "field with empty name",
		},
		{
			name:    "unknown type",
			schema:  New(Field{Name: "x", Type: "uuid"}),
			wantErr: `unknown type "uuid"`,
		},
		{
			name:    "default violates type",
			schema:  New(String("a", "").WithDefault(1)),
			wantErr: `default for "a"`,
		},
		{
			name:    "default violates rules",
			schema:  New(Integer("a", "").WithRules("min=5").WithDefault(1)),
			wantErr: `default for "a"`,
		},
		{
			name:    "invalid nested object",
			schema:  New(Object("o", "", New(Field{Name: "x", Type: "bad"}))),
			wantErr: `field "o"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Check()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSchema_FieldLookup(t *testing.T) {
	s := New(String("a", "first"), Boolean("b", "second"))

	f, ok := s.Field("b")
	require.True(t, ok)
	assert.Equal(t, TypeBoolean, f.Type)

	_, ok = s.Field("c")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, s.Names())
}

func TestField_BuildersCopy(t *testing.T) {
	base := String("a", "")
	withDefault := base.WithDefault("x")

	assert.Nil(t, base.Default)
	assert.Equal(t, "x", withDefault.Default)
	assert.True(t, base.AsOptional().Optional)
	assert.False(t, base.Optional)
}

func TestValues_Accessors(t *testing.T) {
	v := Values{
		"s":   "str",
		"i":   int64(4),
		"f":   2.5,
		"b":   true,
		"arr": []any{"x", "y"},
		"obj": map[string]any{"k": "v"},
	}

	s, ok := v.String("s")
	assert.True(t, ok)
	assert.Equal(t, "str", s)
	assert.Equal(t, "fallback", v.StringOr("missing", "fallback"))

	i, ok := v.Int("i")
	assert.True(t, ok)
	assert.Equal(t, int64(4), i)

	f, ok := v.Float("i")
	assert.True(t, ok)
	assert.Equal(t, 4.0, f)

	b, ok := v.Bool("b")
	assert.True(t, ok)
	assert.True(t, b)

	strs, ok := v.Strings("arr")
	assert.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, strs)

	obj, ok := v.Object("obj")
	assert.True(t, ok)
	assert.Equal(t, "v", obj.StringOr("k", ""))

	clone := v.Clone()
	clone["arr"].([]any)[0] = "changed"
	assert.Equal(t, "x", v["arr"].([]any)[0])
}
