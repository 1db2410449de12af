//go:build !wasip1

package schema

import (
	"encoding/json"
	"testing"

	model "github.com/reglet-dev/capkit/domain/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type address struct {
	City string `json:"city"`
	Zip  string `json:"zip,omitempty"`
}

type greetParams struct {
	Name    string   `json:"name" jsonschema:"default=World,description=Who to greet"`
	Times   int      `json:"times,omitempty" validate:"omitempty,min=1,max=5"`
	Mode    string   `json:"mode" jsonschema:"enum=plain,enum=shout"`
	Tags    []string `json:"tags,omitempty"`
	Address address  `json:"address,omitempty"`
	Ignored string   `json:"-"`
}

func TestGenerateSchema_SimpleStruct(t *testing.T) {
	type SimpleConfig struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}

	schema, err := GenerateSchema(SimpleConfig{})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(schema, &decoded))

	properties, ok := decoded["properties"].(map[string]any)
	require.True(t, ok, "properties should be a map")
	assert.Contains(t, properties, "host")
	assert.Contains(t, properties, "port")
}

func TestFromStruct(t *testing.T) {
	s, err := FromStruct(greetParams{}, WithDescription("greeting parameters"))
	require.NoError(t, err)

	assert.Equal(t, "greeting parameters", s.Description)
	assert.False(t, s.Open)
	assert.Equal(t, []string{"name", "times", "mode", "tags", "address"}, s.Names())

	name, _ := s.Field("name")
	assert.Equal(t, model.TypeString, name.Type)
	assert.Equal(t, "World", name.Default)
	assert.Equal(t, "Who to greet", name.Description)

	times, _ := s.Field("times")
	assert.Equal(t, model.TypeInteger, times.Type)
	assert.True(t, times.Optional)
	assert.Equal(t, "omitempty,min=1,max=5", times.Rules)

	mode, _ := s.Field("mode")
	assert.False(t, mode.Optional)
	assert.Equal(t, []any{"plain", "shout"}, mode.Enum)

	tags, _ := s.Field("tags")
	assert.Equal(t, model.TypeArray, tags.Type)
	require.NotNil(t, tags.Items)
	assert.Equal(t, model.TypeString, tags.Items.Type)

	addr, _ := s.Field("address")
	assert.Equal(t, model.TypeObject, addr.Type)
	require.NotNil(t, addr.Properties)
	city, ok := addr.Properties.Field("city")
	require.True(t, ok)
	assert.False(t, city.Optional)
}

func TestFromStruct_ValidatesInput(t *testing.T) {
	s := MustFromStruct(&greetParams{})

	got, err := model.Validate(s, map[string]any{"mode": "shout", "times": 2})
	require.NoError(t, err)
	assert.Equal(t, "World", got["name"])
	assert.Equal(t, int64(2), got["times"])

	_, err = model.Validate(s, map[string]any{"mode": "whisper", "times": 9})
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.Has("mode", model.IssueRuleViolation))
	assert.True(t, ve.Has("times", model.IssueRuleViolation))
}

func TestFromStruct_Open(t *testing.T) {
	s, err := FromStruct(address{}, WithOpen())
	require.NoError(t, err)
	assert.True(t, s.Open)
}

func TestFromStruct_RejectsNonStruct(t *testing.T) {
	_, err := FromStruct(42)
	require.Error(t, err)
	assert.Panics(t, func() { MustFromStruct("nope") })
}

func TestGenerate(t *testing.T) {
	s := model.New(
		model.String("name", "who to greet").WithDefault("World"),
		model.Integer("times", "").WithRules("min=1").AsOptional(),
		model.Array("tags", "", model.String("", "")),
		model.Object("meta", "", nil),
		model.Field{Name: "anything", Type: model.TypeAny, Description: "free form"},
	)

	b, err := Generate(s)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(b, &doc))

	assert.Equal(t, Draft, doc["$schema"])
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, false, doc["additionalProperties"])
	assert.ElementsMatch(t, []any{"tags", "meta", "anything"}, doc["required"])

	props := doc["properties"].(map[string]any)
	name := props["name"].(map[string]any)
	assert.Equal(t, "string", name["type"])
	assert.Equal(t, "World", name["default"])

	times := props["times"].(map[string]any)
	assert.Equal(t, "min=1", times["x-rules"])

	tags := props["tags"].(map[string]any)
	assert.Equal(t, "string", tags["items"].(map[string]any)["type"])

	anything := props["anything"].(map[string]any)
	assert.NotContains(t, anything, "type")
}

func TestGenerate_OpenSchema(t *testing.T) {
	s := model.New(model.String("a", ""))
	s.Open = true

	js := ToJSONSchema(s)
	assert.Nil(t, js.AdditionalProperties)

	js = ToJSONSchema(nil)
	assert.Equal(t, "object", js.Type)
}
