package template_test

import (
	"testing"

	"github.com/reglet-dev/capkit/application/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestGoTemplateEngine_Render(t *testing.T) {
	engine := template.NewGoTemplateEngine(template.WithLookupEnv(lookup(map[string]string{"PLUGIN_DIR": "/opt/plugins"})))

	t.Run("config values", func(t *testing.T) {
		raw := []byte(`id: "{{.config.id}}"`)
		out, err := engine.Render(raw, map[string]any{"id": "community:hello"})
		require.NoError(t, err)
		assert.Equal(t, `id: "community:hello"`, string(out))
	})

	t.Run("env function", func(t *testing.T) {
		out, err := engine.Render([]byte(`path: {{env "PLUGIN_DIR"}}/hello.wasm`), nil)
		require.NoError(t, err)
		assert.Equal(t, `path: /opt/plugins/hello.wasm`, string(out))
	})

	t.Run("default function", func(t *testing.T) {
		out, err := engine.Render([]byte(`runtime: {{default "native" .config.runtime}}`), map[string]any{"runtime": ""})
		require.NoError(t, err)
		assert.Equal(t, `runtime: native`, string(out))
	})

	t.Run("missing key fails", func(t *testing.T) {
		_, err := engine.Render([]byte(`id: "{{.config.missing}}"`), map[string]any{"id": "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "map has no entry for key")
	})

	t.Run("missing env fails", func(t *testing.T) {
		_, err := engine.Render([]byte(`{{env "NOPE"}}`), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NOPE is not set")
	})

	t.Run("sprig functions", func(t *testing.T) {
		out, err := engine.Render([]byte(`id: {{.config.ns | lower | trim}}:{{list "a" "b" | join "-"}}`), map[string]any{"ns": " ACME "})
		require.NoError(t, err)
		assert.Equal(t, "id: acme:a-b", string(out))
	})

	t.Run("invalid syntax", func(t *testing.T) {
		_, err := engine.Render([]byte(`id: "{{.config.id"`), nil)
		require.Error(t, err)
	})
}

func TestGoTemplateEngine_Lenient(t *testing.T) {
	engine := template.NewGoTemplateEngine(
		template.WithStrict(false),
		template.WithLookupEnv(lookup(nil)),
	)

	out, err := engine.Render([]byte(`a={{env "NOPE"}}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "a=", string(out))
}
