package hostfuncs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/reglet-dev/capkit/internal/testutil"
	"github.com/reglet-dev/capkit/runctx"
	"github.com/reglet-dev/capkit/wireformat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invokeSecret(t *testing.T, reg *HandlerRegistry, ctx context.Context, req wireformat.SecretRequestWire) wireformat.SecretResponseWire {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	out, err := reg.Invoke(ctx, FuncSecretGet, payload)
	require.NoError(t, err)

	var resp wireformat.SecretResponseWire
	require.NoError(t, json.Unmarshal(out, &resp))
	return resp
}

func TestSecretsBundle(t *testing.T) {
	fallback := testutil.MapSecrets{"db": {"password": "fallback"}}
	reg, err := NewRegistry(WithBundle(SecretsBundle(fallback)))
	require.NoError(t, err)

	t.Run("fallback service", func(t *testing.T) {
		resp := invokeSecret(t, reg, context.Background(), wireformat.SecretRequestWire{Provider: "db", Key: "password"})
		assert.Nil(t, resp.Error)
		assert.Equal(t, "fallback", resp.Value)
	})

	t.Run("run context service wins", func(t *testing.T) {
		services := runctx.NewServices(testutil.MapSecrets{"db": {"password": "scoped", "user": "ada"}}, nil)
		rc := runctx.New(context.Background(), runctx.WithServices(services))

		resp := invokeSecret(t, reg, rc, wireformat.SecretRequestWire{Provider: "db", Key: "password"})
		assert.Equal(t, "scoped", resp.Value)

		resp = invokeSecret(t, reg, rc, wireformat.SecretRequestWire{Provider: "db"})
		assert.Equal(t, map[string]string{"password": "scoped", "user": "ada"}, resp.Values)
	})

	t.Run("missing key", func(t *testing.T) {
		resp := invokeSecret(t, reg, context.Background(), wireformat.SecretRequestWire{Provider: "db", Key: "token"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, KindNotFound, resp.Error.Kind)
	})

	t.Run("provider required", func(t *testing.T) {
		resp := invokeSecret(t, reg, context.Background(), wireformat.SecretRequestWire{Key: "token"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, KindInvalidRequest, resp.Error.Kind)
	})
}

func TestSecretsBundle_NoService(t *testing.T) {
	reg, err := NewRegistry(WithBundle(SecretsBundle(nil)))
	require.NoError(t, err)

	resp := invokeSecret(t, reg, context.Background(), wireformat.SecretRequestWire{Provider: "db", Key: "k"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, KindNotFound, resp.Error.Kind)
}
