package host

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/reglet-dev/capkit/application/dispatch"
	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/domain/errors"
	"github.com/reglet-dev/capkit/host/registry"
	"github.com/reglet-dev/capkit/hostfuncs"
	"github.com/reglet-dev/capkit/runctx"
	"github.com/reglet-dev/capkit/wireformat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	e, err := NewExecutor(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func writeTestModule(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hello.wasm")
	require.NoError(t, os.WriteFile(path, testModule(), 0o600))
	return path
}

func TestNewExecutor(t *testing.T) {
	e := newTestExecutor(t)
	assert.ElementsMatch(t, []string{hostfuncs.FuncSecretGet, hostfuncs.FuncLogMessage}, e.HostFunctions())
}

func TestExecutor_LoadPluginRejectsGarbage(t *testing.T) {
	e := newTestExecutor(t)
	_, err := e.LoadPlugin(context.Background(), []byte("not wasm"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile module")
}

func TestPlugin_DescribeAndExecute(t *testing.T) {
	ctx := context.Background()
	e := newTestExecutor(t)
	p, err := e.LoadPlugin(ctx, testModule())
	require.NoError(t, err)
	defer p.Close(ctx)

	desc, err := p.Describe(ctx)
	require.NoError(t, err)
	assert.Equal(t, "community:wasm-hello", desc.ID)
	require.Len(t, desc.Functions, 1)
	assert.Equal(t, "greet", desc.Functions[0].Name)

	resp, err := p.Execute(ctx, wireformat.ExecuteRequestWire{Function: "greet", Parameters: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", resp.Data)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "static", resp.Metadata["guest"])
}

func TestPlugin_CancelledCallReinstantiates(t *testing.T) {
	e := newTestExecutor(t)
	p, err := e.LoadPlugin(context.Background(), testModule())
	require.NoError(t, err)
	defer p.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.call(ctx, "spin", nil)
	require.Error(t, err)

	desc, err := p.Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "static greeter", desc.Description)
}

func TestWASMCapability_Dispatch(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	e := newTestExecutor(t, WithLogger(logger))
	reg := registry.New(registry.WithLogger(logger))
	defer reg.Shutdown(context.Background())

	id := entities.CapabilityID("community:wasm-hello")
	require.NoError(t, reg.Register(id, WASMFactory(e, id, writeTestModule(t))))

	d := dispatch.New(reg)
	rc := runctx.New(context.Background(), runctx.WithServices(runctx.NewServices(nil, logger)))

	res := d.Invoke(rc, dispatch.Call{CapabilityID: id, Function: "greet"})
	require.True(t, res.IsSuccess(), "error: %v", res.Error)
	assert.Equal(t, "Hello, World!", res.Data)
	assert.Equal(t, "static", res.Metadata["guest"])
	assert.Equal(t, "greet", res.Metadata["function"])

	assert.Contains(t, buf.String(), `"msg":"guest says hi"`)
	assert.Contains(t, buf.String(), `"capability_id":"community:wasm-hello"`)
	assert.Contains(t, buf.String(), `"level":"WARN"`)

	res = d.Invoke(rc, dispatch.Call{CapabilityID: id, Function: "wave"})
	assert.Equal(t, string(errors.KindUnknownFunction), res.Kind())

	res = d.Invoke(rc, dispatch.Call{CapabilityID: id, Function: "greet", Parameters: map[string]any{"name": 7}})
	assert.Equal(t, string(errors.KindValidationError), res.Kind())

	def, err := d.Describe(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entities.RuntimeWASM, def.Runtime)
}

func TestWASMCapability_IdentifierMismatch(t *testing.T) {
	ctx := context.Background()
	e := newTestExecutor(t)
	p, err := e.LoadPlugin(ctx, testModule())
	require.NoError(t, err)
	defer p.Close(ctx)

	_, err = NewWASMCapability(ctx, p, "community:other", "hello.wasm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `declares capability "community:wasm-hello"`)
}

func TestWASMFactory_MissingFile(t *testing.T) {
	e := newTestExecutor(t)
	f := WASMFactory(e, "community:wasm-hello", filepath.Join(t.TempDir(), "missing.wasm"))
	_, err := f(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read module")
}

func TestLoader_WasmEntry(t *testing.T) {
	e := newTestExecutor(t)
	reg := registry.New()
	defer reg.Shutdown(context.Background())

	raw := []byte(`
capabilities:
  - id: community:wasm-hello
    entry_point: hello.wasm
    runtime: wasm
    config:
      path: "{{.config.path}}"
`)
	ids, err := NewLoader(WithExecutor(e)).Load(context.Background(), reg, raw, map[string]any{"path": writeTestModule(t)})
	require.NoError(t, err)
	require.Equal(t, []entities.CapabilityID{"community:wasm-hello"}, ids)

	c, err := reg.Resolve(context.Background(), "community:wasm-hello")
	require.NoError(t, err)
	assert.Equal(t, "static greeter", c.(*WASMCapability).Description())
}
