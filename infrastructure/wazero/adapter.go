package wazero

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/capkit/hostfuncs"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// DefaultModuleName is the import module guests link host functions from.
const DefaultModuleName = "capkit_host"

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// ModuleName is the host module name.
	ModuleName string

	// CustomHandlers are exported alongside the registry handlers.
	CustomHandlers []CustomHandler

	// MaxRequestSize limits requests read from guest memory. Zero uses the
	// registry's limit.
	MaxRequestSize uint32
}

// CustomHandler is a host function that does not use the packed i64
// request/response pattern.
type CustomHandler struct {
	Handler     api.GoModuleFunc
	Name        string
	ParamTypes  []api.ValueType
	ResultTypes []api.ValueType
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName sets the host module name.
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		c.ModuleName = name
	}
}

// WithMaxRequestSize sets the maximum request size read from guest memory.
func WithMaxRequestSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxRequestSize = size
	}
}

// WithCustomHandler adds a custom wazero handler.
func WithCustomHandler(h CustomHandler) AdapterOption {
	return func(c *AdapterConfig) {
		c.CustomHandlers = append(c.CustomHandlers, h)
	}
}

func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		ModuleName: DefaultModuleName,
	}
}

// RegisterWithRuntime instantiates a host module exporting every handler of
// registry. Each export reads its request from guest memory, invokes the
// handler and writes the response back through the guest's "allocate" export.
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, registry *hostfuncs.HandlerRegistry, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxRequestSize == 0 && registry.MaxRequestSize() > 0 {
		cfg.MaxRequestSize = uint32(registry.MaxRequestSize()) //nolint:gosec // G115: limit is a small positive constant
	}

	builder := runtime.NewHostModuleBuilder(cfg.ModuleName)
	for _, name := range registry.Names() {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				stack[0] = handleRegistryCall(ctx, mod, stack[0], registry, name, cfg.MaxRequestSize)
			}), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
			Export(name)
	}
	for _, ch := range cfg.CustomHandlers {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(ch.Handler, ch.ParamTypes, ch.ResultTypes).
			Export(ch.Name)
	}

	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("instantiate host module %q: %w", cfg.ModuleName, err)
	}
	return nil
}

func handleRegistryCall(ctx context.Context, mod api.Module, packed uint64, registry *hostfuncs.HandlerRegistry, name string, maxRequestSize uint32) uint64 {
	_, length := UnpackPtrLen(packed)
	if maxRequestSize > 0 && length > maxRequestSize {
		msg := fmt.Sprintf("request size %d exceeds maximum %d bytes", length, maxRequestSize)
		slog.WarnContext(ctx, "wazero: "+msg, "host_function", name)
		return writeOrZero(ctx, mod, hostfuncs.NewInvalidRequestError(msg).ToJSON())
	}

	request, err := ReadPacked(mod, packed)
	if err != nil {
		slog.ErrorContext(ctx, "wazero: read request", "host_function", name, "error", err)
		return writeOrZero(ctx, mod, hostfuncs.NewHostFaultError(err.Error()).ToJSON())
	}

	response, err := registry.Invoke(ctx, name, request)
	if err != nil {
		slog.ErrorContext(ctx, "wazero: handler invocation failed", "host_function", name, "error", err)
		return writeOrZero(ctx, mod, hostfuncs.NewHostFaultError(err.Error()).ToJSON())
	}
	return writeOrZero(ctx, mod, response)
}

func writeOrZero(ctx context.Context, mod api.Module, data []byte) uint64 {
	packed, err := WriteToGuest(ctx, mod, data)
	if err != nil {
		slog.ErrorContext(ctx, "wazero: write response", "error", err)
		return 0
	}
	return packed
}
