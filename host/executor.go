package host

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/capkit/hostfuncs"
	capwazero "github.com/reglet-dev/capkit/infrastructure/wazero"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Executor owns the wazero runtime shared by every WASM capability.
type Executor struct {
	runtime  wazero.Runtime
	registry *hostfuncs.HandlerRegistry
	logger   *slog.Logger
}

// NewExecutor creates a runtime with WASI and the capkit host module.
// Guest calls abort when their context is cancelled.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.registry == nil {
		reg, err := hostfuncs.NewRegistry(
			hostfuncs.WithMiddleware(
				hostfuncs.PanicRecoveryMiddleware(),
				hostfuncs.LoggingMiddleware(cfg.logger),
			),
			hostfuncs.WithBundle(hostfuncs.SecretsBundle(cfg.secrets)),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create default registry: %w", err)
		}
		cfg.registry = reg
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	e := &Executor{runtime: rt, registry: cfg.registry, logger: cfg.logger}
	err := capwazero.RegisterWithRuntime(ctx, rt, cfg.registry,
		capwazero.WithCustomHandler(capwazero.CustomHandler{
			Name:        hostfuncs.FuncLogMessage,
			Handler:     api.GoModuleFunc(e.logMessage),
			ParamTypes:  []api.ValueType{api.ValueTypeI64},
			ResultTypes: []api.ValueType{},
		}),
	)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}
	return e, nil
}

// HostFunctions returns the names of the host functions offered to guests.
func (e *Executor) HostFunctions() []string {
	return append(e.registry.Names(), hostfuncs.FuncLogMessage)
}

// Close releases the runtime and every module compiled by it.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// LoadPlugin compiles and instantiates a WASM module.
func (e *Executor) LoadPlugin(ctx context.Context, wasmBytes []byte) (*Plugin, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module: %w", err)
	}

	p := &Plugin{runtime: e.runtime, compiled: compiled}
	if err := p.instantiate(ctx); err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}
	return p, nil
}
