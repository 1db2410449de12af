// Package cli implements the capkit command line.
package cli

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/reglet-dev/capkit/application/dispatch"
	"github.com/reglet-dev/capkit/capabilities/hello"
	"github.com/reglet-dev/capkit/config"
	"github.com/reglet-dev/capkit/host"
	"github.com/reglet-dev/capkit/host/registry"
	"github.com/reglet-dev/capkit/infrastructure/secrets"
	"github.com/reglet-dev/capkit/internal/otel"
	"github.com/reglet-dev/capkit/runctx"
)

const serviceName = "capkit"

// builtins are the native providers linked into the binary.
var builtins = host.Providers{
	hello.EntryPoint: hello.Provider,
}

// app holds the process-wide components for one command invocation.
type app struct {
	config     config.Config
	logger     *slog.Logger
	registry   *registry.Registry
	executor   *host.Executor
	dispatcher *dispatch.Dispatcher
	shutdown   []func(context.Context) error
}

func newApp(ctx context.Context, cfg config.Config, stderr io.Writer) (*app, error) {
	a := &app{config: cfg, logger: cfg.Logger(stderr)}

	otelShutdown, err := otel.Setup(ctx, serviceName, cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	a.shutdown = append(a.shutdown, otelShutdown)

	secretOpts := []secrets.Option{
		secrets.WithBackend(secrets.BackendEnv, secrets.NewEnvBackend()),
	}
	if cfg.SecretsFile != "" {
		secretOpts = append(secretOpts, secrets.WithBackend(secrets.BackendFile, secrets.NewFileBackend(cfg.SecretsFile)))
	}
	secretSvc := secrets.NewService(secretOpts...)

	a.registry = registry.New(
		registry.WithLogger(a.logger),
		registry.WithServices(runctx.NewServices(secretSvc, a.logger)),
	)
	a.shutdown = append(a.shutdown, a.registry.Shutdown)

	a.executor, err = host.NewExecutor(ctx, host.WithLogger(a.logger), host.WithSecrets(secretSvc))
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	a.shutdown = append(a.shutdown, a.executor.Close)

	if err := a.register(ctx); err != nil {
		_ = a.close(ctx)
		return nil, err
	}

	a.dispatcher = dispatch.New(a.registry,
		dispatch.WithLogger(a.logger),
		dispatch.WithMiddleware(dispatch.Tracing(nil), dispatch.Logging(nil)),
		dispatch.WithDefaultTimeout(cfg.DefaultTimeout),
		dispatch.WithMaxConcurrency(cfg.MaxConcurrency),
	)
	return a, nil
}

// register loads the manifest, or registers the built-in capability when
// none is configured.
func (a *app) register(ctx context.Context) error {
	if a.config.ManifestPath == "" {
		return a.registry.RegisterInstance(hello.New())
	}

	raw, err := os.ReadFile(a.config.ManifestPath)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	loader := host.NewLoader(
		host.WithProviders(builtins),
		host.WithExecutor(a.executor),
		host.WithLoaderLogger(a.logger),
	)
	ids, err := loader.Load(ctx, a.registry, raw, map[string]any{})
	if err != nil {
		return fmt.Errorf("load manifest %s: %w", a.config.ManifestPath, err)
	}
	a.logger.Debug("manifest loaded", "path", a.config.ManifestPath, "capabilities", len(ids))
	return nil
}

// close runs shutdown hooks in reverse order.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.shutdown = nil
	return stdErrors.Join(errs...)
}
