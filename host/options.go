package host

import (
	"log/slog"

	"github.com/reglet-dev/capkit/domain/ports"
	"github.com/reglet-dev/capkit/hostfuncs"
)

type executorConfig struct {
	registry *hostfuncs.HandlerRegistry
	secrets  ports.SecretService
	logger   *slog.Logger
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		logger: slog.Default(),
	}
}

// Option configures an Executor.
type Option func(*executorConfig)

// WithHostFunctions replaces the default host function registry.
func WithHostFunctions(registry *hostfuncs.HandlerRegistry) Option {
	return func(c *executorConfig) {
		c.registry = registry
	}
}

// WithSecrets sets the secret service used by secret_get when a call carries
// no run context.
func WithSecrets(s ports.SecretService) Option {
	return func(c *executorConfig) {
		c.secrets = s
	}
}

// WithLogger sets the logger for guest log messages and host events.
func WithLogger(l *slog.Logger) Option {
	return func(c *executorConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
