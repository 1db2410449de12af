package runctx

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNoSecrets is returned by the secret service of a RunContext created without one.
var ErrNoSecrets = errors.New("no secret service configured")

// SecretService resolves secrets by provider and key. Implementations are
// owned by the orchestrator and shared by every call.
type SecretService interface {
	Get(ctx context.Context, provider, key string) (string, error)
	GetAll(ctx context.Context, provider string) (map[string]string, error)
}

// Services is the bundle of shared handles injected into capabilities.
type Services interface {
	Secrets() SecretService
	Logger() *slog.Logger
}

type staticServices struct {
	secrets SecretService
	logger  *slog.Logger
}

// NewServices bundles the given handles. Nil secrets yields a service that
// always fails with ErrNoSecrets; a nil logger falls back to slog.Default().
func NewServices(secrets SecretService, logger *slog.Logger) Services {
	if secrets == nil {
		secrets = noSecrets{}
	}
	return &staticServices{secrets: secrets, logger: logger}
}

func (s *staticServices) Secrets() SecretService { return s.secrets }

func (s *staticServices) Logger() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

type noSecrets struct{}

func (noSecrets) Get(context.Context, string, string) (string, error) {
	return "", ErrNoSecrets
}

func (noSecrets) GetAll(context.Context, string) (map[string]string, error) {
	return nil, ErrNoSecrets
}
