// Package secrets provides reference SecretService backends. A provider name
// has the form "<backend>:<path>", e.g. "env:db" or "file:billing"; a name
// without a backend prefix goes to the default backend.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/reglet-dev/capkit/domain/ports"
)

var (
	// ErrNotFound is returned when a path or key holds no secret.
	ErrNotFound = errors.New("secret not found")
	// ErrUnknownBackend is returned for a provider name naming no configured backend.
	ErrUnknownBackend = errors.New("unknown secret backend")
)

// Backend loads every secret stored under a path.
type Backend interface {
	Secrets(ctx context.Context, path string) (map[string]string, error)
}

type serviceConfig struct {
	backends       map[string]Backend
	defaultBackend string
}

// Option configures a Service.
type Option func(*serviceConfig)

// WithBackend registers b under name.
func WithBackend(name string, b Backend) Option {
	return func(c *serviceConfig) {
		c.backends[name] = b
	}
}

// WithDefaultBackend sets the backend used for unprefixed provider names.
func WithDefaultBackend(name string) Option {
	return func(c *serviceConfig) {
		c.defaultBackend = name
	}
}

// Service routes secret lookups to backends. It implements ports.SecretService.
type Service struct {
	config serviceConfig
}

var _ ports.SecretService = (*Service)(nil)

// NewService creates a Service. Without options it only serves the "env" backend.
func NewService(opts ...Option) *Service {
	cfg := serviceConfig{
		backends:       map[string]Backend{},
		defaultBackend: BackendEnv,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.backends) == 0 {
		cfg.backends[BackendEnv] = NewEnvBackend()
	}
	return &Service{config: cfg}
}

// Get returns one secret value.
func (s *Service) Get(ctx context.Context, provider, key string) (string, error) {
	all, err := s.GetAll(ctx, provider)
	if err != nil {
		return "", err
	}
	v, ok := all[key]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrNotFound, provider, key)
	}
	return v, nil
}

// GetAll returns every secret under provider.
func (s *Service) GetAll(ctx context.Context, provider string) (map[string]string, error) {
	backend, path, err := s.route(provider)
	if err != nil {
		return nil, err
	}
	all, err := backend.Secrets(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", provider, err)
	}
	return maps.Clone(all), nil
}

func (s *Service) route(provider string) (Backend, string, error) {
	name, path, ok := strings.Cut(provider, ":")
	if !ok {
		name, path = s.config.defaultBackend, provider
	}
	if path == "" {
		return nil, "", fmt.Errorf("provider %q: empty path", provider)
	}
	b, ok := s.config.backends[name]
	if !ok {
		return nil, "", fmt.Errorf("%w %q", ErrUnknownBackend, name)
	}
	return b, path, nil
}
