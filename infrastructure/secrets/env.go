package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Backend names.
const (
	BackendEnv  = "env"
	BackendFile = "file"
)

// DefaultEnvPrefix prefixes secret variables: CAPKIT_SECRET_<PATH>_<KEY>.
const DefaultEnvPrefix = "CAPKIT_SECRET_"

// EnvBackend reads secrets from environment variables. Path "db" maps to
// variables named <prefix>DB_<KEY>; keys are returned lower-cased.
type EnvBackend struct {
	environ func() []string
	prefix  string
}

// EnvOption configures an EnvBackend.
type EnvOption func(*EnvBackend)

// WithEnvPrefix overrides DefaultEnvPrefix.
func WithEnvPrefix(prefix string) EnvOption {
	return func(b *EnvBackend) { b.prefix = prefix }
}

// WithEnviron replaces os.Environ as the variable source.
func WithEnviron(environ func() []string) EnvOption {
	return func(b *EnvBackend) { b.environ = environ }
}

// NewEnvBackend creates an EnvBackend.
func NewEnvBackend(opts ...EnvOption) *EnvBackend {
	b := &EnvBackend{environ: os.Environ, prefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Secrets implements Backend.
func (b *EnvBackend) Secrets(_ context.Context, path string) (map[string]string, error) {
	prefix := b.prefix + envName(path) + "_"
	out := map[string]string{}
	for _, kv := range b.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) || len(name) == len(prefix) {
			continue
		}
		out[strings.ToLower(name[len(prefix):])] = value
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no variables with prefix %s", ErrNotFound, prefix)
	}
	return out, nil
}

func envName(path string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, path)
}
