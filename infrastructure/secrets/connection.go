package secrets

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/reglet-dev/capkit/domain/ports"
	"github.com/reglet-dev/capkit/runctx"
)

// ConnectionSecrets gives a capability access to the secrets of one
// connection. The secrets are fetched on first use; a failed fetch is retried
// on the next call.
type ConnectionSecrets struct {
	service  ports.SecretService
	values   map[string]string
	provider string
	mu       sync.Mutex
}

// NewConnectionSecrets binds provider to the secret service of rc.
func NewConnectionSecrets(rc *runctx.RunContext, provider string) *ConnectionSecrets {
	return &ConnectionSecrets{service: rc.Secrets(), provider: provider}
}

// ForService binds provider to svc directly.
func ForService(svc ports.SecretService, provider string) *ConnectionSecrets {
	return &ConnectionSecrets{service: svc, provider: provider}
}

// Provider returns the bound provider name.
func (c *ConnectionSecrets) Provider() string {
	return c.provider
}

func (c *ConnectionSecrets) load(ctx context.Context) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values != nil {
		return c.values, nil
	}
	values, err := c.service.GetAll(ctx, c.provider)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = map[string]string{}
	}
	c.values = values
	return values, nil
}

// Get returns the secret under key, or def when the connection has no such key.
func (c *ConnectionSecrets) Get(ctx context.Context, key, def string) (string, error) {
	values, err := c.load(ctx)
	if err != nil {
		return "", err
	}
	if v, ok := values[key]; ok {
		return v, nil
	}
	return def, nil
}

// GetAll returns a copy of every secret of the connection.
func (c *ConnectionSecrets) GetAll(ctx context.Context) (map[string]string, error) {
	values, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return maps.Clone(values), nil
}

// ParseAs decodes the connection's secrets into target, a pointer to a struct
// whose fields carry `env:"key"` tags. Tag options such as ",required" and
// `envDefault` apply as usual.
func (c *ConnectionSecrets) ParseAs(ctx context.Context, target any) error {
	values, err := c.load(ctx)
	if err != nil {
		return err
	}
	if err := env.ParseWithOptions(target, env.Options{Environment: values}); err != nil {
		return fmt.Errorf("parse secrets of %s: %w", c.provider, err)
	}
	return nil
}

// APIKey is a common shape for API key credentials.
type APIKey struct {
	Key string `env:"api_key,required"`
}

// OAuth2Client is a common shape for OAuth2 client credentials.
type OAuth2Client struct {
	ClientID     string `env:"client_id,required"`
	ClientSecret string `env:"client_secret,required"`
}
