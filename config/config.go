// Package config loads process configuration for capkit binaries from
// CAPKIT_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	caplog "github.com/reglet-dev/capkit/log"
)

// Config is the process configuration.
type Config struct {
	LogLevel       string        `env:"CAPKIT_LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"CAPKIT_LOG_FORMAT" envDefault:"text" validate:"oneof=json text"`
	ManifestPath   string        `env:"CAPKIT_MANIFEST"`
	CatalogPath    string        `env:"CAPKIT_CATALOG_PATH" envDefault:"capkit.db"`
	SecretsFile    string        `env:"CAPKIT_SECRETS_FILE"`
	OTelEndpoint   string        `env:"CAPKIT_OTEL_ENDPOINT" envDefault:"http://localhost:4318"`
	DefaultTimeout time.Duration `env:"CAPKIT_DEFAULT_TIMEOUT" validate:"gte=0"`
	MaxConcurrency int           `env:"CAPKIT_MAX_CONCURRENCY" envDefault:"8" validate:"gte=1"`
	OTelEnabled    bool          `env:"CAPKIT_OTEL_ENABLED"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the configuration from vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if _, err := caplog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("CAPKIT_LOG_LEVEL: %w", err)
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Logger builds the process logger writing to w.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := caplog.ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return caplog.New(w, caplog.WithLevel(level), caplog.WithFormat(c.LogFormat))
}
