package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "capkit.db", cfg.CatalogPath)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Zero(t, cfg.DefaultTimeout)
	assert.False(t, cfg.OTelEnabled)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"CAPKIT_LOG_LEVEL":       "debug",
		"CAPKIT_LOG_FORMAT":      "json",
		"CAPKIT_DEFAULT_TIMEOUT": "2s",
		"CAPKIT_MAX_CONCURRENCY": "3",
		"CAPKIT_MANIFEST":        "capabilities.yaml",
		"CAPKIT_OTEL_ENABLED":    "true",
	})
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, 3, cfg.MaxConcurrency)
	assert.Equal(t, "capabilities.yaml", cfg.ManifestPath)
	assert.True(t, cfg.OTelEnabled)

	var buf bytes.Buffer
	cfg.Logger(&buf).Debug("visible")
	assert.Contains(t, buf.String(), `"msg":"visible"`)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"level":       {"CAPKIT_LOG_LEVEL": "loud"},
		"format":      {"CAPKIT_LOG_FORMAT": "xml"},
		"concurrency": {"CAPKIT_MAX_CONCURRENCY": "0"},
		"timeout":     {"CAPKIT_DEFAULT_TIMEOUT": "soon"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(vars)
			assert.Error(t, err)
		})
	}
}
