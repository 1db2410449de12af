// Package template renders discovery manifests as Go text templates before
// they are parsed. Configuration values are available as {{.config.key}}.
package template

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/reglet-dev/capkit/domain/ports"
)

// templateConfig holds configuration for the GoTemplateEngine.
type templateConfig struct {
	lookupEnv func(string) (string, bool)
	strict    bool // Fail on missing keys
}

func defaultTemplateConfig() templateConfig {
	return templateConfig{
		strict:    true,
		lookupEnv: os.LookupEnv,
	}
}

// TemplateOption configures a GoTemplateEngine.
type TemplateOption func(*templateConfig)

// WithStrict enables/disables strict mode for missing keys.
// When enabled (default), rendering fails if a referenced key is missing.
func WithStrict(enabled bool) TemplateOption {
	return func(c *templateConfig) {
		c.strict = enabled
	}
}

// WithLookupEnv replaces the environment lookup used by the env function.
func WithLookupEnv(fn func(string) (string, bool)) TemplateOption {
	return func(c *templateConfig) {
		c.lookupEnv = fn
	}
}

// GoTemplateEngine implements ports.TemplateEngine using text/template.
//
// Besides {{.config.key}}, templates may use the sprig function library, e.g.
// {{.config.namespace | lower}}. The env function reads the configured lookup
// and fails in strict mode when the variable is unset; default treats nil and
// "" as missing.
type GoTemplateEngine struct {
	config templateConfig
}

// NewGoTemplateEngine creates a new GoTemplateEngine.
func NewGoTemplateEngine(opts ...TemplateOption) ports.TemplateEngine {
	cfg := defaultTemplateConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &GoTemplateEngine{config: cfg}
}

// Render processes the raw manifest bytes with the provided config.
func (e *GoTemplateEngine) Render(raw []byte, config map[string]any) ([]byte, error) {
	tmpl := template.New("manifest").Funcs(e.funcs())
	if e.config.strict {
		tmpl = tmpl.Option("missingkey=error")
	}

	tmpl, err := tmpl.Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest template: %w", err)
	}

	if config == nil {
		config = map[string]any{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any{"config": config}); err != nil {
		return nil, fmt.Errorf("failed to execute manifest template: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *GoTemplateEngine) funcs() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	overrides := template.FuncMap{
		"env": func(name string) (string, error) {
			v, ok := e.config.lookupEnv(name)
			if !ok && e.config.strict {
				return "", fmt.Errorf("environment variable %s is not set", name)
			}
			return v, nil
		},
		"default": func(def, v any) any {
			if v == nil || v == "" {
				return def
			}
			return v
		},
	}
	for name, fn := range overrides {
		funcs[name] = fn
	}
	return funcs
}
