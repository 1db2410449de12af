package host

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	entryconfig "github.com/reglet-dev/capkit/application/config"
	apptemplate "github.com/reglet-dev/capkit/application/template"
	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/domain/errors"
	"github.com/reglet-dev/capkit/domain/ports"
	"github.com/reglet-dev/capkit/infrastructure/parser"
)

// Provider builds the factory for one native manifest entry.
type Provider func(entry entities.ManifestEntry) (ports.Factory, error)

// Providers maps manifest entry points to native providers.
type Providers map[string]Provider

// Static returns a Provider that ignores entry config and always yields f.
func Static(f ports.Factory) Provider {
	return func(entities.ManifestEntry) (ports.Factory, error) {
		return f, nil
	}
}

// Registrar receives the factories produced by Load.
type Registrar interface {
	Register(id entities.CapabilityID, factory ports.Factory) error
}

// loaderConfig holds configuration for the Loader.
type loaderConfig struct {
	templateEngine  ports.TemplateEngine
	parser          ports.ManifestParser
	providers       Providers
	executor        *Executor
	logger          *slog.Logger
	strictTemplates bool // Fail on missing template keys
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{
		parser:          parser.NewYamlManifestParser(),
		providers:       Providers{},
		logger:          slog.Default(),
		strictTemplates: true, // Secure default: fail on missing keys
	}
}

// Loader turns discovery manifests into registered capability factories.
type Loader struct {
	validate *validator.Validate
	config   loaderConfig
}

// LoaderOption configures the Loader.
type LoaderOption func(*loaderConfig)

// WithParser sets a custom manifest parser.
func WithParser(p ports.ManifestParser) LoaderOption {
	return func(c *loaderConfig) {
		c.parser = p
	}
}

// WithTemplateEngine sets a template engine.
func WithTemplateEngine(t ports.TemplateEngine) LoaderOption {
	return func(c *loaderConfig) {
		c.templateEngine = t
	}
}

// WithStrictTemplates enables/disables strict template mode.
// When enabled (default), template rendering fails if a referenced key is missing.
func WithStrictTemplates(enabled bool) LoaderOption {
	return func(c *loaderConfig) {
		c.strictTemplates = enabled
	}
}

// WithProvider maps a native entry point to a provider.
func WithProvider(entryPoint string, p Provider) LoaderOption {
	return func(c *loaderConfig) {
		c.providers[entryPoint] = p
	}
}

// WithProviders adds every provider in ps.
func WithProviders(ps Providers) LoaderOption {
	return func(c *loaderConfig) {
		for k, p := range ps {
			c.providers[k] = p
		}
	}
}

// WithExecutor enables wasm entries, loading modules through e.
func WithExecutor(e *Executor) LoaderOption {
	return func(c *loaderConfig) {
		c.executor = e
	}
}

// WithLoaderLogger sets the loader's logger.
func WithLoaderLogger(l *slog.Logger) LoaderOption {
	return func(c *loaderConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewLoader creates a new Loader with defaults.
func NewLoader(opts ...LoaderOption) *Loader {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.templateEngine == nil {
		cfg.templateEngine = apptemplate.NewGoTemplateEngine(
			apptemplate.WithStrict(cfg.strictTemplates),
		)
	}

	return &Loader{
		config:   cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// LoadManifest renders, parses and validates a discovery manifest.
func (l *Loader) LoadManifest(raw []byte, config map[string]any) (*entities.Manifest, error) {
	data, err := l.config.templateEngine.Render(raw, config)
	if err != nil {
		return nil, fmt.Errorf("failed to render manifest: %w", err)
	}

	manifest, err := l.config.parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if err := l.check(manifest); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (l *Loader) check(m *entities.Manifest) error {
	var problems []error

	if err := l.validate.Struct(m); err != nil {
		var ves validator.ValidationErrors
		if !stdErrors.As(err, &ves) {
			return fmt.Errorf("validation error: %w", err)
		}
		for _, fe := range ves {
			problems = append(problems, fmt.Errorf("%s: failed %q", fe.Namespace(), fe.Tag()))
		}
	}

	seen := make(map[string]int, len(m.Capabilities))
	for i, entry := range m.Capabilities {
		if entry.ID == "" {
			continue
		}
		if _, err := entities.ParseCapabilityID(entry.ID); err != nil {
			problems = append(problems, fmt.Errorf("capabilities[%d]: %w", i, err))
			continue
		}
		if prev, dup := seen[entry.ID]; dup {
			problems = append(problems, fmt.Errorf("capabilities[%d]: %w (first at capabilities[%d])",
				i, &errors.DuplicateIdentifierError{ID: entities.CapabilityID(entry.ID)}, prev))
			continue
		}
		seen[entry.ID] = i
	}

	if len(problems) > 0 {
		return fmt.Errorf("manifest validation failed: %w", stdErrors.Join(problems...))
	}
	return nil
}

// Load registers every capability declared by the manifest with reg and
// returns their identifiers in manifest order. No capability is constructed.
// Registration stops at the first failing entry.
func (l *Loader) Load(ctx context.Context, reg Registrar, raw []byte, config map[string]any) ([]entities.CapabilityID, error) {
	manifest, err := l.LoadManifest(raw, config)
	if err != nil {
		return nil, err
	}

	ids := make([]entities.CapabilityID, 0, len(manifest.Capabilities))
	for _, entry := range manifest.Capabilities {
		if err := ctx.Err(); err != nil {
			return ids, err
		}

		id := entities.CapabilityID(entry.ID)
		factory, err := l.factoryFor(entry)
		if err != nil {
			return ids, fmt.Errorf("capability %q: %w", id, err)
		}
		if err := reg.Register(id, factory); err != nil {
			return ids, err
		}

		l.config.logger.Debug("capability registered from manifest",
			slog.String("capability_id", entry.ID),
			slog.String("runtime", entry.RuntimeOrDefault()),
			slog.String("entry_point", entry.EntryPoint))
		ids = append(ids, id)
	}
	return ids, nil
}

func (l *Loader) factoryFor(entry entities.ManifestEntry) (ports.Factory, error) {
	switch entry.RuntimeOrDefault() {
	case entities.RuntimeWASM:
		if l.config.executor == nil {
			return nil, fmt.Errorf("wasm runtime is not enabled")
		}
		path := entryconfig.GetStringDefault(entry.Config, "path", entry.EntryPoint)
		return WASMFactory(l.config.executor, entities.CapabilityID(entry.ID), path), nil
	default:
		p, ok := l.config.providers[entry.EntryPoint]
		if !ok {
			return nil, fmt.Errorf("no provider for entry point %q", entry.EntryPoint)
		}
		f, err := p(entry)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, fmt.Errorf("provider for %q returned no factory", entry.EntryPoint)
		}
		return f, nil
	}
}
