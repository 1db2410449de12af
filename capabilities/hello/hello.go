// Package hello is the reference capability: community:hello greets people.
package hello

import (
	"fmt"
	"strings"

	"github.com/reglet-dev/capkit/application/capability"
	entryconfig "github.com/reglet-dev/capkit/application/config"
	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/domain/ports"
	"github.com/reglet-dev/capkit/domain/schema"
	"github.com/reglet-dev/capkit/runctx"
)

// ID is the default identifier.
const ID = "community:hello"

// EntryPoint names the native provider in discovery manifests.
const EntryPoint = "hello"

type helloConfig struct {
	id       string
	greeting string
}

func defaultHelloConfig() helloConfig {
	return helloConfig{id: ID, greeting: "Hello"}
}

// Option configures the capability.
type Option func(*helloConfig)

// WithID registers the capability under a different identifier.
func WithID(id string) Option {
	return func(c *helloConfig) { c.id = id }
}

// WithGreeting replaces "Hello".
func WithGreeting(g string) Option {
	return func(c *helloConfig) {
		if g != "" {
			c.greeting = g
		}
	}
}

type shoutInput struct {
	Name  string `json:"name" jsonschema:"default=World,description=Who to greet"`
	Times int    `json:"times,omitempty" jsonschema:"description=Exclamation marks" validate:"omitempty,min=1,max=5"`
}

type greeter struct {
	capability.Service
	Shout capability.Fn `desc:"Greet someone loudly" method:"DoShout"`

	greeting string
}

// DoShout implements the shout function.
func (g *greeter) DoShout(rc *runctx.RunContext, in *shoutInput) (any, error) {
	times := in.Times
	if times == 0 {
		times = 1
	}
	rc.Logger().Debug("shouting", "times", times)
	return strings.ToUpper(fmt.Sprintf("%s, %s", g.greeting, in.Name)) + strings.Repeat("!", times), nil
}

// New builds the capability.
func New(opts ...Option) *capability.Definition {
	cfg := defaultHelloConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	def := capability.Define(cfg.id, "Greets people").
		MustHandle("greet", "Greet someone by name",
			schema.New(schema.String("name", "Who to greet").WithDefault("World")),
			func(_ *runctx.RunContext, params schema.Values) (*entities.StepResult, error) {
				return entities.Success(fmt.Sprintf("%s, %s!", cfg.greeting, params.StringOr("name", ""))), nil
			},
			capability.WithResult([]byte(`{"type":"string"}`)),
		)
	capability.MustRegisterService(def, &greeter{greeting: cfg.greeting})
	return def
}

// Provider builds the factory for a manifest entry. The entry's config may
// set "greeting".
func Provider(entry entities.ManifestEntry) (ports.Factory, error) {
	def := New(
		WithID(entry.ID),
		WithGreeting(entryconfig.GetStringDefault(entry.Config, "greeting", "")),
	)
	return def.Factory(), nil
}
