package ports

import (
	"context"

	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/domain/schema"
	"github.com/reglet-dev/capkit/runctx"
)

// Capability is the contract every pluggable unit implements.
//
// ExecuteFunction must be safe for concurrent use: the dispatcher may run many
// calls into the same instance at once.
type Capability interface {
	// Identifier returns the id the capability was registered under.
	Identifier() entities.CapabilityID

	// Functions returns the advertised functions. It must be pure and return
	// the same signatures for the lifetime of the instance.
	Functions() []entities.FunctionSignature

	// ExecuteFunction runs the named function with parameters that already
	// satisfy its advertised schema. It returns an UnknownFunction error for
	// names it does not advertise and must abort with a cancellation error
	// when rc is cancelled.
	ExecuteFunction(rc *runctx.RunContext, function string, params schema.Values) (*entities.StepResult, error)
}

// Closer is implemented by capabilities that hold resources released at registry shutdown.
type Closer interface {
	Close(ctx context.Context) error
}

// Describer is implemented by capabilities that provide their own advertisement.
type Describer interface {
	Describe() (entities.CapabilityDefinition, error)
}

// Factory constructs a capability instance with the orchestrator's shared services.
type Factory func(ctx context.Context, services Services) (Capability, error)

// Services is the bundle of shared handles injected into capabilities.
type Services = runctx.Services

// SecretService resolves secrets by provider and key.
type SecretService = runctx.SecretService

// Resolver looks up capability instances by identifier.
type Resolver interface {
	Resolve(ctx context.Context, id entities.CapabilityID) (Capability, error)
}
