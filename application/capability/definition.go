// Package capability is a kit for authoring capabilities. A Definition
// implements ports.Capability from registered handler functions.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	appschema "github.com/reglet-dev/capkit/application/schema"
	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/domain/errors"
	"github.com/reglet-dev/capkit/domain/ports"
	"github.com/reglet-dev/capkit/domain/schema"
	"github.com/reglet-dev/capkit/runctx"
)

// HandlerFunc implements one function. params already satisfy the function's
// parameter schema.
type HandlerFunc func(rc *runctx.RunContext, params schema.Values) (*entities.StepResult, error)

// Definition holds a capability's identity and registered functions.
// It is safe for concurrent use.
type Definition struct {
	index       map[string]*function
	onClose     func(ctx context.Context) error
	id          entities.CapabilityID
	description string
	functions   []*function
	mu          sync.RWMutex
}

type function struct {
	handler HandlerFunc
	sig     entities.FunctionSignature
}

type handleConfig struct {
	result     json.RawMessage
	resultType any
}

// HandleOption configures a registered function.
type HandleOption func(*handleConfig)

// WithResult declares a JSON Schema output contract for the function.
func WithResult(contract json.RawMessage) HandleOption {
	return func(c *handleConfig) { c.result = contract }
}

// WithResultType declares the output contract by reflecting a Go value.
func WithResultType(v any) HandleOption {
	return func(c *handleConfig) { c.resultType = v }
}

// Define creates a new capability definition. It panics if id is malformed;
// call it once at package level.
func Define(id, description string) *Definition {
	return &Definition{
		id:          entities.MustParseCapabilityID(id),
		description: description,
		index:       make(map[string]*function),
	}
}

// Handle registers fn under name. A nil params schema accepts no parameters.
func (d *Definition) Handle(name, description string, params *schema.Schema, fn HandlerFunc, opts ...HandleOption) error {
	if name == "" {
		return fmt.Errorf("capability %s: function name is empty", d.id)
	}
	if fn == nil {
		return fmt.Errorf("capability %s: function %q has no handler", d.id, name)
	}
	if params == nil {
		params = schema.Empty()
	}
	if err := params.Check(); err != nil {
		return fmt.Errorf("capability %s: function %q: %w", d.id, name, err)
	}

	cfg := &handleConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.resultType != nil {
		contract, err := appschema.GenerateSchema(cfg.resultType)
		if err != nil {
			return fmt.Errorf("capability %s: function %q: %w", d.id, name, err)
		}
		cfg.result = contract
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.index[name]; exists {
		return fmt.Errorf("capability %s: function %q already registered", d.id, name)
	}
	f := &function{
		handler: fn,
		sig: entities.FunctionSignature{
			Name:        name,
			Description: description,
			Parameters:  params,
			Result:      cfg.result,
		},
	}
	d.index[name] = f
	d.functions = append(d.functions, f)
	return nil
}

// MustHandle is like Handle but panics on error.
func (d *Definition) MustHandle(name, description string, params *schema.Schema, fn HandlerFunc, opts ...HandleOption) *Definition {
	if err := d.Handle(name, description, params, fn, opts...); err != nil {
		panic(err)
	}
	return d
}

// OnClose sets a hook run when the owning registry shuts down.
func (d *Definition) OnClose(fn func(ctx context.Context) error) *Definition {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClose = fn
	return d
}

// Identifier implements ports.Capability.
func (d *Definition) Identifier() entities.CapabilityID {
	return d.id
}

// Description returns the human-readable description.
func (d *Definition) Description() string {
	return d.description
}

// Functions implements ports.Capability. Signatures are returned in
// registration order.
func (d *Definition) Functions() []entities.FunctionSignature {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sigs := make([]entities.FunctionSignature, 0, len(d.functions))
	for _, f := range d.functions {
		sigs = append(sigs, f.sig)
	}
	return sigs
}

// ExecuteFunction implements ports.Capability.
func (d *Definition) ExecuteFunction(rc *runctx.RunContext, name string, params schema.Values) (*entities.StepResult, error) {
	d.mu.RLock()
	f, ok := d.index[name]
	d.mu.RUnlock()
	if !ok {
		return nil, &errors.UnknownFunctionError{CapabilityID: d.id, Function: name}
	}

	if err := rc.Err(); err != nil {
		return nil, &errors.CancelledError{Err: err, CapabilityID: d.id, Function: name}
	}
	return f.handler(rc, params)
}

// Close implements ports.Closer.
func (d *Definition) Close(ctx context.Context) error {
	d.mu.RLock()
	fn := d.onClose
	d.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// Describe implements ports.Describer.
func (d *Definition) Describe() (entities.CapabilityDefinition, error) {
	return Describe(d, entities.RuntimeNative, "")
}

// Factory returns a factory that always yields d.
func (d *Definition) Factory() ports.Factory {
	return func(context.Context, ports.Services) (ports.Capability, error) {
		return d, nil
	}
}

// Describe builds the advertisement of any capability, rendering parameter
// schemas as JSON Schema documents.
func Describe(c ports.Capability, runtime, entryPoint string) (entities.CapabilityDefinition, error) {
	def := entities.CapabilityDefinition{
		ID:         c.Identifier(),
		Runtime:    runtime,
		EntryPoint: entryPoint,
	}
	if described, ok := c.(interface{ Description() string }); ok {
		def.Description = described.Description()
	}
	for _, sig := range c.Functions() {
		input, err := appschema.Generate(sig.Parameters)
		if err != nil {
			return def, fmt.Errorf("capability %s: function %q: %w", c.Identifier(), sig.Name, err)
		}
		def.Functions = append(def.Functions, entities.FunctionDefinition{
			Name:         sig.Name,
			Description:  sig.Description,
			InputSchema:  input,
			OutputSchema: sig.Result,
		})
	}
	return def, nil
}
