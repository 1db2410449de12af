package host

import (
	"context"
	"fmt"
	"os"

	"github.com/reglet-dev/capkit/application/capability"
	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/domain/errors"
	"github.com/reglet-dev/capkit/domain/ports"
	"github.com/reglet-dev/capkit/domain/schema"
	"github.com/reglet-dev/capkit/hostfuncs"
	"github.com/reglet-dev/capkit/runctx"
	"github.com/reglet-dev/capkit/wireformat"
)

// WASMCapability adapts a guest module to the capability contract.
type WASMCapability struct {
	plugin      *Plugin
	id          entities.CapabilityID
	description string
	entryPoint  string
	functions   []entities.FunctionSignature
}

// NewWASMCapability reads the guest's advertisement. The guest may omit its
// identifier; if it declares one it must equal id.
func NewWASMCapability(ctx context.Context, plugin *Plugin, id entities.CapabilityID, entryPoint string) (*WASMCapability, error) {
	desc, err := plugin.Describe(ctx)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", id, err)
	}
	if desc.ID != "" && entities.CapabilityID(desc.ID) != id {
		return nil, fmt.Errorf("module at %s declares capability %q, registered as %q", entryPoint, desc.ID, string(id))
	}

	c := &WASMCapability{
		plugin:      plugin,
		id:          id,
		description: desc.Description,
		entryPoint:  entryPoint,
	}
	seen := make(map[string]bool, len(desc.Functions))
	for _, fn := range desc.Functions {
		if fn.Name == "" || seen[fn.Name] {
			return nil, fmt.Errorf("capability %s: invalid or duplicate function name %q", id, fn.Name)
		}
		seen[fn.Name] = true

		params := fn.Parameters
		if params == nil {
			params = schema.Empty()
		}
		if err := params.Check(); err != nil {
			return nil, fmt.Errorf("capability %s: function %q: %w", id, fn.Name, err)
		}
		c.functions = append(c.functions, entities.FunctionSignature{
			Name:        fn.Name,
			Description: fn.Description,
			Parameters:  params,
			Result:      fn.Result,
		})
	}
	return c, nil
}

// WASMFactory returns a factory that loads the module at path with executor.
func WASMFactory(executor *Executor, id entities.CapabilityID, path string) ports.Factory {
	return func(ctx context.Context, _ ports.Services) (ports.Capability, error) {
		wasmBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read module: %w", err)
		}
		plugin, err := executor.LoadPlugin(ctx, wasmBytes)
		if err != nil {
			return nil, err
		}
		c, err := NewWASMCapability(ctx, plugin, id, path)
		if err != nil {
			_ = plugin.Close(ctx)
			return nil, err
		}
		return c, nil
	}
}

// Identifier implements ports.Capability.
func (c *WASMCapability) Identifier() entities.CapabilityID {
	return c.id
}

// Description returns the guest's description.
func (c *WASMCapability) Description() string {
	return c.description
}

// Functions implements ports.Capability.
func (c *WASMCapability) Functions() []entities.FunctionSignature {
	return append([]entities.FunctionSignature(nil), c.functions...)
}

// ExecuteFunction implements ports.Capability. Guest failures reported in the
// response keep their kind; a trap or an unreadable response is an error.
func (c *WASMCapability) ExecuteFunction(rc *runctx.RunContext, function string, params schema.Values) (*entities.StepResult, error) {
	if _, ok := entities.FindFunction(c.functions, function); !ok {
		return nil, &errors.UnknownFunctionError{
			CapabilityID: c.id,
			Function:     function,
			Available:    entities.FunctionNames(c.functions),
		}
	}
	if err := rc.Err(); err != nil {
		return nil, &errors.CancelledError{Err: err, CapabilityID: c.id, Function: function}
	}

	resp, err := c.plugin.Execute(hostfuncs.WithCapabilityID(rc, c.id), wireformat.ExecuteRequestWire{
		Parameters: params,
		PipedInput: rc.PipedInput(),
		Function:   function,
		Context:    runctx.ToWire(rc),
	})
	if err != nil {
		if cerr := rc.Err(); cerr != nil {
			return nil, &errors.CancelledError{Err: cerr, CapabilityID: c.id, Function: function}
		}
		return nil, err
	}

	if resp.Error != nil {
		info := entities.NewErrorInfo(resp.Error.Kind, resp.Error.Message).WithDetails(resp.Error.Details)
		res := entities.Failure(info)
		res.Metadata = resp.Metadata
		return res, nil
	}

	res := entities.Success(resp.Data)
	res.Metadata = resp.Metadata
	for _, a := range resp.Artifacts {
		res.WithArtifact(a.Path, a.Type)
	}
	return res, nil
}

// Describe implements ports.Describer.
func (c *WASMCapability) Describe() (entities.CapabilityDefinition, error) {
	return capability.Describe(c, entities.RuntimeWASM, c.entryPoint)
}

// Close implements ports.Closer.
func (c *WASMCapability) Close(ctx context.Context) error {
	return c.plugin.Close(ctx)
}
