package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reglet-dev/capkit/hostfuncs"
	capwazero "github.com/reglet-dev/capkit/infrastructure/wazero"
	caplog "github.com/reglet-dev/capkit/log"
	"github.com/reglet-dev/capkit/runctx"
	"github.com/reglet-dev/capkit/wireformat"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Guest exports.
const (
	ExportDescribe   = "describe"
	ExportExecute    = "execute"
	exportInitialize = "_initialize"
)

// Plugin is an instantiated WASM module. Guest memory is single-threaded,
// so calls into one Plugin are serialized. A module closed by a cancelled
// call is re-instantiated on the next call.
type Plugin struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	module   api.Module
	mu       sync.Mutex
}

func (p *Plugin) instantiate(ctx context.Context) error {
	cfg := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions().
		WithSysWalltime().
		WithSysNanotime()

	mod, err := p.runtime.InstantiateModule(ctx, p.compiled, cfg)
	if err != nil {
		return fmt.Errorf("failed to instantiate module: %w", err)
	}
	if init := mod.ExportedFunction(exportInitialize); init != nil {
		if _, err := init.Call(ctx); err != nil {
			_ = mod.Close(ctx)
			return fmt.Errorf("failed to call %s: %w", exportInitialize, err)
		}
	}
	p.module = mod
	return nil
}

// Describe calls the guest's describe export.
func (p *Plugin) Describe(ctx context.Context) (wireformat.DescribeWire, error) {
	var desc wireformat.DescribeWire
	out, err := p.call(ctx, ExportDescribe, nil)
	if err != nil {
		return desc, err
	}
	if err := json.Unmarshal(out, &desc); err != nil {
		return desc, fmt.Errorf("decode %s response: %w", ExportDescribe, err)
	}
	return desc, nil
}

// Execute calls the guest's execute export.
func (p *Plugin) Execute(ctx context.Context, req wireformat.ExecuteRequestWire) (wireformat.ExecuteResponseWire, error) {
	var resp wireformat.ExecuteResponseWire
	in, err := json.Marshal(req)
	if err != nil {
		return resp, fmt.Errorf("encode %s request: %w", ExportExecute, err)
	}
	out, err := p.call(ctx, ExportExecute, in)
	if err != nil {
		return resp, err
	}
	dec := json.NewDecoder(bytes.NewReader(out))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return resp, fmt.Errorf("decode %s response: %w", ExportExecute, err)
	}
	return resp, nil
}

// Close releases the module instance and its compiled code.
func (p *Plugin) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.module != nil && !p.module.IsClosed() {
		err = p.module.Close(ctx)
	}
	if cerr := p.compiled.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

func (p *Plugin) call(ctx context.Context, name string, input []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.module == nil || p.module.IsClosed() {
		if err := p.instantiate(ctx); err != nil {
			return nil, err
		}
	}

	f := p.module.ExportedFunction(name)
	if f == nil {
		return nil, fmt.Errorf("export %q not found", name)
	}

	var (
		results []uint64
		err     error
	)
	if input == nil {
		results, err = f.Call(ctx)
	} else {
		packed, werr := capwazero.WriteToGuest(ctx, p.module, input)
		if werr != nil {
			return nil, werr
		}
		ptr, length := capwazero.UnpackPtrLen(packed)
		results, err = f.Call(ctx, uint64(ptr), uint64(length))
	}
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("call %s: %w", name, capwazero.ErrNullPointer)
	}

	out, err := capwazero.ReadPacked(p.module, results[0])
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", name, err)
	}
	return out, nil
}

// logMessage implements the log_message import. Records are written to the
// calling run's logger when the call carries a run context.
func (e *Executor) logMessage(ctx context.Context, mod api.Module, stack []uint64) {
	payload, err := capwazero.ReadPacked(mod, stack[0])
	if err != nil {
		return
	}

	logger := e.logger
	if rc, ok := runctx.FromContext(ctx); ok {
		logger = rc.Logger()
	}
	if id := hostfuncs.CapabilityIDFromContext(ctx); id != "" {
		logger = logger.With("capability_id", string(id))
	}

	var msg wireformat.LogMessageWire
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&msg); err != nil {
		logger.WarnContext(ctx, "guest log (raw)", "payload", string(payload))
		return
	}

	level, err := caplog.ParseLevel(msg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	logger.LogAttrs(ctx, level, msg.Message, caplog.AttrsFromWire(msg.Attrs)...)
}
