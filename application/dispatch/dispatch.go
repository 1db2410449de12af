// Package dispatch routes calls to capability functions. A call resolves its
// capability, looks up the function signature, validates parameters and
// executes, always producing a StepResult.
package dispatch

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"maps"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/reglet-dev/capkit/application/capability"
	"github.com/reglet-dev/capkit/application/validation"
	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/domain/errors"
	"github.com/reglet-dev/capkit/domain/ports"
	"github.com/reglet-dev/capkit/domain/schema"
	"github.com/reglet-dev/capkit/runctx"
	"golang.org/x/sync/errgroup"
)

// Call names a function and carries its raw parameters.
type Call struct {
	Parameters   map[string]any        `json:"parameters,omitempty"`
	CapabilityID entities.CapabilityID `json:"capability_id"`
	Function     string                `json:"function_name"`
}

// dispatcherConfig holds configuration for the Dispatcher.
type dispatcherConfig struct {
	logger         *slog.Logger
	observer       Observer
	middleware     []Middleware
	defaultTimeout time.Duration
	maxConcurrency int
}

func defaultDispatcherConfig() dispatcherConfig {
	return dispatcherConfig{
		logger: slog.Default(),
	}
}

// Option configures a Dispatcher.
type Option func(*dispatcherConfig)

// WithLogger sets the logger for dispatcher events.
func WithLogger(l *slog.Logger) Option {
	return func(c *dispatcherConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver receives every state transition of every call.
func WithObserver(o Observer) Option {
	return func(c *dispatcherConfig) {
		c.observer = o
	}
}

// WithMiddleware appends middleware around the Executing stage.
func WithMiddleware(mws ...Middleware) Option {
	return func(c *dispatcherConfig) {
		c.middleware = append(c.middleware, mws...)
	}
}

// WithDefaultTimeout bounds the Executing stage of every call. Zero disables it.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *dispatcherConfig) {
		c.defaultTimeout = d
	}
}

// WithMaxConcurrency limits how many calls InvokeAll runs at once. Zero means
// no limit.
func WithMaxConcurrency(n int) Option {
	return func(c *dispatcherConfig) {
		c.maxConcurrency = n
	}
}

// Dispatcher executes calls against capabilities obtained from a resolver.
// It is safe for concurrent use; calls are independent of each other.
type Dispatcher struct {
	resolver ports.Resolver
	handler  Handler
	results  *validation.ResultValidator
	inflight *inflightTable
	config   dispatcherConfig
}

// New creates a Dispatcher that resolves capabilities through r.
func New(r ports.Resolver, opts ...Option) *Dispatcher {
	cfg := defaultDispatcherConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	mws := append(append([]Middleware{}, cfg.middleware...), Recovery())
	return &Dispatcher{
		resolver: r,
		handler:  chain(execute, mws),
		results:  validation.NewResultValidator(),
		inflight: newInflightTable(),
		config:   cfg,
	}
}

// Invoke runs one call to completion. It never returns a Go error: every
// failure is reported in the result's Error with a stable kind. Results are
// stamped with call metadata; keys set by the capability are kept.
func (d *Dispatcher) Invoke(rc *runctx.RunContext, call Call) *entities.StepResult {
	if rc == nil {
		rc = runctx.New(context.Background())
	}

	start := time.Now()
	t := d.begin(rc, call)
	defer d.inflight.remove(t)

	res := d.guardedRun(t, call)

	meta := entities.NewRunMetadata(start, time.Now()).
		WithCall(t.info.CallID, rc.TraceID()).
		WithTarget(call.CapabilityID, call.Function)
	return res.MergeMetadata(meta.Map())
}

// guardedRun turns a panic anywhere in the call path into a CapabilityFault
// result. Recovery middleware only covers ExecuteFunction; this also covers
// signature lookup and user middleware.
func (d *Dispatcher) guardedRun(t *tracker, call Call) (res *entities.StepResult) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		fault := &errors.CapabilityFaultError{
			CapabilityID: call.CapabilityID,
			Function:     call.Function,
			Panic:        p,
			Stack:        debug.Stack(),
		}
		d.config.logger.Error("dispatch recovered from panic",
			"call_id", t.info.CallID,
			"capability_id", string(call.CapabilityID),
			"function", call.Function,
			"panic", p)
		if t.state().Terminal() {
			res = entities.Failure(errors.ToErrorInfo(fault))
			return
		}
		res = t.fail(fault)
	}()
	return d.run(t, call)
}

func (d *Dispatcher) run(t *tracker, call Call) *entities.StepResult {
	rc := t.rc

	t.advance(StateResolving)
	inst, err := d.resolver.Resolve(rc, call.CapabilityID)
	if err != nil {
		return t.fail(err)
	}

	t.advance(StateSignatureLookup)
	sigs := inst.Functions()
	sig, ok := entities.FindFunction(sigs, call.Function)
	if !ok {
		return t.fail(&errors.UnknownFunctionError{
			CapabilityID: call.CapabilityID,
			Function:     call.Function,
			Available:    entities.FunctionNames(sigs),
		})
	}

	t.advance(StateValidating)
	params, err := schema.Validate(sig.Parameters, call.Parameters)
	if err != nil {
		return t.fail(err)
	}

	t.advance(StateExecuting)
	if err := rc.Err(); err != nil {
		return t.fail(&errors.CancelledError{Err: err, CapabilityID: call.CapabilityID, Function: call.Function})
	}

	erc := rc
	if d.config.defaultTimeout > 0 {
		ctx, cancel := context.WithTimeout(rc, d.config.defaultTimeout)
		defer cancel()
		erc = rc.WithContext(ctx)
	}

	res, err := d.handler(erc, &Invocation{
		Capability:   inst,
		Params:       params,
		Signature:    sig,
		CallID:       t.info.CallID,
		CapabilityID: call.CapabilityID,
		Function:     call.Function,
	})
	if err != nil {
		return t.fail(executionError(err, call.CapabilityID, call.Function))
	}
	if res == nil {
		return t.fail(&errors.CapabilityFaultError{
			CapabilityID: call.CapabilityID,
			Function:     call.Function,
			Cause:        stdErrors.New("function returned no result"),
		})
	}

	out := copyResult(res)
	if out.Error != nil {
		out.Error = errors.EnsureKind(out.Error, call.CapabilityID, call.Function)
		t.advance(StateFailed)
		return out
	}

	key := string(call.CapabilityID) + "." + call.Function
	if err := d.results.Validate(key, sig.Result, out.Data); err != nil {
		return t.fail(&errors.CapabilityFaultError{
			CapabilityID: call.CapabilityID,
			Function:     call.Function,
			Cause:        err,
		})
	}

	t.advance(StateSucceeded)
	return out
}

// executionError classifies an error returned from the Executing stage.
// Errors that already carry a kind keep it.
func executionError(err error, id entities.CapabilityID, function string) error {
	var (
		de   errors.DetailedError
		info *entities.ErrorInfo
		ve   *schema.ValidationError
	)
	switch {
	case errors.KindOf(err) == errors.KindCapabilityFault && !isFault(err):
		return &errors.CapabilityFaultError{Cause: err, CapabilityID: id, Function: function}
	case stdErrors.As(err, &de), stdErrors.As(err, &info), stdErrors.As(err, &ve):
		return err
	case errors.IsCancellation(err):
		return &errors.CancelledError{Err: err, CapabilityID: id, Function: function}
	default:
		return &errors.CapabilityFaultError{Cause: err, CapabilityID: id, Function: function}
	}
}

func isFault(err error) bool {
	var fault *errors.CapabilityFaultError
	return stdErrors.As(err, &fault)
}

func copyResult(res *entities.StepResult) *entities.StepResult {
	out := *res
	out.Metadata = maps.Clone(res.Metadata)
	return &out
}

// InvokeAll runs calls concurrently and returns their results in input order.
// No ordering between calls is implied.
func (d *Dispatcher) InvokeAll(rc *runctx.RunContext, calls []Call) []*entities.StepResult {
	results := make([]*entities.StepResult, len(calls))

	var g errgroup.Group
	if d.config.maxConcurrency > 0 {
		g.SetLimit(d.config.maxConcurrency)
	}
	for i, call := range calls {
		g.Go(func() error {
			results[i] = d.Invoke(rc, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Describe returns the advertisement of the capability registered under id.
func (d *Dispatcher) Describe(ctx context.Context, id entities.CapabilityID) (entities.CapabilityDefinition, error) {
	inst, err := d.resolver.Resolve(ctx, id)
	if err != nil {
		return entities.CapabilityDefinition{}, err
	}
	if describer, ok := inst.(ports.Describer); ok {
		return describer.Describe()
	}
	return capability.Describe(inst, entities.RuntimeNative, "")
}

// Functions returns the signatures advertised by the capability registered under id.
func (d *Dispatcher) Functions(ctx context.Context, id entities.CapabilityID) ([]entities.FunctionSignature, error) {
	inst, err := d.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return inst.Functions(), nil
}

func newCallID() string {
	return uuid.NewString()
}
