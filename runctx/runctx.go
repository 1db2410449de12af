// Package runctx carries per-call state through the dispatch path: cancellation,
// the trace id, run/flow/step identifiers, piped input and shared services.
package runctx

import (
	"context"
	"log/slog"
	"maps"

	"github.com/google/uuid"
	"github.com/reglet-dev/capkit/domain/entities"
)

// RunContext is the per-call context handed to a capability. It embeds the
// call's context.Context, so it can be passed anywhere a context is expected
// and its cancellation is the call's cancellation signal.
//
// A RunContext is read-only from the capability's perspective and lives for
// one dispatch call.
type RunContext struct {
	context.Context

	services    Services
	pipedInput  any
	scriptInput map[string]any
	steps       map[string]*entities.StepResult
	session     map[string]any
	runID       string
	flowID      string
	stepID      string
	traceID     string
}

type rcKey struct{}

// Option configures a RunContext.
type Option func(*RunContext)

// WithRunID sets the workflow run identifier.
func WithRunID(id string) Option {
	return func(rc *RunContext) { rc.runID = id }
}

// WithFlowID sets the flow identifier.
func WithFlowID(id string) Option {
	return func(rc *RunContext) { rc.flowID = id }
}

// WithStepID sets the step identifier.
func WithStepID(id string) Option {
	return func(rc *RunContext) { rc.stepID = id }
}

// WithTraceID sets the correlation id. It is propagated unchanged.
func WithTraceID(id string) Option {
	return func(rc *RunContext) { rc.traceID = id }
}

// WithPipedInput sets the output of the previous step.
func WithPipedInput(v any) Option {
	return func(rc *RunContext) { rc.pipedInput = v }
}

// WithScriptInput sets the inputs the workflow was started with.
func WithScriptInput(in map[string]any) Option {
	return func(rc *RunContext) { rc.scriptInput = in }
}

// WithSteps sets the results of previously executed steps, keyed by step id.
func WithSteps(steps map[string]*entities.StepResult) Option {
	return func(rc *RunContext) { rc.steps = steps }
}

// WithSession sets a snapshot of session state.
func WithSession(session map[string]any) Option {
	return func(rc *RunContext) { rc.session = session }
}

// WithServices sets the shared services owned by the orchestrator.
func WithServices(s Services) Option {
	return func(rc *RunContext) { rc.services = s }
}

// New creates a RunContext derived from ctx. A trace id already present on ctx
// is reused; missing run and trace ids are generated.
func New(ctx context.Context, opts ...Option) *RunContext {
	if ctx == nil {
		ctx = context.Background()
	}
	rc := &RunContext{}
	if parent, ok := FromContext(ctx); ok {
		inherit(rc, parent)
	}
	for _, opt := range opts {
		opt(rc)
	}
	if rc.traceID == "" {
		rc.traceID = TraceIDFromContext(ctx)
	}
	if rc.traceID == "" {
		rc.traceID = uuid.NewString()
	}
	if rc.runID == "" {
		rc.runID = uuid.NewString()
	}
	if rc.services == nil {
		rc.services = NewServices(nil, nil)
	}
	rc.Context = bind(ctx, rc)
	return rc
}

func inherit(rc, parent *RunContext) {
	rc.services = parent.services
	rc.pipedInput = parent.pipedInput
	rc.scriptInput = parent.scriptInput
	rc.steps = parent.steps
	rc.session = parent.session
	rc.runID = parent.runID
	rc.flowID = parent.flowID
	rc.stepID = parent.stepID
	rc.traceID = parent.traceID
}

func bind(ctx context.Context, rc *RunContext) context.Context {
	ctx = ContextWithTraceID(ctx, rc.traceID)
	return context.WithValue(ctx, rcKey{}, rc)
}

// FromContext returns the RunContext bound to ctx, if any.
func FromContext(ctx context.Context) (*RunContext, bool) {
	if ctx == nil {
		return nil, false
	}
	if rc, ok := ctx.(*RunContext); ok {
		return rc, true
	}
	rc, ok := ctx.Value(rcKey{}).(*RunContext)
	return rc, ok
}

// WithContext returns a copy of rc whose cancellation follows ctx.
func (rc *RunContext) WithContext(ctx context.Context) *RunContext {
	cp := &RunContext{}
	inherit(cp, rc)
	cp.Context = bind(ctx, cp)
	return cp
}

// WithStep returns a copy of rc for a different step of the same run.
func (rc *RunContext) WithStep(stepID string, pipedInput any) *RunContext {
	cp := &RunContext{}
	inherit(cp, rc)
	cp.stepID = stepID
	cp.pipedInput = pipedInput
	cp.Context = bind(rc.Context, cp)
	return cp
}

func (rc *RunContext) RunID() string   { return rc.runID }
func (rc *RunContext) FlowID() string  { return rc.flowID }
func (rc *RunContext) StepID() string  { return rc.stepID }
func (rc *RunContext) TraceID() string { return rc.traceID }

// PipedInput returns the output of the previous step, if any.
func (rc *RunContext) PipedInput() any { return rc.pipedInput }

// ScriptInput returns a copy of the workflow inputs.
func (rc *RunContext) ScriptInput() map[string]any { return maps.Clone(rc.scriptInput) }

// Session returns a copy of the session snapshot.
func (rc *RunContext) Session() map[string]any { return maps.Clone(rc.session) }

// Step returns the result of a previously executed step.
func (rc *RunContext) Step(id string) (*entities.StepResult, bool) {
	r, ok := rc.steps[id]
	return r, ok
}

// Steps returns a copy of the prior step results.
func (rc *RunContext) Steps() map[string]*entities.StepResult { return maps.Clone(rc.steps) }

// Services returns the shared services.
func (rc *RunContext) Services() Services { return rc.services }

// Secrets returns the shared secret service.
func (rc *RunContext) Secrets() SecretService { return rc.services.Secrets() }

// Logger returns the shared logger bound to this run's identifiers.
func (rc *RunContext) Logger() *slog.Logger {
	return rc.services.Logger().With(rc.LogAttrs()...)
}

// LogAttrs returns the non-empty run identifiers as slog attributes.
func (rc *RunContext) LogAttrs() []any {
	attrs := make([]any, 0, 4)
	if rc.traceID != "" {
		attrs = append(attrs, slog.String("trace_id", rc.traceID))
	}
	if rc.runID != "" {
		attrs = append(attrs, slog.String("run_id", rc.runID))
	}
	if rc.flowID != "" {
		attrs = append(attrs, slog.String("flow_id", rc.flowID))
	}
	if rc.stepID != "" {
		attrs = append(attrs, slog.String("step_id", rc.stepID))
	}
	return attrs
}
