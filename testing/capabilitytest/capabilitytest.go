// Package capabilitytest provides a test harness for capabilities. Calls go
// through a real dispatcher, so parameters are validated and defaults applied
// exactly as in production.
package capabilitytest

import (
	"context"
	"reflect"
	"testing"

	"github.com/reglet-dev/capkit/application/dispatch"
	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/domain/errors"
	"github.com/reglet-dev/capkit/domain/ports"
	"github.com/reglet-dev/capkit/runctx"
)

// TestCase defines one call against a capability.
type TestCase struct {
	Params   map[string]any
	Validate func(t *testing.T, r *entities.StepResult)
	Name     string
	Function string
	Options  []runctx.Option
}

type single struct {
	c ports.Capability
}

func (s single) Resolve(_ context.Context, id entities.CapabilityID) (ports.Capability, error) {
	if id != s.c.Identifier() {
		return nil, &errors.UnknownCapabilityError{ID: id}
	}
	return s.c, nil
}

// Dispatcher returns a dispatcher serving only c.
func Dispatcher(c ports.Capability, opts ...dispatch.Option) *dispatch.Dispatcher {
	return dispatch.New(single{c: c}, opts...)
}

// Invoke runs one call against c.
func Invoke(c ports.Capability, function string, params map[string]any, opts ...runctx.Option) *entities.StepResult {
	rc := runctx.New(context.Background(), opts...)
	return Dispatcher(c).Invoke(rc, dispatch.Call{
		CapabilityID: c.Identifier(),
		Function:     function,
		Parameters:   params,
	})
}

// Run runs every test case as a subtest.
func Run(t *testing.T, c ports.Capability, tests []TestCase) {
	t.Helper()
	d := Dispatcher(c)

	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			rc := runctx.New(context.Background(), tc.Options...)
			result := d.Invoke(rc, dispatch.Call{
				CapabilityID: c.Identifier(),
				Function:     tc.Function,
				Parameters:   tc.Params,
			})
			if tc.Validate != nil {
				tc.Validate(t, result)
			}
		})
	}
}

// AssertSuccess asserts the result is a success.
func AssertSuccess(t *testing.T, r *entities.StepResult) {
	t.Helper()
	if !r.IsSuccess() {
		t.Errorf("expected success, got %s: %s", r.Error.Kind, r.Error.Message)
	}
}

// AssertFailure asserts the result failed with kind.
func AssertFailure(t *testing.T, r *entities.StepResult, kind errors.Kind) {
	t.Helper()
	if r.IsSuccess() {
		t.Errorf("expected %s failure, got success with %v", kind, r.Data)
		return
	}
	if r.Error.Kind != string(kind) {
		t.Errorf("expected %s failure, got %s: %s", kind, r.Error.Kind, r.Error.Message)
	}
}

// AssertData asserts the result data equals expected. Numbers compare by value.
func AssertData(t *testing.T, r *entities.StepResult, expected any) {
	t.Helper()
	if equalValues(r.Data, expected) {
		return
	}
	t.Errorf("data: expected %v, got %v", expected, r.Data)
}

// AssertDataField asserts a field of map data matches the expected value.
func AssertDataField(t *testing.T, r *entities.StepResult, key string, expected any) {
	t.Helper()
	data, ok := r.Data.(map[string]any)
	if !ok {
		t.Errorf("data is %T, not an object", r.Data)
		return
	}
	val, ok := data[key]
	if !ok {
		t.Errorf("missing data field %q", key)
		return
	}
	if !equalValues(val, expected) {
		t.Errorf("field %q: expected %v, got %v", key, expected, val)
	}
}

func equalValues(actual, expected any) bool {
	if e, ok := toFloat64(expected); ok {
		if a, ok := toFloat64(actual); ok {
			return a == e
		}
	}
	return reflect.DeepEqual(actual, expected)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
