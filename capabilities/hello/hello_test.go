package hello_test

import (
	"context"
	"testing"

	"github.com/reglet-dev/capkit/capabilities/hello"
	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/domain/errors"
	"github.com/reglet-dev/capkit/testing/capabilitytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHello(t *testing.T) {
	capabilitytest.Run(t, hello.New(), []capabilitytest.TestCase{
		{
			Name:     "default name",
			Function: "greet",
			Params:   map[string]any{},
			Validate: func(t *testing.T, r *entities.StepResult) {
				capabilitytest.AssertSuccess(t, r)
				capabilitytest.AssertData(t, r, "Hello, World!")
			},
		},
		{
			Name:     "explicit name",
			Function: "greet",
			Params:   map[string]any{"name": "Ada"},
			Validate: func(t *testing.T, r *entities.StepResult) {
				capabilitytest.AssertData(t, r, "Hello, Ada!")
			},
		},
		{
			Name:     "wrong type",
			Function: "greet",
			Params:   map[string]any{"name": 42},
			Validate: func(t *testing.T, r *entities.StepResult) {
				capabilitytest.AssertFailure(t, r, errors.KindValidationError)
			},
		},
		{
			Name:     "unknown function",
			Function: "farewell",
			Validate: func(t *testing.T, r *entities.StepResult) {
				capabilitytest.AssertFailure(t, r, errors.KindUnknownFunction)
			},
		},
		{
			Name:     "shout",
			Function: "shout",
			Params:   map[string]any{"name": "Ada", "times": 3},
			Validate: func(t *testing.T, r *entities.StepResult) {
				capabilitytest.AssertData(t, r, "HELLO, ADA!!!")
			},
		},
		{
			Name:     "shout rule",
			Function: "shout",
			Params:   map[string]any{"times": 9},
			Validate: func(t *testing.T, r *entities.StepResult) {
				capabilitytest.AssertFailure(t, r, errors.KindValidationError)
			},
		},
	})
}

func TestProvider(t *testing.T) {
	factory, err := hello.Provider(entities.ManifestEntry{
		ID:         "acme:hi",
		EntryPoint: hello.EntryPoint,
		Config:     map[string]any{"greeting": "Hi"},
	})
	require.NoError(t, err)

	c, err := factory(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, entities.CapabilityID("acme:hi"), c.Identifier())

	r := capabilitytest.Invoke(c, "greet", map[string]any{"name": "Grace"})
	capabilitytest.AssertData(t, r, "Hi, Grace!")
}

func TestFunctions(t *testing.T) {
	assert.Equal(t, []string{"greet", "shout"}, entities.FunctionNames(hello.New().Functions()))
}
