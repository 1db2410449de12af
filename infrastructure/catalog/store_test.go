package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func helloDef() entities.CapabilityDefinition {
	return entities.CapabilityDefinition{
		ID:          "community:hello",
		Description: "greets people",
		Runtime:     entities.RuntimeNative,
		Functions: []entities.FunctionDefinition{
			{Name: "greet", Description: "greet someone", InputSchema: json.RawMessage(`{"type":"object"}`), OutputSchema: json.RawMessage(`{"type":"string"}`)},
			{Name: "wave"},
		},
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), " ")
	assert.Error(t, err)
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Put(context.Background(), helloDef()))
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := openTempStore(t)
	at := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	def := helloDef()
	def.UpdatedAt = at
	require.NoError(t, s.Put(ctx, def))

	got, err := s.Get(ctx, "community:hello")
	require.NoError(t, err)
	assert.Equal(t, def, got)
}

func TestStore_PutReplacesFunctions(t *testing.T) {
	ctx := context.Background()
	s := openTempStore(t)
	require.NoError(t, s.Put(ctx, helloDef()))

	def := helloDef()
	def.Functions = def.Functions[1:]
	def.Description = "waves"
	require.NoError(t, s.Put(ctx, def))

	got, err := s.Get(ctx, "community:hello")
	require.NoError(t, err)
	assert.Equal(t, "waves", got.Description)
	require.Len(t, got.Functions, 1)
	assert.Equal(t, "wave", got.Functions[0].Name)
	assert.Nil(t, got.Functions[0].InputSchema)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestStore_PutRejectsInvalidID(t *testing.T) {
	err := openTempStore(t).Put(context.Background(), entities.CapabilityDefinition{ID: "nope"})
	assert.ErrorIs(t, err, entities.ErrInvalidCapabilityID)
}

func TestStore_GetMissing(t *testing.T) {
	_, err := openTempStore(t).Get(context.Background(), "community:none")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openTempStore(t)
	for _, id := range []string{"z:last", "a:first", "m:mid"} {
		require.NoError(t, s.Put(ctx, entities.CapabilityDefinition{ID: entities.CapabilityID(id)}))
	}

	defs, err := s.List(ctx)
	require.NoError(t, err)
	var ids []entities.CapabilityID
	for _, d := range defs {
		ids = append(ids, d.ID)
		assert.NotNil(t, d.Functions)
	}
	assert.Equal(t, []entities.CapabilityID{"a:first", "m:mid", "z:last"}, ids)

	require.NoError(t, s.Delete(ctx, "m:mid"))
	require.NoError(t, s.Delete(ctx, "m:mid"))
	defs, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, defs, 2)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, helloDef()))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, "community:hello")
	require.NoError(t, err)
	assert.Len(t, got.Functions, 2)
}

type mapDescriber map[entities.CapabilityID]entities.CapabilityDefinition

func (m mapDescriber) Describe(_ context.Context, id entities.CapabilityID) (entities.CapabilityDefinition, error) {
	def, ok := m[id]
	if !ok {
		return def, fmt.Errorf("unknown capability %q", id)
	}
	return def, nil
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	s := openTempStore(t)
	at := time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC)
	d := mapDescriber{
		"community:hello": helloDef(),
		"community:echo":  {ID: "community:echo", Functions: []entities.FunctionDefinition{{Name: "echo"}}},
	}
	require.NoError(t, s.Put(ctx, entities.CapabilityDefinition{ID: "community:stale"}))

	err := Sync(ctx, s, d, []entities.CapabilityID{"community:hello", "community:echo"}, WithClock(func() time.Time { return at }))
	require.NoError(t, err)

	got, err := s.Get(ctx, "community:echo")
	require.NoError(t, err)
	assert.Equal(t, at, got.UpdatedAt)

	_, err = s.Get(ctx, "community:stale")
	require.NoError(t, err)

	require.NoError(t, Sync(ctx, s, d, []entities.CapabilityID{"community:hello"}, WithPrune(), WithSyncConcurrency(1)))
	defs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, entities.CapabilityID("community:hello"), defs[0].ID)
}

func TestSync_DescribeFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := openTempStore(t)
	d := mapDescriber{"community:hello": helloDef()}

	err := Sync(ctx, s, d, []entities.CapabilityID{"community:hello", "community:missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "describe community:missing")

	defs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, defs)
}
