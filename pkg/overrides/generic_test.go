package overrides

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/commonwf/pkg/builder"
	"github.com/aretw0/commonwf/pkg/domain"
)

type mapLoader map[string]domain.Node

func (m mapLoader) Load(_ context.Context, id string) (domain.Node, error) {
	if n, ok := m[id]; ok {
		return n, nil
	}
	return nil, domain.ErrNodeNotFound
}

func parameters(t *testing.T, b *builder.Builder) *domain.Dict {
	t.Helper()
	v, ok := b.Get("parameters")
	require.True(t, ok)
	d, ok := v.(*domain.Dict)
	require.True(t, ok, "got %T", v)
	return d
}

func TestUpdateDict(t *testing.T) {
	b := builder.New("relax.siesta")
	unstored := domain.NewDict(map[string]any{"test": 1})
	require.NoError(t, b.Set("parameters", unstored))

	var invalid *InvalidOverrideError
	assert.ErrorAs(t, UpdateDict(b, "not_valid_port", map[string]any{"new_dict": 33}), &invalid)
	assert.ErrorAs(t, UpdateDict(b, "", map[string]any{"new_dict": 33}), &invalid)
	assert.ErrorAs(t, UpdateDict(b, "parameters", nil), &invalid)

	require.NoError(t, UpdateDict(b, "parameters", map[string]any{"new_dict": 33}))
	got := parameters(t, b)
	assert.Equal(t, map[string]any{"new_dict": 33, "test": 1}, got.AsMap())
	assert.Equal(t, unstored.UUID(), got.UUID(), "unstored node is updated in place")

	stored := domain.NewDict(map[string]any{"test": 1})
	stored.MarkStored()
	require.NoError(t, b.Set("parameters", stored))
	require.NoError(t, UpdateDict(b, "parameters", map[string]any{"new_dict": 33}))
	got = parameters(t, b)
	assert.Equal(t, map[string]any{"new_dict": 33, "test": 1}, got.AsMap())
	assert.NotEqual(t, stored.UUID(), got.UUID(), "stored node is cloned before writing")
	assert.Equal(t, map[string]any{"test": 1}, stored.AsMap())
}

func TestUpdateDict_SubPath(t *testing.T) {
	b := builder.New("relax.siesta")
	require.NoError(t, b.Set("parameters", domain.NewDict(map[string]any{"test": map[string]any{"nested": 1}})))

	var invalid *InvalidOverrideError
	require.ErrorAs(t, UpdateDict(b, "parameters", map[string]any{"new_dict": 33}, "w"), &invalid)
	require.ErrorAs(t, UpdateDict(b, "parameters", map[string]any{"new_dict": 33}, "test", "nested"), &invalid)
	assert.Equal(t, map[string]any{"test": map[string]any{"nested": 1}}, parameters(t, b).AsMap(), "failed override leaves the node untouched")

	require.NoError(t, UpdateDict(b, "parameters", map[string]any{"new_dict": 33}, "test"))
	assert.Equal(t, map[string]any{"test": map[string]any{"nested": 1, "new_dict": 33}}, parameters(t, b).AsMap())

	require.NoError(t, UpdateDict(b, "parameters", map[string]any{"new_dict": 44}, "test"))
	assert.Equal(t, map[string]any{"test": map[string]any{"nested": 1, "new_dict": 44}}, parameters(t, b).AsMap())

	require.NoError(t, b.Set("parameters", domain.NewDict(map[string]any{"test": map[string]any{"double": map[string]any{"nested": 1}}})))
	require.NoError(t, UpdateDict(b, "parameters", map[string]any{"new_dict": 33}, "test", "double"))
	assert.Equal(t,
		map[string]any{"test": map[string]any{"double": map[string]any{"nested": 1, "new_dict": 33}}},
		parameters(t, b).AsMap())
}

func TestUpdateDict_PlainMapping(t *testing.T) {
	b := builder.New("relax.siesta")
	require.NoError(t, b.Set("options", map[string]any{"resources": map[string]any{"num_machines": 1}}))

	require.NoError(t, UpdateDict(b, "options", map[string]any{"num_mpiprocs_per_machine": 4}, "resources"))
	v, _ := b.Get("options.resources")
	assert.Equal(t, map[string]any{"num_machines": 1, "num_mpiprocs_per_machine": 4}, v)

	require.NoError(t, b.Set("structure", domain.NewStr("not a dict")))
	var invalid *InvalidOverrideError
	assert.ErrorAs(t, UpdateDict(b, "structure", map[string]any{"x": 1}), &invalid)
}

func TestAddOrReplaceNode(t *testing.T) {
	b := builder.New("relax.siesta")
	require.NoError(t, b.Set("parameters", domain.NewDict(map[string]any{"test": 1})))

	replacement := domain.NewDict(map[string]any{"test_b": 2})
	replacement.MarkStored()
	loader := mapLoader{replacement.UUID(): replacement}

	var invalid *InvalidOverrideError
	assert.ErrorAs(t, AddOrReplaceNode(context.Background(), b, loader, "parameters", "ww"), &invalid)
	assert.ErrorIs(t, AddOrReplaceNode(context.Background(), b, loader, "parameters", "ww"), domain.ErrNodeNotFound)
	assert.ErrorAs(t, AddOrReplaceNode(context.Background(), b, loader, "kpoints", replacement.UUID()), &invalid)

	require.NoError(t, AddOrReplaceNode(context.Background(), b, loader, "parameters", replacement.UUID()))
	assert.Equal(t, map[string]any{"test_b": 2}, parameters(t, b).AsMap())
}

func TestRemoveNode(t *testing.T) {
	b := builder.New("relax.siesta")
	require.NoError(t, b.Set("parameters", domain.NewDict(map[string]any{"test": 1})))

	var invalid *InvalidOverrideError
	assert.ErrorAs(t, RemoveNode(b, "ww"), &invalid)

	require.NoError(t, RemoveNode(b, "parameters"))
	assert.False(t, b.Contains("parameters"))
}
