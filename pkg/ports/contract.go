package ports

import (
	"context"
	"testing"

	"github.com/aretw0/commonwf/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunNodeStoreContract runs a suite of tests to verify that a NodeStore implementation
// adheres to the defined interface contract.
func RunNodeStoreContract(t *testing.T, store NodeStore) {
	ctx := context.Background()

	t.Run("Save and Load by UUID", func(t *testing.T) {
		node := domain.NewDict(map[string]any{"foo": "bar", "count": 42})

		err := store.Save(ctx, node)
		require.NoError(t, err, "Save should not return error")
		assert.True(t, node.IsStored(), "Save should mark the node as stored")

		loaded, err := store.Load(ctx, node.UUID())
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, node.UUID(), loaded.UUID())
		assert.True(t, loaded.IsStored())

		dict, ok := loaded.(*domain.Dict)
		require.True(t, ok, "loaded node should keep its type")
		v, _ := dict.Get("foo")
		assert.Equal(t, "bar", v)
		// JSON persistence may turn ints into floats, only check existence.
		_, ok = dict.Get("count")
		assert.True(t, ok)
	})

	t.Run("Load by Label", func(t *testing.T) {
		code, err := domain.NewCode("contract-code", "siesta.siesta", "localhost", "/bin/true")
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, code))

		loaded, err := store.Load(ctx, "contract-code")
		require.NoError(t, err)
		assert.Equal(t, code.UUID(), loaded.UUID())
		assert.Equal(t, "siesta.siesta", loaded.(*domain.Code).Capability())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-node")
		assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		node := domain.NewStr("to-delete")
		require.NoError(t, store.Save(ctx, node))

		err := store.Delete(ctx, node.UUID())
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, node.UUID())
		assert.ErrorIs(t, err, domain.ErrNodeNotFound, "Load after Delete should return ErrNodeNotFound")
	})

	t.Run("List", func(t *testing.T) {
		n1 := domain.NewStr("one")
		n2 := domain.NewStr("two")
		_ = store.Save(ctx, n1)
		_ = store.Save(ctx, n2)
		defer func() {
			_ = store.Delete(ctx, n1.UUID())
			_ = store.Delete(ctx, n2.UUID())
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, n1.UUID())
		assert.Contains(t, ids, n2.UUID())
	})
}
