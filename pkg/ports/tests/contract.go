package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// KeyValueStoreContract runs a suite of tests to verify that a KeyValueStore
// implementation adheres to the defined interface contract.
func KeyValueStoreContract(t *testing.T, store ports.KeyValueStore) {
	t.Helper()
	ctx := context.Background()
	prefix := fmt.Sprintf("contract-%d:", time.Now().UnixNano())

	t.Run("Set and Get", func(t *testing.T) {
		key := prefix + "token"
		require.NoError(t, store.Set(ctx, key, []byte(`"t1"`)))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `"t1"`, string(got))

		// Overwrite
		require.NoError(t, store.Set(ctx, key, []byte(`"t2"`)))
		got, err = store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `"t2"`, string(got))
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, prefix+"missing")
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		key := prefix + "gone"
		require.NoError(t, store.Set(ctx, key, []byte(`1`)))
		require.NoError(t, store.Delete(ctx, key))

		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrKeyNotFound, "Get after Delete should return ErrKeyNotFound")

		assert.NoError(t, store.Delete(ctx, key), "Deleting a missing key is not an error")
	})

	t.Run("Keys By Prefix", func(t *testing.T) {
		scoped := prefix + "scope:"
		require.NoError(t, store.Set(ctx, scoped+"a", []byte(`1`)))
		require.NoError(t, store.Set(ctx, scoped+"b", []byte(`2`)))
		require.NoError(t, store.Set(ctx, prefix+"other", []byte(`3`)))

		keys, err := store.Keys(ctx, scoped)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{scoped + "a", scoped + "b"}, keys)
	})
}

// RunStoreContract runs a suite of tests to verify that a RunStore
// implementation adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store ports.RunStore) {
	t.Helper()
	ctx := context.Background()
	runID := "contract-run-" + time.Now().Format("20060102150405.000000000")

	newResult := func(id string) *domain.Result {
		c := domain.NewContext(nil)
		c.Set("count", 1)
		c.Set("user", "a")
		return &domain.Result{
			RunID:     id,
			Signal:    "login",
			Status:    domain.StatusCompleted,
			Payload:   map[string]any{"token": "t1"},
			Context:   c,
			Trace:     []domain.TraceEntry{{Action: "login", Output: "success"}, {Action: "store"}},
			StartedAt: time.Now().UTC().Truncate(time.Second),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		result := newResult(runID)
		require.NoError(t, store.Save(ctx, result), "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, result.Signal, loaded.Signal)
		assert.Equal(t, result.Status, loaded.Status)
		assert.Equal(t, result.Trace, loaded.Trace)
		assert.Equal(t, []string{"count", "user"}, loaded.Context.Keys())
		// JSON persistence may turn ints into numbers; just check existence.
		assert.True(t, loaded.Context.Has("count"))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newResult(runID)))
		require.NoError(t, store.Delete(ctx, runID), "Delete should not return error")

		_, err := store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		require.NoError(t, store.Save(ctx, newResult(id1)))
		require.NoError(t, store.Save(ctx, newResult(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}
