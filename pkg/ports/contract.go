package ports

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Nodes: []domain.Node{
			{
				ID: "river-source", Kind: "river", Label: "Река (Источник)",
				Properties: domain.NewProperties(
					domain.Property{Key: "Тип источника", Value: domain.Text("Поверхностные воды")},
					domain.Property{Key: "Уровень воды", Value: domain.Text("Переменный")},
				),
				Position: domain.Position{X: 300, Y: 50},
			},
			{
				ID: "pump-1", Kind: "pump_station", Label: "Насосная станция",
				Properties: domain.NewProperties(
					domain.Property{Key: "Производительность", Value: domain.Text("100 л/с")},
				),
				Position: domain.Position{X: 300, Y: 200},
			},
		},
		Edges: []domain.Edge{
			{
				ID: "e-river-to-pump", Source: "river-source", Target: "pump-1",
				Properties: domain.NewProperties(
					domain.Property{Key: "Скорость потока", Value: domain.Number(100)},
					domain.Property{Key: "Потери на трение", Value: domain.Number(0.03)},
				),
			},
		},
	}
}

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	workspaceID := "contract-test-workspace-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		snap := contractSnapshot()
		require.NoError(t, store.Save(ctx, workspaceID, snap), "Save should not return error")

		loaded, err := store.Load(ctx, workspaceID)
		require.NoError(t, err, "Load should not return error")
		require.Len(t, loaded.Nodes, 2)
		require.Len(t, loaded.Edges, 1)
		assert.Equal(t, snap.Nodes[0].Properties.Keys(), loaded.Nodes[0].Properties.Keys(), "property order must survive persistence")

		loss, ok := loaded.Edges[0].Properties.Get("Потери на трение")
		require.True(t, ok)
		assert.True(t, loss.IsNumber(), "numbers must stay numbers")
		assert.Equal(t, snap.Nodes[1].Position, loaded.Nodes[1].Position)
	})

	t.Run("Load Returns Copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, workspaceID)
		require.NoError(t, err)
		loaded.Nodes[0].Label = "mutated"

		again, err := store.Load(ctx, workspaceID)
		require.NoError(t, err)
		assert.Equal(t, "Река (Источник)", again.Nodes[0].Label)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+workspaceID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		id1 := workspaceID + "-1"
		id2 := workspaceID + "-2"
		_ = store.Save(ctx, id1, contractSnapshot())
		_ = store.Save(ctx, id2, domain.Snapshot{})
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, workspaceID), "Delete should not return error")

		_, err := store.Load(ctx, workspaceID)
		assert.ErrorIs(t, err, domain.ErrNotFound, "Load after Delete should return ErrNotFound")
	})
}

// RunResponseCacheContract verifies a ResponseCache implementation.
func RunResponseCacheContract(t *testing.T, cache ResponseCache) {
	ctx := context.Background()
	key := "contract-test-key-" + time.Now().Format("20060102150405")

	t.Run("Miss", func(t *testing.T) {
		_, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Set and Get", func(t *testing.T) {
		resp := "```json\n{\"suggestions\":[],\"modified\":{\"nodes\":[],\"edges\":[]}}\n```"
		require.NoError(t, cache.Set(ctx, key, resp, time.Minute))

		got, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, resp, got)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, key, "second", 0))
		got, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "second", got)
	})
}

// RunLockerContract verifies that a DistributedLocker provides mutual exclusion.
func RunLockerContract(t *testing.T, locker DistributedLocker) {
	ctx := context.Background()
	key := "contract-test-lock-" + time.Now().Format("20060102150405")

	t.Run("Lock and Unlock", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, 5*time.Second)
		require.NoError(t, err)
		require.NoError(t, unlock(ctx))

		// Re-acquire after release.
		unlock, err = locker.Lock(ctx, key, 5*time.Second)
		require.NoError(t, err)
		require.NoError(t, unlock(ctx))
	})

	t.Run("Context Cancellation", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, 5*time.Second)
		require.NoError(t, err)
		defer func() { _ = unlock(ctx) }()

		waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(waitCtx, key, 5*time.Second)
		assert.Error(t, err, "second Lock must fail while the key is held")
	})

	t.Run("Mutual Exclusion", func(t *testing.T) {
		var (
			active  int32
			overlap int32
			wg      sync.WaitGroup
		)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := locker.Lock(ctx, key+"-mutex", 5*time.Second)
				if err != nil {
					return
				}
				if atomic.AddInt32(&active, 1) > 1 {
					atomic.StoreInt32(&overlap, 1)
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				_ = unlock(ctx)
			}()
		}
		wg.Wait()
		assert.Zero(t, atomic.LoadInt32(&overlap), "two holders overlapped")
	})
}
