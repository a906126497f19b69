package session_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/aqueduct/pkg/adapters/memory"
	"github.com/aretw0/aqueduct/pkg/domain"
	"github.com/aretw0/aqueduct/pkg/palette"
	"github.com/aretw0/aqueduct/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data  map[string]domain.Snapshot
	mu    sync.Mutex
	saves int32
}

func (s *SlowStore) Save(ctx context.Context, id string, snap domain.Snapshot) error {
	time.Sleep(10 * time.Millisecond) // Simulate IO
	atomic.AddInt32(&s.saves, 1)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]domain.Snapshot)
	}
	s.data[id] = snap.Clone()
	return nil
}

func (s *SlowStore) Load(ctx context.Context, id string) (domain.Snapshot, error) {
	time.Sleep(10 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap, ok := s.data[id]; ok {
		return snap.Clone(), nil
	}
	return domain.Snapshot{}, domain.ErrNotFound
}

func (s *SlowStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_LoadOrSeed(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "atomic-init"
	seed := palette.SeedSnapshot()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := manager.LoadOrSeed(ctx, id, seed)
			assert.NoError(t, err)
			assert.Len(t, snap.Nodes, 5)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&store.saves), "seed must be saved exactly once")

	snap, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, seed, snap)
}

func TestManager_ReadModifyWrite(t *testing.T) {
	manager := session.NewManager(&SlowStore{})
	ctx := context.Background()
	id := "rmw"
	require.NoError(t, manager.Save(ctx, id, domain.Snapshot{}))

	// Each writer appends one node inside the lock; none may be lost.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := manager.WithLock(ctx, id, func(ctx context.Context) error {
				snap, err := manager.Store().Load(ctx, id)
				if err != nil {
					return err
				}
				snap.Nodes = append(snap.Nodes, domain.Node{ID: string(rune('a' + i)), Kind: "house"})
				return manager.Store().Save(ctx, id, snap)
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, snap.Nodes, 10)
}

func TestManager_DistributedLock(t *testing.T) {
	locker := memory.NewLocker()
	m1 := session.NewManager(memory.NewStore(), session.WithLocker(locker))
	m2 := session.NewManager(memory.NewStore(), session.WithLocker(locker))
	ctx := context.Background()

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = m1.WithLock(ctx, "shared", func(context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := m2.WithLock(waitCtx, "shared", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(done)
}
