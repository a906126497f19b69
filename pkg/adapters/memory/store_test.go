package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/aqueduct/pkg/adapters/memory"
	"github.com/aretw0/aqueduct/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, memory.NewStore())
}

func TestMemoryCache_Contract(t *testing.T) {
	ports.RunResponseCacheContract(t, memory.NewCache())
}

func TestMemoryLocker_Contract(t *testing.T) {
	ports.RunLockerContract(t, memory.NewLocker())
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := memory.NewCache()

	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Millisecond))
	_, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}
