package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/aqueduct/pkg/ports"
)

// Locker implements ports.DistributedLocker within a single process.
// Useful for tests and single-replica deployments.
type Locker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewLocker creates a process-local locker.
func NewLocker() *Locker {
	return &Locker{held: make(map[string]chan struct{})}
}

// Lock blocks until key is free or ctx is done. The ttl is ignored: a
// process-local lock cannot outlive its holder.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	for {
		l.mu.Lock()
		wait, busy := l.held[key]
		if !busy {
			release := make(chan struct{})
			l.held[key] = release
			l.mu.Unlock()

			var once sync.Once
			return func(context.Context) error {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(release)
				})
				return nil
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}
