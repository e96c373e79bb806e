package scheduler

import (
	"context"
	"sync"

	"github.com/animus-labs/bronze-loader/internal/transfer"
)

// Lease guarantees at most one in-flight run.
type Lease = transfer.Lease

// LocalLease serializes runs within one process.
type LocalLease struct {
	mu sync.Mutex
}

func (l *LocalLease) TryAcquire(ctx context.Context) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, true, nil
}
