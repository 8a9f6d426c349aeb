package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

const (
	defaultLockTimeout = 30 * time.Second
	lockPollInterval   = 100 * time.Millisecond
)

// acquireSnapshotLock takes an exclusive file lock, polling until timeout
// or context cancellation. The returned func releases it.
func acquireSnapshotLock(ctx context.Context, lockPath string, timeout time.Duration) (func(), error) {
	l := flock.New(lockPath)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return nil, fmt.Errorf("cannot acquire index lock: %w", err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("another index build is in progress (lock: %s)", lockPath)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}
