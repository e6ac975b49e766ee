// Package lock provides keyed mutual exclusion, either in-process or shared
// across instances through redis.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrHeld is returned by TryLock when another holder owns the key.
var ErrHeld = errors.New("lock: held by another owner")

// DefaultTTL bounds how long a crashed holder can keep a key.
const DefaultTTL = 30 * time.Second

// Unlock releases a lock. It is safe to call more than once.
type Unlock func()

// Locker grants exclusive ownership of a key for at most ttl.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (Unlock, error)
}

// Wait polls l until key is acquired or ctx is done.
func Wait(ctx context.Context, l Locker, key string, ttl, interval time.Duration) (Unlock, error) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		unlock, err := l.TryLock(ctx, key, ttl)
		if !errors.Is(err, ErrHeld) {
			return unlock, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}
