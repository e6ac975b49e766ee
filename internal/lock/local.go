package lock

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	token   uint64
	expires time.Time
}

// Local is an in-process Locker for single-instance deployments.
type Local struct {
	mu   sync.Mutex
	next uint64
	held map[string]entry
	now  func() time.Time
}

// NewLocal returns an empty in-process locker.
func NewLocal() *Local {
	return &Local{held: make(map[string]entry), now: time.Now}
}

func (l *Local) TryLock(_ context.Context, key string, ttl time.Duration) (Unlock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return nil, ErrHeld
	}
	l.next++
	token := l.next
	l.held[key] = entry{token: token, expires: now.Add(ttl)}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, ok := l.held[key]; ok && e.token == token {
			delete(l.held, key)
		}
	}, nil
}
