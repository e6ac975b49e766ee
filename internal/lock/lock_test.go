package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLocalTryLock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	unlock, err := l.TryLock(ctx, "slot", time.Minute)
	require.NoError(t, err)

	_, err = l.TryLock(ctx, "slot", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)

	other, err := l.TryLock(ctx, "other", time.Minute)
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	again, err := l.TryLock(ctx, "slot", time.Minute)
	require.NoError(t, err)
	again()
}

func TestLocalExpiry(t *testing.T) {
	l := NewLocal()
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	stale, err := l.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	fresh, err := l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err, "expired lock should be reclaimable")

	// The stale holder must not release the new owner's lock.
	stale()
	_, err = l.TryLock(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrHeld)
	fresh()
}

func TestWait(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	unlock, err := l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var got atomic.Bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		u, err := Wait(ctx, l, "k", time.Minute, 5*time.Millisecond)
		if err == nil {
			got.Store(true)
			u()
		}
	}()
	time.Sleep(20 * time.Millisecond)
	unlock()
	wg.Wait()
	assert.True(t, got.Load())

	held, err := l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	defer held()
	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = Wait(tctx, l, "k", time.Minute, 5*time.Millisecond)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestLocalMutualExclusion(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	var winners atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.TryLock(ctx, "same", time.Minute); err == nil {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}

// TestRedisLocker runs against a live server when CAREERCOACH_TEST_REDIS is set.
func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("CAREERCOACH_TEST_REDIS")
	if addr == "" {
		t.Skip("CAREERCOACH_TEST_REDIS not set")
	}
	ctx := context.Background()
	r, err := NewRedis(ctx, addr, "", 0)
	require.NoError(t, err)
	defer r.Close()

	key := "test:" + time.Now().Format(time.RFC3339Nano)
	unlock, err := r.TryLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	_, err = r.TryLock(ctx, key, 5*time.Second)
	assert.ErrorIs(t, err, ErrHeld)
	unlock()
	again, err := r.TryLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	again()
}
