package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PrefixLock is the prefix for distributed lock keys.
const PrefixLock = "lock:"

// releaseScript deletes the key only if it still holds our token, so a holder
// whose TTL lapsed cannot release someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis is a Locker backed by SET NX with a random token per holder.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) TryLock(ctx context.Context, key string, ttl time.Duration) (Unlock, error) {
	k := PrefixLock + key
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", k, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return func() {
		// Release must outlive a cancelled request context.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, r.client, []string{k}, token).Err(); err != nil {
			slog.Warn("failed to release lock", "key", k, "error", err)
		}
	}, nil
}

// Close closes the redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
