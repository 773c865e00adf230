// internal/sweeper/lease.go
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Lease guards a sweep tick so that two ticks never run at the same time.
type Lease interface {
	// Acquire tries to take the lease for at most ttl. It returns ok=false
	// without error when someone else holds it.
	Acquire(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error)
}

// LocalLease serializes ticks within one process.
type LocalLease struct {
	mu sync.Mutex
}

// Acquire takes the lease if it is free. ttl is ignored.
func (l *LocalLease) Acquire(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLease serializes ticks across every engine process sharing one Redis.
type RedisLease struct {
	client *redis.Client
	key    string
}

// NewRedisLease creates a lease stored under key.
func NewRedisLease(client *redis.Client, key string) *RedisLease {
	return &RedisLease{client: client, key: key}
}

// Acquire sets key with SET NX PX. The lease expires on its own after ttl if
// the holder dies before releasing it.
func (l *RedisLease) Acquire(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire sweep lease: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// The tick context may already be cancelled; release anyway.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	}
	return release, true, nil
}
