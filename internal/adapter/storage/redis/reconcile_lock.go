package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still carries our token, so a
// pass that outlived its TTL cannot free a lock taken over by another pass.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ReconcileLock implements ports.ReconcileLock using Redis SET NX.
type ReconcileLock struct {
	client *goredis.Client
	prefix string
}

// NewReconcileLock creates a new Redis-backed per-owner lock.
func NewReconcileLock(client *goredis.Client) *ReconcileLock {
	return &ReconcileLock{
		client: client,
		prefix: "reconcile:lock:",
	}
}

// Acquire takes the owner's lock for ttl. ok is false if it is already held.
func (l *ReconcileLock) Acquire(ctx context.Context, owner string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	result, err := l.client.SetArgs(ctx, l.prefix+owner, token, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis reconcile lock acquire: %w", err)
	}
	if result != "OK" {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the owner's lock if token still holds it.
func (l *ReconcileLock) Release(ctx context.Context, owner string, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + owner}, token).Err(); err != nil {
		return fmt.Errorf("redis reconcile lock release: %w", err)
	}
	return nil
}
