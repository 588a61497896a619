package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chainpay-reconciler/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// BalanceCache implements ports.BalanceCache using Redis.
type BalanceCache struct {
	client *goredis.Client
	prefix string
}

// NewBalanceCache creates a Redis-backed balance cache.
func NewBalanceCache(client *goredis.Client) *BalanceCache {
	return &BalanceCache{
		client: client,
		prefix: "balance:",
	}
}

// Get returns the cached snapshot, or nil on a miss.
func (c *BalanceCache) Get(ctx context.Context, address string) (*domain.BalanceSnapshot, error) {
	raw, err := c.client.Get(ctx, c.prefix+address).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis balance get: %w", err)
	}

	var snap domain.BalanceSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode cached balance: %w", err)
	}
	return &snap, nil
}

// Set stores snapshot for ttl.
func (c *BalanceCache) Set(ctx context.Context, snapshot *domain.BalanceSnapshot, ttl time.Duration) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode balance: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+snapshot.Address, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis balance set: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot for address.
func (c *BalanceCache) Invalidate(ctx context.Context, address string) error {
	if err := c.client.Del(ctx, c.prefix+address).Err(); err != nil {
		return fmt.Errorf("redis balance invalidate: %w", err)
	}
	return nil
}
