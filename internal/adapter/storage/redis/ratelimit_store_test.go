package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitStore_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	now := time.Unix(1_800_000_000, 0)
	store := NewRateLimitStore(client)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("allows requests within limit", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			result, err := store.Allow(ctx, "xion1a:reconcile", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, result.Allowed, "request %d should be allowed", i)
			assert.Equal(t, int64(3), result.Limit)
			assert.Equal(t, 3-i, result.Remaining)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		result, err := store.Allow(ctx, "xion1a:reconcile", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, int64(0), result.Remaining)
	})

	t.Run("different keys are independent", func(t *testing.T) {
		result, err := store.Allow(ctx, "xion1b:reconcile", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, int64(4), result.Remaining)
	})

	t.Run("next window resets the counter", func(t *testing.T) {
		now = now.Add(time.Minute)

		result, err := store.Allow(ctx, "xion1a:reconcile", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, int64(2), result.Remaining)
	})

	t.Run("sets ResetAt to the window boundary", func(t *testing.T) {
		result, err := store.Allow(ctx, "xion1c:transfers", 10, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, (now.Unix()/60+1)*60, result.ResetAt)
	})

	t.Run("counter keys expire", func(t *testing.T) {
		_, err := store.Allow(ctx, "xion1d:transfers", 10, time.Minute)
		require.NoError(t, err)
		key := "ratelimit:xion1d:transfers:" + strconv.FormatInt(now.Unix()/60, 10)
		assert.Equal(t, 61*time.Second, mr.TTL(key))
	})
}
