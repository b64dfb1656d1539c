package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweetcrumb/storefront/pkg/redis/redistest"
)

func TestIncrWithTTLStartsWindowOnce(t *testing.T) {
	ctx := context.Background()
	c, mem := redistest.New()
	key := c.RateLimitKey("signin:ip:10.0.0.1")

	for want := int64(1); want <= 3; want++ {
		n, err := c.IncrWithTTL(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	assert.Equal(t, time.Minute, mem.TTL(key))
}

func TestIncrWithTTLReportsExpireFailure(t *testing.T) {
	c, mem := redistest.New()
	mem.FailWith("expire", errors.New("connection reset"))

	n, err := c.IncrWithTTL(context.Background(), "k", time.Minute)
	assert.Equal(t, int64(1), n)
	assert.ErrorContains(t, err, "connection reset")
}

func TestCartRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mem := redistest.New()
	key := c.CartKey("token-1")

	require.NoError(t, c.Set(ctx, key, `{"items":[]}`, time.Hour))
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, got)
	assert.Equal(t, time.Hour, mem.TTL(key))

	require.NoError(t, c.Del(ctx, key))
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, goredis.Nil)
}

func TestSetNXFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	c, _ := redistest.New()
	key := c.IdempotencyKey("stripe-webhook", "evt_1")

	first, err := c.SetNX(ctx, key, "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := c.SetNX(ctx, key, "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestWrappedClientPingsAndCloses(t *testing.T) {
	c, mem := redistest.New()
	assert.NoError(t, c.Ping(context.Background()))

	mem.FailWith("ping", errors.New("down"))
	assert.Error(t, c.Ping(context.Background()))
	assert.NoError(t, c.Close())
}
