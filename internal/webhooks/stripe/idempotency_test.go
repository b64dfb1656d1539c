package stripewebhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/redis/redistest"
)

func TestGuardSeenOnlyAfterMark(t *testing.T) {
	ctx := context.Background()
	client, mem := redistest.New()
	guard, err := NewIdempotencyGuard(client, time.Hour, "stripe-webhook")
	require.NoError(t, err)

	seen, err := guard.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = guard.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen, "checking alone must not claim the event")

	require.NoError(t, guard.Mark(ctx, "evt_1"))
	require.NoError(t, guard.Mark(ctx, "evt_1"))
	seen, err = guard.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, time.Hour, mem.TTL("sf:idempotency:stripe-webhook:evt_1"))
}

func TestGuardStoreFailureIsInternalError(t *testing.T) {
	client, mem := redistest.New()
	guard, err := NewIdempotencyGuard(client, time.Minute, "stripe-webhook")
	require.NoError(t, err)

	mem.FailWith("get", errors.New("connection refused"))
	_, err = guard.Seen(context.Background(), "evt_1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))

	mem.FailWith("setnx", errors.New("connection refused"))
	err = guard.Mark(context.Background(), "evt_1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestGuardValidation(t *testing.T) {
	client, _ := redistest.New()
	for name, build := range map[string]func() (*IdempotencyGuard, error){
		"nil store":    func() (*IdempotencyGuard, error) { return NewIdempotencyGuard(nil, time.Minute, "s") },
		"negative ttl": func() (*IdempotencyGuard, error) { return NewIdempotencyGuard(client, -time.Second, "s") },
		"blank scope":  func() (*IdempotencyGuard, error) { return NewIdempotencyGuard(client, time.Minute, "") },
	} {
		_, err := build()
		assert.Error(t, err, name)
	}

	guard, err := NewIdempotencyGuard(client, 0, "s")
	require.NoError(t, err)
	_, err = guard.Seen(context.Background(), "")
	assert.Error(t, err)
	assert.Error(t, guard.Mark(context.Background(), ""))
}
