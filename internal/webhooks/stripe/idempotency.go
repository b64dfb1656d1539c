package stripewebhook

import (
	"context"
	"errors"
	"time"

	redislib "github.com/redis/go-redis/v9"

	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/redis"
)

// IdempotencyGuard remembers applied event ids so redeliveries of an already
// recorded event are acknowledged without touching the ledger again.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency store is required")
	}
	if ttl < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ttl must be non-negative")
	}
	if scope == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// Seen reports whether eventID was already applied. Store failures map to
// 500 so the sender retries the delivery.
func (g *IdempotencyGuard) Seen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	_, err := g.store.Get(ctx, g.store.IdempotencyKey(g.scope, eventID))
	switch {
	case errors.Is(err, redislib.Nil):
		return false, nil
	case err != nil:
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read idempotency key")
	}
	return true, nil
}

// Mark records eventID as applied. Call it only after the ledger write has
// committed; the ledger itself ignores a second insert of the same order.
func (g *IdempotencyGuard) Mark(ctx context.Context, eventID string) error {
	if eventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	if _, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, eventID), "1", g.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set idempotency key")
	}
	return nil
}
