package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
)

// Locker is implemented by mirrors that can hold one cart key exclusively,
// so a load-mutate-save cycle cannot interleave with another on the same key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Update opens the cart stored under key and applies fn to it. When mirror is
// a Locker the whole cycle holds the key's lock, so concurrent requests for
// one cart apply in turn instead of overwriting each other.
func Update(ctx context.Context, mirror Mirror, key string, fn func(*Store) error) (*Store, error) {
	if locker, ok := mirror.(Locker); ok {
		unlock, err := locker.Lock(ctx, key)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		defer unlock()
	}
	s, err := Open(ctx, mirror, key)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return s, err
	}
	return s, nil
}

// keyLocks is an in-process lock per key. Entries are removed on unlock.
type keyLocks struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func (l *keyLocks) lock(ctx context.Context, key string) (func(), error) {
	for {
		l.mu.Lock()
		if l.held == nil {
			l.held = map[string]chan struct{}{}
		}
		wait, busy := l.held[key]
		if !busy {
			done := make(chan struct{})
			l.held[key] = done
			l.mu.Unlock()
			return func() {
				l.mu.Lock()
				delete(l.held, key)
				l.mu.Unlock()
				close(done)
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

const (
	redisLockTTL  = 5 * time.Second
	redisLockPoll = 20 * time.Millisecond
)

// Lock takes a short-lived Redis lock on the cart key, polling until it is
// free or ctx ends. The lock expires on its own if the holder dies.
func (m *RedisMirror) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := m.store.CartKey(key) + ":lock"
	token := uuid.NewString()

	ticker := time.NewTicker(redisLockPoll)
	defer ticker.Stop()
	for {
		ok, err := m.store.SetNX(ctx, lockKey, token, redisLockTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return func() {
		ctx := context.WithoutCancel(ctx)
		// An expired lock may already belong to another request.
		if held, err := m.store.Get(ctx, lockKey); err == nil && held == token {
			_ = m.store.Del(ctx, lockKey)
		}
	}, nil
}

func (m *MemoryMirror) Lock(ctx context.Context, key string) (func(), error) {
	return m.locks.lock(ctx, key)
}

func (m *LocalMirror) Lock(ctx context.Context, key string) (func(), error) {
	return m.locks.lock(ctx, key)
}
