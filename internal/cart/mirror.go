package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/sweetcrumb/storefront/pkg/localstore"
)

// Mirror persists a cart's lines under an opaque key so the cart survives
// reloads. Implementations must treat a missing key as an empty cart.
type Mirror interface {
	Load(ctx context.Context, key string) ([]LineItem, error)
	Save(ctx context.Context, key string, items []LineItem) error
	Delete(ctx context.Context, key string) error
}

type mirrorDocument struct {
	Items []LineItem `json:"items"`
}

func encodeLines(items []LineItem) ([]byte, error) {
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(mirrorDocument{Items: items})
}

// decodeLines treats corrupt data as an empty cart.
func decodeLines(raw []byte) []LineItem {
	var doc mirrorDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	return doc.Items
}

// MemoryMirror keeps carts in process memory.
type MemoryMirror struct {
	mu    sync.Mutex
	carts map[string][]byte
	locks keyLocks
}

func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{carts: map[string][]byte{}}
}

func (m *MemoryMirror) Load(_ context.Context, key string) ([]LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.carts[key]
	if !ok {
		return nil, nil
	}
	return decodeLines(raw), nil
}

func (m *MemoryMirror) Save(_ context.Context, key string, items []LineItem) error {
	raw, err := encodeLines(items)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[key] = raw
	return nil
}

func (m *MemoryMirror) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, key)
	return nil
}

// LocalMirror keeps the cart in the terminal client's embedded store.
type LocalMirror struct {
	store *localstore.Store
	locks keyLocks
}

func NewLocalMirror(store *localstore.Store) *LocalMirror {
	return &LocalMirror{store: store}
}

func localKey(key string) string {
	return "cart:" + key
}

func (m *LocalMirror) Load(_ context.Context, key string) ([]LineItem, error) {
	raw, err := m.store.Get(localKey(key))
	if errors.Is(err, localstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeLines(raw), nil
}

func (m *LocalMirror) Save(_ context.Context, key string, items []LineItem) error {
	raw, err := encodeLines(items)
	if err != nil {
		return err
	}
	return m.store.Put(localKey(key), raw)
}

func (m *LocalMirror) Delete(_ context.Context, key string) error {
	return m.store.Delete(localKey(key))
}

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	CartKey(cartToken string) string
}

// RedisMirror backs the anonymous HTTP cart. Keys are per-browser cart
// tokens, never user ids, so two browsers never share a cart.
type RedisMirror struct {
	store redisStore
	ttl   time.Duration
}

func NewRedisMirror(store redisStore, ttl time.Duration) *RedisMirror {
	return &RedisMirror{store: store, ttl: ttl}
}

func (m *RedisMirror) Load(ctx context.Context, key string) ([]LineItem, error) {
	raw, err := m.store.Get(ctx, m.store.CartKey(key))
	if errors.Is(err, redislib.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeLines([]byte(raw)), nil
}

func (m *RedisMirror) Save(ctx context.Context, key string, items []LineItem) error {
	raw, err := encodeLines(items)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, m.store.CartKey(key), string(raw), m.ttl)
}

func (m *RedisMirror) Delete(ctx context.Context, key string) error {
	return m.store.Del(ctx, m.store.CartKey(key))
}
