// Package redistest backs a storefront redis.Client with an in-memory map so
// packages can test their Redis usage without a server.
package redistest

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sweetcrumb/storefront/pkg/redis"
)

// Memory implements redis.Commands. Expiry is recorded, never enforced.
type Memory struct {
	mu      sync.Mutex
	values  map[string]string
	ttls    map[string]time.Duration
	failing map[string]error
}

// New returns a client over a fresh Memory and the Memory itself.
func New() (*redis.Client, *Memory) {
	mem := &Memory{
		values:  map[string]string{},
		ttls:    map[string]time.Duration{},
		failing: map[string]error{},
	}
	return redis.Wrap(mem, redis.DefaultKeyspace), mem
}

// FailWith makes every later call of command ("get", "set", "setnx", "incr",
// "expire", "del", "ping") return err. A nil err clears the failure.
func (m *Memory) FailWith(command string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failing, command)
		return
	}
	m.failing[command] = err
}

// Value reads key directly, bypassing failures.
func (m *Memory) Value(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// TTL is the last expiry requested for key.
func (m *Memory) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

// Keys counts the stored keys.
func (m *Memory) Keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}

func (m *Memory) Ping(context.Context) *goredis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	return goredis.NewStatusResult("PONG", m.failing["ping"])
}

func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) *goredis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing["set"]; err != nil {
		return goredis.NewStatusResult("", err)
	}
	m.store(key, value, ttl)
	return goredis.NewStatusResult("OK", nil)
}

func (m *Memory) Get(_ context.Context, key string) *goredis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing["get"]; err != nil {
		return goredis.NewStringResult("", err)
	}
	v, ok := m.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (m *Memory) SetNX(_ context.Context, key string, value any, ttl time.Duration) *goredis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing["setnx"]; err != nil {
		return goredis.NewBoolResult(false, err)
	}
	if _, taken := m.values[key]; taken {
		return goredis.NewBoolResult(false, nil)
	}
	m.store(key, value, ttl)
	return goredis.NewBoolResult(true, nil)
}

func (m *Memory) Incr(_ context.Context, key string) *goredis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing["incr"]; err != nil {
		return goredis.NewIntResult(0, err)
	}
	var n int64
	if v, ok := m.values[key]; ok {
		if _, err := fmt.Sscan(v, &n); err != nil {
			return goredis.NewIntResult(0, fmt.Errorf("ERR value is not an integer"))
		}
	}
	n++
	m.values[key] = fmt.Sprint(n)
	return goredis.NewIntResult(n, nil)
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) *goredis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing["expire"]; err != nil {
		return goredis.NewBoolResult(false, err)
	}
	if _, ok := m.values[key]; !ok {
		return goredis.NewBoolResult(false, nil)
	}
	m.ttls[key] = ttl
	return goredis.NewBoolResult(true, nil)
}

func (m *Memory) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failing["del"]; err != nil {
		return goredis.NewIntResult(0, err)
	}
	var removed int64
	for _, k := range keys {
		if _, ok := m.values[k]; ok {
			removed++
		}
		delete(m.values, k)
		delete(m.ttls, k)
	}
	return goredis.NewIntResult(removed, nil)
}

func (m *Memory) store(key string, value any, ttl time.Duration) {
	switch v := value.(type) {
	case []byte:
		m.values[key] = string(v)
	default:
		m.values[key] = fmt.Sprint(v)
	}
	if ttl > 0 {
		m.ttls[key] = ttl
	} else {
		delete(m.ttls, key)
	}
}
