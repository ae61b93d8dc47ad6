// Package cache holds short-lived, expiring byte values keyed by string.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store defines the cache operations the fetchers rely on.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

type entry struct {
	value []byte
	exp   time.Time
}

// Memory is an in-process Store with lazy expiry.
type Memory struct {
	mu  sync.RWMutex
	m   map[string]entry
	now Clock
}

// NewMemory creates an in-memory cache. A nil clock uses time.Now.
func NewMemory(now Clock) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{m: make(map[string]entry), now: now}
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && !c.now().Before(e.exp) {
		c.mu.Lock()
		if cur, still := c.m[key]; still && cur.exp.Equal(e.exp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = entry{value: value, exp: exp}
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired or not.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

var _ Store = (*Memory)(nil)
