package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Cache is a process-local stand-in for the redis cache. Values round-trip
// through JSON so callers see the same copy semantics as with redis.
type Cache struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time
}

type entry struct {
	b       []byte
	expires time.Time // zero means no expiry
}

func NewCache() *Cache { return &Cache{m: map[string]entry{}, now: time.Now} }

func (c *Cache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	e, ok := c.m[key]
	if ok && !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.m, key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(e.b, dst)
}

func (c *Cache) Set(_ context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e := entry{b: b}
	if ttlSec > 0 {
		e.expires = c.now().Add(time.Duration(ttlSec) * time.Second)
	}
	c.mu.Lock()
	c.m[key] = e
	c.mu.Unlock()
	return nil
}

func (c *Cache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
	return nil
}
