package product

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Cache is the read-through response cache. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

const (
	listKey       = "products"
	itemKeyPrefix = "product:"
)

func ListKey() string { return listKey }

func ItemKey(id int64) string { return itemKeyPrefix + strconv.FormatInt(id, 10) }

type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NopCache) Set(context.Context, string, []byte) error         { return nil }
func (NopCache) Delete(context.Context, ...string) error           { return nil }

type memEntry struct {
	value   []byte
	expires time.Time
}

// MemCache is an in-process Cache. A zero TTL keeps entries until deleted.
type MemCache struct {
	mu  sync.RWMutex
	m   map[string]memEntry
	ttl time.Duration
	now func() time.Time
}

func NewMemCache(ttl time.Duration) *MemCache {
	return &MemCache{m: map[string]memEntry{}, ttl: ttl, now: time.Now}
}

func (c *MemCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.mu.Lock()
		if cur, ok := c.m[key]; ok && cur.expires.Equal(e.expires) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *MemCache) Set(_ context.Context, key string, value []byte) error {
	e := memEntry{value: append([]byte(nil), value...)}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	c.m[key] = e
	c.mu.Unlock()
	return nil
}

func (c *MemCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.m, k)
	}
	c.mu.Unlock()
	return nil
}
