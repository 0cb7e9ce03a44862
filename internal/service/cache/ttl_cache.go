package cache

import (
	"sync"
	"time"
)

type item struct {
	b   []byte
	exp time.Time
}

// TTLCache is the in-process BytesCache. Entries expire lazily on read; the
// key space (symbol x days x version) is small enough that no sweeper is
// needed.
type TTLCache struct {
	mu sync.RWMutex
	m  map[string]item
}

func NewTTLCache() *TTLCache {
	return &TTLCache{m: make(map[string]item)}
}

func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	c.mu.RLock()
	it, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !it.exp.IsZero() && time.Now().After(it.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return it.b, true, nil
}

// SetBytes stores value under key. A zero ttl means no expiry.
func (c *TTLCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = item{b: value, exp: exp}
	c.mu.Unlock()
	return nil
}
