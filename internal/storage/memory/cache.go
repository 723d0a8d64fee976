package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type entry struct {
	val []byte
	exp time.Time
}

// Cache is the in-process stand-in for the Redis cache and counter. Values
// round-trip through JSON so callers get the same copy semantics as Redis.
type Cache struct {
	mu       sync.Mutex
	data     map[string]entry
	counters map[string]int64
}

func NewCache() *Cache {
	return &Cache{data: map[string]entry{}, counters: map[string]int64{}}
}

func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	e, ok := c.data[key]
	if ok && !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(c.data, key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(e.val, dst)
}

func (c *Cache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e := entry{val: b}
	if ttlSec > 0 {
		e.exp = time.Now().Add(time.Duration(ttlSec) * time.Second)
	}
	c.mu.Lock()
	c.data[key] = e
	c.mu.Unlock()
	return nil
}

func (c *Cache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

func (c *Cache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}
