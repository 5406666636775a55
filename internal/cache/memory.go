// Package cache содержит in-memory кеш с TTL и подключение к Redis.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryCache хранит значения в памяти процесса до истечения TTL.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]cacheEntry
	now   func() time.Time
}

type cacheEntry struct {
	data      interface{}
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[string]cacheEntry),
		now:   time.Now,
	}
}

// Get возвращает значение, если оно не истекло.
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.items[key]
	if !ok || c.now().After(entry.expiresAt) {
		// истёкшие удаляет Sweep
		return nil, false
	}
	return entry.data, true
}

// Set сохраняет значение на ttl.
func (c *MemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = cacheEntry{data: value, expiresAt: c.now().Add(ttl)}
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// InvalidateByPrefix удаляет все ключи с префиксом.
func (c *MemoryCache) InvalidateByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

// GetOrSet возвращает значение из кеша или вычисляет и сохраняет его.
// Ошибка fn не кешируется.
func (c *MemoryCache) GetOrSet(key string, ttl time.Duration, fn func() (interface{}, error)) (interface{}, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err := fn()
	if err != nil {
		return nil, err
	}
	c.Set(key, value, ttl)
	return value, nil
}

// Sweep удаляет истёкшие записи и возвращает их число.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.items {
		if now.After(entry.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Run периодически чистит кеш до отмены ctx.
func (c *MemoryCache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
