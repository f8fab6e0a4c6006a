package cache

import (
	"context"
	"sync"
	"time"
)

// CacheItem is an entry of the memory cache
type CacheItem[T any] struct {
	Data       T
	ExpiresAt  time.Time
	LastAccess time.Time
}

// MemoryCache implements Cache with an in-process map
type MemoryCache[T any] struct {
	items   map[string]CacheItem[T]
	mu      sync.RWMutex
	options *CacheOptions
	closed  bool
	done    chan struct{}
}

// NewMemoryCache creates a new MemoryCache and starts its expiry sweeper.
func NewMemoryCache[T any](options *CacheOptions) *MemoryCache[T] {
	if options == nil {
		options = DefaultCacheOptions()
	}

	c := &MemoryCache[T]{
		items:   make(map[string]CacheItem[T]),
		options: options,
		done:    make(chan struct{}),
	}
	go c.cleanup(time.Minute)

	return c
}

// Get retrieves a value from the cache
func (c *MemoryCache[T]) Get(ctx context.Context, key string) (T, error) {
	var empty T

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return empty, ErrCacheClosed
	}

	item, ok := c.items[key]
	if !ok {
		return empty, ErrCacheMiss
	}

	if !item.ExpiresAt.IsZero() && time.Now().After(item.ExpiresAt) {
		delete(c.items, key)
		return empty, ErrCacheMiss
	}

	item.LastAccess = time.Now()
	c.items[key] = item

	return item.Data, nil
}

// Set stores a value with an optional TTL
func (c *MemoryCache[T]) Set(ctx context.Context, key string, data T, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}

	now := time.Now()
	item := CacheItem[T]{Data: data, LastAccess: now}
	if ttl = resolveTTL(ttl, c.options); ttl > 0 {
		item.ExpiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCacheClosed
	}

	if _, exists := c.items[key]; !exists && c.options.MaxItems > 0 && len(c.items) >= c.options.MaxItems {
		c.evictOldest()
	}

	c.items[key] = item
	return nil
}

// Delete removes a key from the cache
func (c *MemoryCache[T]) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCacheClosed
	}

	delete(c.items, key)
	return nil
}

// Clear removes all keys
func (c *MemoryCache[T]) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrCacheClosed
	}

	c.items = make(map[string]CacheItem[T])
	return nil
}

// Len returns the number of cached items, expired ones included.
func (c *MemoryCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the sweeper and drops all items
func (c *MemoryCache[T]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.items = nil
	close(c.done)
	return nil
}

// evictOldest drops the least recently accessed item. Callers hold mu.
func (c *MemoryCache[T]) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for k, v := range c.items {
		if first || v.LastAccess.Before(oldestTime) {
			oldestKey = k
			oldestTime = v.LastAccess
			first = false
		}
	}

	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}

// cleanup periodically removes expired items
func (c *MemoryCache[T]) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, item := range c.items {
				if !item.ExpiresAt.IsZero() && now.After(item.ExpiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
