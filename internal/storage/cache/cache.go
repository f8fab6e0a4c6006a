// Package cache provides the read cache in front of the document store.
//
// Three implementations share one interface:
//   - MemoryCache: in-process map, the default
//   - RedisCache: shared between several editor processes
//   - BadgerCache: persistent local cache that survives restarts
//
// Basic usage example:
//
//	memCache := cache.NewMemoryCache[*Page](nil)
//	defer memCache.Close()
//
//	err := memCache.Set(ctx, "players", page, time.Minute)
//	cached, err := memCache.Get(ctx, "players")
//	if errors.Is(err, cache.ErrCacheMiss) {
//	    // load from the database
//	}
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss is returned when a key is not cached or has expired
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheClosed is returned when operating on a closed cache
	ErrCacheClosed = errors.New("cache is closed")

	// ErrInvalidKey is returned for an empty key
	ErrInvalidKey = errors.New("invalid cache key")
)

// Cache stores values of type T under string keys.
type Cache[T any] interface {
	// Get returns the cached value or ErrCacheMiss.
	Get(ctx context.Context, key string) (T, error)

	// Set stores a value. A ttl of 0 uses the cache default.
	Set(ctx context.Context, key string, data T, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every key owned by this cache.
	Clear(ctx context.Context) error

	// Close releases the cache resources.
	Close() error
}

// CacheOptions holds options shared by every implementation.
type CacheOptions struct {
	// DefaultTTL applies when Set is called with ttl 0. Zero means no expiration.
	DefaultTTL time.Duration

	// MaxItems bounds the memory cache; the least recently used item is evicted. Zero means no limit.
	MaxItems int

	// KeyPrefix namespaces keys in shared backends.
	KeyPrefix string
}

// DefaultCacheOptions returns the default cache options.
func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{
		DefaultTTL: time.Minute * 5,
		MaxItems:   1000,
		KeyPrefix:  "docadmin:",
	}
}

func resolveTTL(ttl time.Duration, options *CacheOptions) time.Duration {
	if ttl <= 0 {
		return options.DefaultTTL
	}
	return ttl
}
