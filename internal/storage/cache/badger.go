package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.mongodb.org/mongo-driver/bson"
)

// BadgerCache implements Cache with an embedded BadgerDB. Values are stored as BSON.
type BadgerCache[T any] struct {
	db      *badger.DB
	options *CacheOptions
	done    chan struct{}
	once    sync.Once
}

// NewBadgerCache opens (or creates) a BadgerDB at dbPath.
func NewBadgerCache[T any](dbPath string, options *CacheOptions) (*BadgerCache[T], error) {
	if options == nil {
		options = DefaultCacheOptions()
	}

	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	c := &BadgerCache[T]{
		db:      db,
		options: options,
		done:    make(chan struct{}),
	}
	go c.runGC(5 * time.Minute)

	return c, nil
}

// Get retrieves a value from BadgerDB
func (c *BadgerCache[T]) Get(ctx context.Context, key string) (T, error) {
	var result T

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.getKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return bson.Unmarshal(val, &result)
		})
	})

	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return result, ErrCacheMiss
		}
		if errors.Is(err, badger.ErrDBClosed) {
			return result, ErrCacheClosed
		}
		return result, fmt.Errorf("failed to get from cache: %w", err)
	}

	return result, nil
}

// Set stores a value in BadgerDB
func (c *BadgerCache[T]) Set(ctx context.Context, key string, data T, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}

	value, err := bson.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	ttl = resolveTTL(ttl, c.options)
	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(c.getKey(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to set in cache: %w", err)
	}

	return nil
}

// Delete removes a key from BadgerDB
func (c *BadgerCache[T]) Delete(ctx context.Context, key string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(c.getKey(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

// Clear removes every key with this cache's prefix
func (c *BadgerCache[T]) Clear(ctx context.Context) error {
	return c.db.DropPrefix([]byte(c.options.KeyPrefix))
}

// Close stops GC and closes the database
func (c *BadgerCache[T]) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.db.Close()
	})
	return err
}

func (c *BadgerCache[T]) getKey(key string) []byte {
	return []byte(c.options.KeyPrefix + key)
}

// runGC reclaims value log space until the cache is closed
func (c *BadgerCache[T]) runGC(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			// Run again while at least half of a log file can be reclaimed
			for c.db.RunValueLogGC(0.5) == nil {
			}
		}
	}
}
