package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"docadmin/internal/core"
	"docadmin/internal/settings"
	"docadmin/internal/storage/cache"
)

// Dial connects to MongoDB using the connection profile and verifies the connection.
func Dial(ctx context.Context, conn settings.Connection) (*mongo.Client, error) {
	if err := conn.Validate(); err != nil {
		return nil, err
	}

	clientOptions := options.Client().
		SetHosts([]string{conn.Address()}).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)
	if conn.HasCredentials() {
		clientOptions.SetAuth(options.Credential{
			Username: conn.Username,
			Password: conn.Password,
		})
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	core.Info("Connected to MongoDB",
		zap.String("address", conn.Address()),
		zap.String("database", conn.Database),
		zap.Bool("authenticated", conn.HasCredentials()))

	return client, nil
}

// NewCache builds the page cache selected by cfg. The none backend returns nil.
func NewCache(ctx context.Context, cfg settings.CacheConfig) (cache.Cache[*Page], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cacheOptions := cache.DefaultCacheOptions()
	cacheOptions.DefaultTTL = cfg.TTL
	cacheOptions.MaxItems = cfg.MaxItems

	switch cfg.Backend {
	case settings.CacheNone:
		return nil, nil
	case settings.CacheRedis:
		redisOptions := cache.DefaultRedisCacheOptions()
		redisOptions.CacheOptions = *cacheOptions
		c, err := cache.NewRedisCache[*Page](ctx, cfg.RedisAddr, redisOptions)
		if err != nil {
			return nil, err
		}
		return c, nil
	case settings.CacheBadger:
		c, err := cache.NewBadgerCache[*Page](cfg.BadgerPath, cacheOptions)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return cache.NewMemoryCache[*Page](cacheOptions), nil
	}
}
