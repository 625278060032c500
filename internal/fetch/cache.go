package fetch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix — префикс ключей кэша сырых ответов.
const KeyPrefix = "etlflows:raw:"

// Cache — хранилище сырых ответов.
type Cache interface {
	// Get возвращает (nil, false, nil), если ключа нет.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache — Cache поверх Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache создаёт RedisCache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// NewRedisClient разбирает URL вида redis://host:port/db.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// Get реализует Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set реализует Cache.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// CachedFetcher кэширует успешные ответы Fetcher.
//
// Ошибки кэша не ломают загрузку: они логируются, и запрос идёт в источник.
// Ответы с ошибкой не кэшируются.
type CachedFetcher struct {
	next   Fetcher
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedFetcher создаёт CachedFetcher.
func NewCachedFetcher(next Fetcher, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedFetcher{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("component", "fetch-cache"),
	}
}

// Fetch реализует Fetcher.
func (f *CachedFetcher) Fetch(ctx context.Context, repository string) ([]byte, error) {
	key := KeyPrefix + repository

	data, ok, err := f.cache.Get(ctx, key)
	switch {
	case err != nil:
		f.logger.Warn("cache get failed, bypassing", "key", key, "error", err)
	case ok:
		f.logger.Debug("cache hit", "key", key)
		return data, nil
	}

	data, err = f.next.Fetch(ctx, repository)
	if err != nil {
		return nil, err
	}

	if err := f.cache.Set(ctx, key, data, f.ttl); err != nil {
		f.logger.Warn("cache set failed", "key", key, "error", err)
	}
	return data, nil
}
