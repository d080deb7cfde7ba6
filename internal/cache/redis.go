// Package cache provides a Redis-backed verdict cache for the classification
// cascade. Entries expire after a TTL so verdicts never outlive the day they
// were computed for by much.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/foodshare/internal/model"
)

const (
	// DefaultTTL bounds how long a verdict is reused.
	DefaultTTL = 24 * time.Hour

	// keyPrefix namespaces cache keys in Redis.
	keyPrefix = "foodshare:"
)

// RedisCache stores verdicts as JSON strings. Redis failures are logged and
// treated as misses.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache wraps an existing client.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// Open parses a redis:// URL, connects and pings.
func Open(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "cache: parse redis url")
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrap(err, "cache: ping redis")
	}
	return NewRedisCache(rdb, ttl), nil
}

// Get returns the cached verdict for key, if any.
func (c *RedisCache) Get(ctx context.Context, key string) (model.Verdict, bool) {
	data, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("cache: get failed", zap.String("key", key), zap.Error(err))
		}
		return model.Verdict{}, false
	}

	v, err := decode(data)
	if err != nil {
		zap.L().Warn("cache: discarding unreadable entry", zap.String("key", key), zap.Error(err))
		return model.Verdict{}, false
	}
	return v, true
}

// Set stores v under key with the cache TTL.
func (c *RedisCache) Set(ctx context.Context, key string, v model.Verdict) {
	data, err := json.Marshal(v)
	if err != nil {
		zap.L().Warn("cache: encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		zap.L().Warn("cache: set failed", zap.String("key", key), zap.Error(err))
	}
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// decode rejects entries that do not carry a usable verdict.
func decode(data []byte) (model.Verdict, error) {
	var v model.Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		return model.Verdict{}, eris.Wrap(err, "cache: decode verdict")
	}
	if !v.Status.Valid() || v.Source.Tier == "" {
		return model.Verdict{}, eris.New("cache: incomplete verdict")
	}
	return v, nil
}
