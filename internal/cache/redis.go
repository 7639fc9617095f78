package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ddx-ranking-engine/internal/domain"
)

const keyPrefix = "ddx:rank:"

// cachedResult wraps a result with its cache metadata
type cachedResult struct {
	Result   *domain.RankResult `json:"result"`
	CachedAt time.Time          `json:"cached_at"`
}

// RedisCache is the shared tier, storing JSON-encoded results with a TTL
type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisCache connects to the Redis server at url and verifies the
// connection
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisCacheFromClient(client, ttl), nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{redis: client, ttl: ttl}
}

// Fetch returns the cached result for key. A miss is (nil, false, nil).
func (c *RedisCache) Fetch(ctx context.Context, key string) (*domain.RankResult, bool, error) {
	val, err := c.redis.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached ranking: %w", err)
	}

	var cached cachedResult
	if err := json.Unmarshal(val, &cached); err != nil || cached.Result == nil {
		c.redis.Del(ctx, keyPrefix+key)
		return nil, false, nil
	}
	return cached.Result, true, nil
}

// Store writes result under key with the configured TTL
func (c *RedisCache) Store(ctx context.Context, key string, result *domain.RankResult) error {
	data, err := json.Marshal(cachedResult{Result: result, CachedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal ranking for cache: %w", err)
	}
	return c.redis.Set(ctx, keyPrefix+key, data, c.ttl).Err()
}

// Ping checks if the Redis connection is alive
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
