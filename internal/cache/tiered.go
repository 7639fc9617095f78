package cache

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/domain"
)

// Remote is a shared cache tier that may fail
type Remote interface {
	Fetch(ctx context.Context, key string) (*domain.RankResult, bool, error)
	Store(ctx context.Context, key string, result *domain.RankResult) error
}

// TieredCache checks the memory tier first and falls back to the remote tier,
// promoting remote hits into memory. Remote failures degrade to misses.
type TieredCache struct {
	memory *MemoryCache
	remote Remote
	logger *logrus.Logger
}

// NewTieredCache creates a new TieredCache. remote may be nil.
func NewTieredCache(memory *MemoryCache, remote Remote, logger *logrus.Logger) *TieredCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &TieredCache{memory: memory, remote: remote, logger: logger}
}

// New builds the cache described by config. An unreachable Redis server is
// logged and the cache runs memory-only.
func New(config domain.CacheConfig, logger *logrus.Logger) *TieredCache {
	if logger == nil {
		logger = logrus.New()
	}
	memory := NewMemoryCache(config.MaxItems, config.TTL)
	if config.RedisURL == "" {
		return NewTieredCache(memory, nil, logger)
	}

	remote, err := NewRedisCache(config.RedisURL, config.TTL)
	if err != nil {
		logger.WithError(err).Warn("Redis cache unavailable, using memory cache only")
		return NewTieredCache(memory, nil, logger)
	}
	logger.Info("Redis cache tier enabled")
	return NewTieredCache(memory, remote, logger)
}

// Get returns the cached result for key
func (t *TieredCache) Get(ctx context.Context, key string) (*domain.RankResult, bool) {
	if result, ok := t.memory.Get(ctx, key); ok {
		return result, true
	}
	if t.remote == nil {
		return nil, false
	}

	result, ok, err := t.remote.Fetch(ctx, key)
	if err != nil {
		t.logger.WithError(err).WithField("key", key).Warn("Remote cache lookup failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	_ = t.memory.Set(ctx, key, result)
	return result, true
}

// Set writes result to every tier. A remote failure is returned after the
// memory tier has been updated.
func (t *TieredCache) Set(ctx context.Context, key string, result *domain.RankResult) error {
	_ = t.memory.Set(ctx, key, result)
	if t.remote == nil {
		return nil
	}
	return t.remote.Store(ctx, key, result)
}

// Close releases the remote tier when it holds a connection
func (t *TieredCache) Close() error {
	if closer, ok := t.remote.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
