// Package cache memoises ranking results. A bounded in-memory LRU tier with
// expiry sits in front of an optional shared Redis tier.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ddx-ranking-engine/internal/domain"
)

const (
	defaultMaxItems = 1000
	defaultTTL      = time.Hour
)

// MemoryCache is the in-process LRU tier. Values are deep-copied on the way
// in and out so callers can never mutate a cached result.
type MemoryCache struct {
	lru *expirable.LRU[string, *domain.RankResult]
}

// NewMemoryCache creates a new MemoryCache
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryCache{lru: expirable.NewLRU[string, *domain.RankResult](maxItems, nil, ttl)}
}

// Get returns a copy of the cached result for key
func (m *MemoryCache) Get(_ context.Context, key string) (*domain.RankResult, bool) {
	result, ok := m.lru.Get(key)
	if !ok {
		return nil, false
	}
	return cloneResult(result), true
}

// Set stores a copy of result under key
func (m *MemoryCache) Set(_ context.Context, key string, result *domain.RankResult) error {
	if result == nil {
		return nil
	}
	m.lru.Add(key, cloneResult(result))
	return nil
}

// Len returns the number of live entries
func (m *MemoryCache) Len() int {
	return m.lru.Len()
}

// Purge drops every entry
func (m *MemoryCache) Purge() {
	m.lru.Purge()
}

func cloneResult(r *domain.RankResult) *domain.RankResult {
	out := *r
	out.Candidates = domain.CloneCandidates(r.Candidates)
	out.Excluded = domain.CloneCandidates(r.Excluded)
	out.RedFlags = append([]domain.RedFlag(nil), r.RedFlags...)
	out.Sources = append([]domain.SourceStat(nil), r.Sources...)
	return &out
}
