package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

const (
	searchKeyPrefix = "catalog:search:"
	DefaultCacheTTL = 10 * time.Minute
)

type cacheEntry struct {
	results   []Track
	expiresAt time.Time
}

// SearchCache keeps search results in Redis, or in process memory when no
// Redis client is available.
type SearchCache struct {
	client *redislib.Client
	ttl    time.Duration

	mu   sync.RWMutex
	data map[string]cacheEntry
}

func NewSearchCache(client *redislib.Client, ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &SearchCache{
		client: client,
		ttl:    ttl,
		data:   make(map[string]cacheEntry),
	}
}

func cacheKey(query string) string {
	return searchKeyPrefix + strings.ToLower(strings.TrimSpace(query))
}

func (c *SearchCache) Get(ctx context.Context, query string) ([]Track, bool, error) {
	key := cacheKey(query)

	if c.client == nil {
		c.mu.RLock()
		entry, ok := c.data[key]
		c.mu.RUnlock()
		if !ok || time.Now().After(entry.expiresAt) {
			return nil, false, nil
		}
		return entry.results, true, nil
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var results []Track
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false, err
	}
	return results, true, nil
}

func (c *SearchCache) Set(ctx context.Context, query string, results []Track) error {
	key := cacheKey(query)

	if c.client == nil {
		c.mu.Lock()
		c.data[key] = cacheEntry{
			results:   results,
			expiresAt: time.Now().Add(c.ttl),
		}
		c.mu.Unlock()
		return nil
	}

	payload, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}
