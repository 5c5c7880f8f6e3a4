package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trialscout/platform/pkg/common/logger"
)

const cacheKeyPrefix = "registry:search:"

// Cache keeps mapped search responses in Redis so repeated queries skip
// the registry entirely. All operations are best-effort; a cache failure
// never fails a search.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return cacheKeyPrefix + hex.EncodeToString(sum[:16])
}

func (c *Cache) Get(ctx context.Context, query string) (SearchResult, bool) {
	if c == nil || c.client == nil {
		return SearchResult{}, false
	}
	payload, err := c.client.Get(ctx, cacheKey(query)).Bytes()
	if err != nil {
		return SearchResult{}, false
	}
	var result SearchResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return SearchResult{}, false
	}
	return result, true
}

func (c *Cache) Set(ctx context.Context, query string, result SearchResult) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(query), payload, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).Debug("registry cache write failed")
	}
}

// Clear removes every cached search response.
func (c *Cache) Clear(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, cacheKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
