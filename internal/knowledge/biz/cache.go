package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/finsight-io/finsight/internal/model"
	"github.com/finsight-io/finsight/pkg/utils/json"
)

// SearchCacheConfig tunes the Redis-backed search result cache.
type SearchCacheConfig struct {
	// Enabled toggles caching.
	Enabled bool
	// TTL is the cache entry lifetime.
	TTL time.Duration
	// KeyPrefix namespaces cache keys.
	KeyPrefix string
}

// SearchCache caches knowledge search results keyed by the query.
type SearchCache struct {
	redis  *goredis.Client
	config *SearchCacheConfig
}

// NewSearchCache creates a search result cache.
func NewSearchCache(redis *goredis.Client, config *SearchCacheConfig) *SearchCache {
	if config == nil {
		config = &SearchCacheConfig{
			Enabled:   false,
			TTL:       1 * time.Hour,
			KeyPrefix: "finsight:search:",
		}
	}
	return &SearchCache{
		redis:  redis,
		config: config,
	}
}

// cacheKey hashes the serialized query so every request field,
// including overridden topK and minScore, contributes to the key.
func (c *SearchCache) cacheKey(q *SearchQuery) string {
	data, err := json.Marshal(q)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", q))
	}
	hash := sha256.Sum256(data)
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// Get returns cached results for the query, or (nil, nil) on a miss.
func (c *SearchCache) Get(ctx context.Context, q *SearchQuery) ([]*model.KnowledgeResult, error) {
	if !c.config.Enabled || c.redis == nil {
		return nil, nil
	}

	key := c.cacheKey(q)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			logger.Debugw("search cache miss", "symbol", q.Symbol, "key", key)
			return nil, nil
		}
		logger.Warnw("failed to get from search cache", "error", err.Error(), "key", key)
		return nil, err
	}

	var results []*model.KnowledgeResult
	if err := json.Unmarshal(data, &results); err != nil {
		logger.Warnw("failed to unmarshal cached results", "error", err.Error(), "key", key)
		// Drop the corrupt entry.
		_ = c.redis.Del(ctx, key).Err()
		return nil, err
	}

	logger.Infow("search cache hit", "symbol", q.Symbol, "key", key, "results", len(results))
	return results, nil
}

// Set stores results for the query.
func (c *SearchCache) Set(ctx context.Context, q *SearchQuery, results []*model.KnowledgeResult) error {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}

	key := c.cacheKey(q)
	data, err := json.Marshal(results)
	if err != nil {
		logger.Warnw("failed to marshal results for caching", "error", err.Error())
		return err
	}

	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set search cache", "error", err.Error(), "key", key)
		return err
	}

	logger.Debugw("cached search results", "symbol", q.Symbol, "key", key, "ttl", c.config.TTL)
	return nil
}

// Clear removes every cached search result.
func (c *SearchCache) Clear(ctx context.Context) error {
	if !c.config.Enabled || c.redis == nil {
		return nil
	}

	pattern := c.config.KeyPrefix + "*"
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()

	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
		} else {
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		logger.Warnw("error during cache scan", "error", err.Error())
		return err
	}

	logger.Infow("cleared search cache", "deleted_count", deleted)
	return nil
}

// GetStats reports cache key counts and configuration.
func (c *SearchCache) GetStats(ctx context.Context) (map[string]any, error) {
	if !c.config.Enabled || c.redis == nil {
		return map[string]any{"enabled": false}, nil
	}

	pattern := c.config.KeyPrefix + "*"
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()

	keyCount := 0
	for iter.Next(ctx) {
		keyCount++
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return map[string]any{
		"enabled":    true,
		"key_count":  keyCount,
		"ttl":        c.config.TTL.String(),
		"key_prefix": c.config.KeyPrefix,
	}, nil
}
