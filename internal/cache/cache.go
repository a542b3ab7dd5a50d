// Package cache implements the request-level response cache keyed by
// normalized query plus options (spec §4.7), backed by Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"dev.helix.agent/council/internal/models"
)

// Stats reports the cache's current configuration and size (spec §4.7).
type Stats struct {
	Size      int64  `json:"size"`
	Enabled   bool   `json:"enabled"`
	TTL       int    `json:"ttl"`
	Directory string `json:"directory"`
}

// ResponseCache wraps a Redis client with the pipeline's query-keyed
// get/set/delete/clear operations. Errors from Get, Set, Delete and Stats
// are logged and swallowed, so a cache failure never fails a request
// (spec §4.7); Clear and Close return their errors to the caller.
type ResponseCache struct {
	client    *redis.Client
	log       *logrus.Logger
	enabled   bool
	ttl       time.Duration
	directory string
}

// New builds a ResponseCache against the Redis server at addr/db.
func New(addr string, db int, enabled bool, ttl time.Duration, directory string, log *logrus.Logger) *ResponseCache {
	return &ResponseCache{
		client:    redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		log:       log,
		enabled:   enabled,
		ttl:       ttl,
		directory: directory,
	}
}

// NewWithClient builds a ResponseCache around an already-constructed Redis
// client, for tests that wire a miniredis-backed client directly.
func NewWithClient(client *redis.Client, enabled bool, ttl time.Duration, directory string, log *logrus.Logger) *ResponseCache {
	return &ResponseCache{client: client, log: log, enabled: enabled, ttl: ttl, directory: directory}
}

// Key builds the deterministic cache key for query+options: "query:" plus
// the hex SHA-256 of the canonical JSON encoding of
// {query: lower(trim(query)), options}.
func Key(query string, options models.QueryOptions) string {
	canonicalInput := struct {
		Query   string               `json:"query"`
		Options models.QueryOptions  `json:"options"`
	}{
		Query:   strings.ToLower(strings.TrimSpace(query)),
		Options: options,
	}
	encoded, _ := json.Marshal(canonicalInput)
	sum := sha256.Sum256(encoded)
	return "query:" + hex.EncodeToString(sum[:])
}

// Get looks up a cached PipelineResult for query+options. It returns
// (result, true) on a hit, or (zero value, false) on a miss or any cache
// error.
func (c *ResponseCache) Get(ctx context.Context, query string, options models.QueryOptions) (models.PipelineResult, bool) {
	if !c.enabled {
		return models.PipelineResult{}, false
	}

	raw, err := c.client.Get(ctx, Key(query, options)).Result()
	if err == redis.Nil {
		return models.PipelineResult{}, false
	}
	if err != nil {
		c.log.WithError(err).Warn("cache get failed")
		return models.PipelineResult{}, false
	}

	var result models.PipelineResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.log.WithError(err).Warn("cache entry unmarshal failed")
		return models.PipelineResult{}, false
	}
	return result, true
}

// Set stores result under query+options' key, stamping Metadata.CachedAt.
// Failures are logged, never propagated.
func (c *ResponseCache) Set(ctx context.Context, query string, options models.QueryOptions, result models.PipelineResult) {
	if !c.enabled {
		return
	}

	result.Metadata.CacheHit = false
	result.Metadata.CachedAt = time.Now().UTC()

	encoded, err := json.Marshal(result)
	if err != nil {
		c.log.WithError(err).Warn("cache entry marshal failed")
		return
	}

	if err := c.client.Set(ctx, Key(query, options), encoded, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("cache set failed")
	}
}

// Delete removes the cached entry for query+options, if any.
func (c *ResponseCache) Delete(ctx context.Context, query string, options models.QueryOptions) {
	if err := c.client.Del(ctx, Key(query, options)).Err(); err != nil {
		c.log.WithError(err).Warn("cache delete failed")
	}
}

// Clear flushes every cached response.
func (c *ResponseCache) Clear(ctx context.Context) error {
	if err := c.client.FlushDB(ctx).Err(); err != nil {
		c.log.WithError(err).Error("cache clear failed")
		return err
	}
	c.log.Info("cache cleared")
	return nil
}

// Stats reports the cache's current size and configuration.
func (c *ResponseCache) Stats(ctx context.Context) Stats {
	size, err := c.client.DBSize(ctx).Result()
	if err != nil {
		c.log.WithError(err).Warn("failed to get cache stats")
		size = 0
	}
	return Stats{
		Size:      size,
		Enabled:   c.enabled,
		TTL:       int(c.ttl.Seconds()),
		Directory: c.directory,
	}
}

// Close releases the underlying Redis connection.
func (c *ResponseCache) Close() error {
	return c.client.Close()
}
