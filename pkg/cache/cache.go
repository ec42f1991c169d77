// Package cache is a JSON read-through cache in front of project reads.
// Redis is optional: without it every lookup misses and writes are dropped.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "fiscal:"

// ProjectKey caches a single project.
func ProjectKey(id uuid.UUID) string { return keyPrefix + "project:" + id.String() }

// HistoryKey caches the approval history of a project at one workflow
// version. A committed transition bumps the version, so older entries are
// never read again and expire with the TTL.
func HistoryKey(id uuid.UUID, version int64) string {
	return fmt.Sprintf("%shistory:%s:%d", keyPrefix, id, version)
}

// SummaryKey caches the portal-wide budget summary.
const SummaryKey = keyPrefix + "summary"

// ProjectKeys returns every key derived from one project, including the summary.
func ProjectKeys(id uuid.UUID) []string {
	return []string{ProjectKey(id), SummaryKey}
}

// Cache stores JSON values by key.
type Cache interface {
	// Get decodes the value at key into dst. It reports false on a miss.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, keys ...string) error
}

// New returns a Redis-backed cache, or a no-op cache when client is nil.
func New(client *redis.Client, ttl time.Duration, logger *zap.Logger) Cache {
	if client == nil {
		return Noop{}
	}
	return &redisCache{client: client, ttl: ttl, logger: logger.Named("cache")}
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func (c *redisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// A value written by an older build is treated as a miss and dropped.
		c.logger.Warn("Discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Noop is the cache used when Redis is not configured.
type Noop struct{}

func (Noop) Get(context.Context, string, any) (bool, error) { return false, nil }
func (Noop) Set(context.Context, string, any) error         { return nil }
func (Noop) Delete(context.Context, ...string) error        { return nil }

var (
	_ Cache = (*redisCache)(nil)
	_ Cache = Noop{}
)
