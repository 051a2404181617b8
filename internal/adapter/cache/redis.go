package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"birr-rate-service/internal/domain/model"
	"birr-rate-service/pkg/logger"
)

// RedisCache shares entries between service instances. Entries carry their
// own timestamp, so keys are stored without expiry.
type RedisCache struct {
	client *redis.Client
	prefix string
	log    *logger.Logger
}

func NewRedisCache(client *redis.Client, prefix string, log *logger.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
		log:    log,
	}
}

func (c *RedisCache) key(kind model.RateKind) string {
	return c.prefix + string(kind)
}

func (c *RedisCache) Get(ctx context.Context, kind model.RateKind) (*model.CacheEntry, bool) {
	data, err := c.client.Get(ctx, c.key(kind)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("Redis get failed", "kind", kind, "error", err)
		}
		return nil, false
	}

	var entry model.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.log.Warn("Discarding corrupt cache entry", "kind", kind, "error", err)
		return nil, false
	}
	return &entry, true
}

func (c *RedisCache) Set(ctx context.Context, kind model.RateKind, entry *model.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.key(kind), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	keys := make([]string, 0, len(model.RateKinds))
	for _, kind := range model.RateKinds {
		keys = append(keys, c.key(kind))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
