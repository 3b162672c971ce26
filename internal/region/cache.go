package region

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	sharedredis "loremap-server/internal/shared/redis"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "regions:"

var cacheKeys = []string{
	cacheKeyPrefix + string(UserTypeFree),
	cacheKeyPrefix + string(UserTypeSignedIn),
	cacheKeyPrefix + string(UserTypePremium),
}

// Cache stores the visibility-filtered region list per user tier. A nil
// Cache (Redis disabled or unreachable) bypasses caching entirely; cache
// failures degrade to direct store reads and are never surfaced.
type Cache struct {
	client *sharedredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(client *sharedredis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *Cache) Get(ctx context.Context, userType UserType) ([]Region, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, cacheKeyPrefix+string(userType)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Region cache read failed", "component", "region_cache", "user_type", userType, "error", err)
		}
		return nil, false
	}

	var regions []Region
	if err := json.Unmarshal(data, &regions); err != nil {
		c.logger.Warn("Region cache entry corrupt, discarding", "component", "region_cache", "user_type", userType, "error", err)
		return nil, false
	}
	return regions, true
}

func (c *Cache) Set(ctx context.Context, userType UserType, regions []Region) {
	if c == nil {
		return
	}

	data, err := json.Marshal(regions)
	if err != nil {
		c.logger.Warn("Failed to encode regions for cache", "component", "region_cache", "error", err)
		return
	}

	if err := c.client.Set(ctx, cacheKeyPrefix+string(userType), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Region cache write failed", "component", "region_cache", "user_type", userType, "error", err)
	}
}

// Invalidate drops every tier's entry; called on any region write.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}

	if err := c.client.Del(ctx, cacheKeys...).Err(); err != nil {
		c.logger.Warn("Region cache invalidation failed", "component", "region_cache", "error", err)
	}
}
