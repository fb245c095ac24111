package redis

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache stores JSON values under versioned keys. Writers bump a version
// counter instead of deleting keys, so stale entries simply stop being read
// and expire on their own. A Cache without a client is a no-op.
type Cache struct {
	client *redis.Client
	log    *zap.Logger
}

func NewCache(client *redis.Client, log *zap.Logger) *Cache {
	return &Cache{client: client, log: log}
}

func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get decodes the value stored at key into dest. found is false on a miss.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}

	if err := sonic.Unmarshal(data, dest); err != nil {
		c.log.Warn("cache decode failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}

	data, err := sonic.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetVersion returns the current version of a key family, 0 if unset.
func (c *Cache) GetVersion(ctx context.Context, versionKey string) int64 {
	if !c.Enabled() {
		return 0
	}

	v, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache version read failed", zap.String("key", versionKey), zap.Error(err))
		}
		return 0
	}
	return v
}

// IncrementVersion invalidates every key built from the previous version.
func (c *Cache) IncrementVersion(ctx context.Context, versionKey string) {
	if !c.Enabled() {
		return
	}

	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		c.log.Warn("cache version bump failed", zap.String("key", versionKey), zap.Error(err))
	}
}
