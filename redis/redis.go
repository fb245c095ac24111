package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewClient connects to redis. It returns nil when the server is not reachable
// so the application keeps running without a cache.
func NewClient(ctx context.Context, addr string, log *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis not available. Running without Redis.", zap.String("addr", addr), zap.Error(err))
		client.Close()
		return nil
	}

	log.Info("Redis connected successfully.", zap.String("addr", addr))
	return client
}
