package cache

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisInvalidator deletes keys from a shared redis cache.
type RedisInvalidator struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisInvalidator(client *redis.Client, log *zap.Logger) *RedisInvalidator {
	return &RedisInvalidator{
		client: client,
		log:    log.Named("cache.invalidator"),
	}
}

func (r *RedisInvalidator) Invalidate(ctx context.Context, keys []Key) error {
	if len(keys) == 0 {
		return nil
	}

	raw := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		raw = append(raw, string(key))
	}
	if len(raw) == 0 {
		return nil
	}

	if err := r.client.Del(ctx, raw...).Err(); err != nil {
		r.log.Warn("cache invalidation failed", zap.Strings("keys", raw), zap.Error(err))
		return err
	}
	return nil
}
