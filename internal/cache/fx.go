package cache

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/ledgerline/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// Module wires the redis client and the invalidator.
var Module = fx.Module("cache",
	fx.Provide(
		NewRedisClient,
		func(client *redis.Client, log *zap.Logger) Invalidator {
			return NewRedisInvalidator(client, log)
		},
	),
)
