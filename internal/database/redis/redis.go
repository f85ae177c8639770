package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"mistake-service/internal/config"
)

// NewClient returns nil when no address is configured
func NewClient(cfg config.RedisConfig, log logrus.FieldLogger) *redis.Client {
	if cfg.Address == "" {
		log.Warn("Redis address is empty, delivery deduplication is disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("error connecting to Redis")
	}
	return client
}
