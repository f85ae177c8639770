package event

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupStore remembers processed event IDs so redelivered messages are not applied twice
type DedupStore interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

const dedupKeyPrefix = "mistake-service:feedback:"

type RedisDedup struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDedup(client *redis.Client, ttl time.Duration) *RedisDedup {
	return &RedisDedup{client: client, ttl: ttl}
}

func (d *RedisDedup) key(eventID string) string {
	return dedupKeyPrefix + eventID
}

func (d *RedisDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check processed marker: %w", err)
	}
	return n > 0, nil
}

func (d *RedisDedup) MarkProcessed(ctx context.Context, eventID string) error {
	if err := d.client.Set(ctx, d.key(eventID), time.Now().Unix(), d.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set processed marker: %w", err)
	}
	return nil
}
