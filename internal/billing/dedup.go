package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "fitcoach:webhook:"

// RedisDeduper keeps processed event ids for a retention window.
type RedisDeduper struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisDeduper(client *redis.Client, retention time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, retention: retention}
}

func dedupKey(vendor, eventID string) string {
	return dedupKeyPrefix + vendor + ":" + eventID
}

func (d *RedisDeduper) Seen(ctx context.Context, vendor, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, dedupKey(vendor, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check webhook event: %w", err)
	}
	return n > 0, nil
}

func (d *RedisDeduper) Mark(ctx context.Context, vendor, eventID string) error {
	if err := d.client.Set(ctx, dedupKey(vendor, eventID), 1, d.retention).Err(); err != nil {
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	return nil
}
