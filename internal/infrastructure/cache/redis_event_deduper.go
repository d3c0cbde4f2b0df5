package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streamcart/backend/internal/infrastructure/config"
)

// RedisEventDeduper records provider webhook event IDs in Redis so that
// redelivered events are detected across all server instances.
type RedisEventDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

const (
	eventDedupPrefix     = "dispute:event:"
	defaultEventDedupTTL = 72 * time.Hour
)

// NewRedisEventDeduper creates a Redis-backed event deduper from configuration.
func NewRedisEventDeduper(cfg config.RedisConfig) (*RedisEventDeduper, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.EventDedupTTL
	if ttl <= 0 {
		ttl = defaultEventDedupTTL
	}

	return &RedisEventDeduper{client: client, ttl: ttl}, nil
}

// NewRedisEventDeduperWithClient creates a deduper using an existing Redis client.
// Useful for testing or when sharing a client across components.
func NewRedisEventDeduperWithClient(client *redis.Client, ttl time.Duration) *RedisEventDeduper {
	if ttl <= 0 {
		ttl = defaultEventDedupTTL
	}
	return &RedisEventDeduper{client: client, ttl: ttl}
}

// Seen reports whether the event was already recorded, and records it if not.
// Uses SETNX with TTL so the check and the record are a single atomic operation.
func (d *RedisEventDeduper) Seen(ctx context.Context, channel, provider, eventID string) (bool, error) {
	key := eventDedupKey(channel, provider, eventID)

	set, err := d.client.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record event %s: %w", eventID, err)
	}

	// SETNX returns false when the key already existed
	return !set, nil
}

// Forget releases a recorded event so the provider's redelivery is
// processed again. Used when handling fails after the Seen mark.
func (d *RedisEventDeduper) Forget(ctx context.Context, channel, provider, eventID string) error {
	key := eventDedupKey(channel, provider, eventID)
	if err := d.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release event %s: %w", eventID, err)
	}
	return nil
}

// Close closes the Redis connection.
func (d *RedisEventDeduper) Close() error {
	return d.client.Close()
}

// Ping checks if Redis is reachable.
func (d *RedisEventDeduper) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func eventDedupKey(channel, provider, eventID string) string {
	return eventDedupPrefix + channel + ":" + provider + ":" + eventID
}
