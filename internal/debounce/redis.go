// Package debounce suppresses repeated engine triggers across instances
package debounce

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const keyPrefix = "adherence:trigger:"

// NewRedisClient creates a Redis client from connection settings
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// RedisDebouncer grants a trigger key once per window using SET NX
type RedisDebouncer struct {
	client *redis.Client
	window time.Duration
	logger *zap.Logger
}

// NewRedisDebouncer creates a new RedisDebouncer
func NewRedisDebouncer(client *redis.Client, window time.Duration, logger *zap.Logger) *RedisDebouncer {
	return &RedisDebouncer{
		client: client,
		window: window,
		logger: logger,
	}
}

// Acquire reports whether the caller may run the trigger identified by key.
// It returns false while an earlier acquisition of the key is still inside
// the window.
func (d *RedisDebouncer) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), d.window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire debounce key: %w", err)
	}
	if !ok {
		d.logger.Debug("debounce key held", zap.String("key", key))
	}
	return ok, nil
}

// Release drops the key so the next trigger runs immediately
func (d *RedisDebouncer) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release debounce key: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (d *RedisDebouncer) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}
