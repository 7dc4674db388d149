package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisTTL bounds how long an untouched session scope survives.
const DefaultRedisTTL = 48 * time.Hour

// RedisStore implements KV with one Redis hash per scope.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts *redis.Options, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisStore{client: client, prefix: "careermate:session", ttl: ttl}, nil
}

func (r *RedisStore) scopeKey(scope Scope) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, scope.UserID, scope.SessionID)
}

// GetValue returns the hash field for key.
func (r *RedisStore) GetValue(ctx context.Context, scope Scope, key string) (string, bool, error) {
	v, err := r.client.HGet(ctx, r.scopeKey(scope), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get session value %q from redis: %w", key, err)
	}
	return v, true, nil
}

// SetValue writes the hash field and refreshes the scope TTL.
func (r *RedisStore) SetValue(ctx context.Context, scope Scope, key, value string) error {
	hashKey := r.scopeKey(scope)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, hashKey, key, value)
	pipe.Expire(ctx, hashKey, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set session value %q in redis: %w", key, err)
	}
	return nil
}

// DeleteValue removes the hash field.
func (r *RedisStore) DeleteValue(ctx context.Context, scope Scope, key string) error {
	if err := r.client.HDel(ctx, r.scopeKey(scope), key).Err(); err != nil {
		return fmt.Errorf("delete session value %q from redis: %w", key, err)
	}
	return nil
}

// Ping verifies the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
