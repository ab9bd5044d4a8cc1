package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"badminton_club/internal/apperr"
)

// RedisCache backs the fee quote cache and the per-record write locks.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(redisURL string, log *zap.Logger) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Info("redis connection established")
	return &RedisCache{client: client}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// SetNX sets a value only if key doesn't exist
func (c *RedisCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	return c.client.SetNX(ctx, key, data, expiration).Result()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Cache is what GetOrSet needs from a backing store.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// GetOrSet returns the cached value for key, or calls fn and caches its result.
// A nil cache always calls fn.
func GetOrSet[T any](c Cache, ctx context.Context, key string, expiration time.Duration, fn func() (T, error)) (T, error) {
	var result T

	if c != nil {
		if err := c.Get(ctx, key, &result); err == nil {
			return result, nil
		}
	}

	result, err := fn()
	if err != nil {
		return result, err
	}

	if c != nil {
		// cache write failures only cost a recomputation
		_ = c.Set(ctx, key, result, expiration)
	}
	return result, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Acquire takes the lock named key for at most ttl. Held locks fail fast with
// a Conflict error instead of waiting.
func (c *RedisCache) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, lockPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, apperr.Internal("acquire lock", err)
	}
	if !ok {
		return nil, apperr.Conflict("%s is being modified by another operation, retry shortly", key)
	}

	return func() {
		// the caller's ctx may already be cancelled; an unreleased lock expires after ttl
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, c.client, []string{lockPrefix + key}, token).Err()
	}, nil
}
