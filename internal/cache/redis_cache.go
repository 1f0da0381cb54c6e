package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisConfigCache struct {
	client *redis.Client
}

func NewRedisConfigCache(addr string, password string, db int) *RedisConfigCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisConfigCache{client: client}
}

func (c *RedisConfigCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisConfigCache) Close() error {
	return c.client.Close()
}

func (c *RedisConfigCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisConfigCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, cacheKey(key), value, ttl).Err()
}

func (c *RedisConfigCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, cacheKey(key)).Err()
}

func cacheKey(key string) string {
	return "sanse:config:" + key
}
