package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"orderdesk/backend/internal/domain"
)

type RedisDaySalesCache struct {
	client *redis.Client
}

func NewRedisDaySalesCache(addr string, password string, db int) *RedisDaySalesCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisDaySalesCache{client: client}
}

func (c *RedisDaySalesCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisDaySalesCache) Close() error {
	return c.client.Close()
}

func (c *RedisDaySalesCache) Get(ctx context.Context, key string) (*domain.DaySales, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var row domain.DaySales
	if err := json.Unmarshal([]byte(val), &row); err != nil {
		return nil, false, err
	}
	return &row, true, nil
}

func (c *RedisDaySalesCache) Set(ctx context.Context, key string, value *domain.DaySales, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisDaySalesCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
