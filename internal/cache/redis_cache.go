package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"notakasir/backend/internal/domain"
)

type RedisBillCache struct {
	client *redis.Client
}

func NewRedisBillCache(addr string, password string, db int) *RedisBillCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisBillCache{client: client}
}

func (c *RedisBillCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisBillCache) Close() error {
	return c.client.Close()
}

func key(billNo string) string {
	return "bill:" + billNo
}

func (c *RedisBillCache) Get(ctx context.Context, billNo string) (*domain.PersistedBillRecord, bool, error) {
	val, err := c.client.Get(ctx, key(billNo)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var rec domain.PersistedBillRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (c *RedisBillCache) Set(ctx context.Context, billNo string, rec *domain.PersistedBillRecord, ttl time.Duration) error {
	if rec == nil {
		return nil
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(billNo), payload, ttl).Err()
}
