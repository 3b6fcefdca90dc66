package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisClient struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis conecta y hace ping antes de devolver el cliente.
func NewRedis(ctx context.Context, cfg Config) (*redisClient, error) {
	if cfg.Addr == "" {
		return nil, errors.New("cache: redis addr is required")
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dial,
	})

	pctx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis %s: %w", cfg.Addr, err)
	}
	return &redisClient{rdb: rdb, prefix: cfg.Prefix}, nil
}

func (c *redisClient) Redis() *redis.Client { return c.rdb }

func (c *redisClient) Get(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, prefixed(c.prefix, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (c *redisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return c.rdb.Set(ctx, prefixed(c.prefix, key), value, ttl).Err()
}

func (c *redisClient) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, prefixed(c.prefix, key)).Err()
}

func (c *redisClient) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *redisClient) Close() error { return c.rdb.Close() }
