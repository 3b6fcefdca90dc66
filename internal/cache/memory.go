package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient vive en el proceso; sirve para dev, tests y una sola réplica.
type memoryClient struct {
	prefix string
	items  *gocache.Cache
}

func NewMemory(prefix string) *memoryClient {
	return &memoryClient{prefix: prefix, items: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (c *memoryClient) Get(_ context.Context, key string) (string, error) {
	v, ok := c.items.Get(prefixed(c.prefix, key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (c *memoryClient) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.items.Set(prefixed(c.prefix, key), value, ttl)
	return nil
}

func (c *memoryClient) Delete(_ context.Context, key string) error {
	c.items.Delete(prefixed(c.prefix, key))
	return nil
}

func (c *memoryClient) Ping(context.Context) error { return nil }

func (c *memoryClient) Close() error {
	c.items.Flush()
	return nil
}
