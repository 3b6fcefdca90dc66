// Package cache guarda valores cortos fuera de la base: hoy, la versión de
// sesión de cada usuario. Con Redis la entrada es compartida por todas las
// réplicas; en memoria cada proceso tiene la suya.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound: la key no existe o expiró.
var ErrNotFound = errors.New("cache: key not found")

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Client es lo que consumen la caché de versiones y /readyz.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	// Set con ttl <= 0 no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete de una key inexistente no es error.
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// RedisBacked lo implementa el driver redis; el rate limiter reutiliza la
// misma conexión para que el límite sea global.
type RedisBacked interface {
	Redis() *redis.Client
}

// Config sale de la sección cache de config (CACHE_KIND, REDIS_*).
type Config struct {
	Driver   string // memory | redis
	Addr     string
	Password string
	DB       int
	Prefix   string
	// DialTimeout acota el ping inicial a Redis. Default 5s.
	DialTimeout time.Duration
}

// New abre el driver pedido. Un Redis inalcanzable al arrancar es error.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(cfg.Prefix), nil
	case "redis":
		return NewRedis(ctx, cfg)
	}
	return nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
}

func prefixed(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + ":" + k
}
