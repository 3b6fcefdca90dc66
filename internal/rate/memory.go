package rate

import (
	"context"
	"math"
	"time"

	gocache "github.com/patrickmn/go-cache"
	xrate "golang.org/x/time/rate"
)

// MemoryLimiter es un token bucket por key en memoria del proceso.
// Se usa cuando no hay Redis; con varias réplicas cada una limita por su cuenta.
type MemoryLimiter struct {
	max    int64
	window time.Duration
	// buckets expiran solos tras dos ventanas sin uso.
	buckets *gocache.Cache
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:     int64(max),
		window:  window,
		buckets: gocache.New(2*window, window),
	}
}

func (l *MemoryLimiter) bucket(key string) *xrate.Limiter {
	if v, ok := l.buckets.Get(key); ok {
		l.buckets.SetDefault(key, v)
		return v.(*xrate.Limiter)
	}
	every := xrate.Every(l.window / time.Duration(l.max))
	lim := xrate.NewLimiter(every, int(l.max))
	// Add falla si otro goroutine ganó la carrera; usamos el suyo.
	if err := l.buckets.Add(key, lim, gocache.DefaultExpiration); err != nil {
		if v, ok := l.buckets.Get(key); ok {
			return v.(*xrate.Limiter)
		}
	}
	return lim
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	lim := l.bucket(key)
	now := time.Now()
	res := lim.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: time.Duration(math.Ceil(delay.Seconds())) * time.Second,
			WindowTTL:  l.window,
		}, nil
	}
	remaining := int64(lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:     true,
		Remaining:   remaining,
		WindowTTL:   l.window,
		CurrentHits: l.max - remaining,
	}, nil
}
