package search

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy calcula el delay del intento n (1-based) para errores transitorios.
type RetryPolicy struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
	Jitter float64
}

// DefaultRetryPolicy: base 1s, factor 2, tope 60s, jitter 0.5.
var DefaultRetryPolicy = RetryPolicy{Base: time.Second, Factor: 2, Max: time.Minute, Jitter: 0.5}

// Delay aplica el tope después del jitter: nunca supera Max.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.Base),
		backoff.WithMultiplier(p.Factor),
		backoff.WithMaxInterval(p.Max),
		backoff.WithRandomizationFactor(p.Jitter),
		backoff.WithMaxElapsedTime(0),
	)
	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	if d > p.Max {
		d = p.Max
	}
	return d
}
