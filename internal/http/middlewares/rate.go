package middlewares

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/ji-devs/ji-cloud-sub012/internal/http/errors"
	"github.com/ji-devs/ji-cloud-sub012/internal/http/helpers"
	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
	"github.com/ji-devs/ji-cloud-sub012/internal/rate"
)

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// IPRateKey agrupa por IP y por bucket de rutas (session, media, ...).
// X-Forwarded-For sólo cuenta si el peer está en proxies.
func IPRateKey(bucket string, proxies helpers.TrustedProxies) RateKeyFunc {
	return func(r *http.Request) string {
		return bucket + "|" + proxies.ClientIP(r)
	}
}

// RateLimitConfig configura WithRateLimit.
type RateLimitConfig struct {
	Limiter rate.Limiter
	KeyFunc RateKeyFunc
}

// WithRateLimit responde 429 con Retry-After cuando el limiter rechaza.
// Si el limiter falla (Redis caído) el request pasa.
func WithRateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPRateKey("api", nil)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := cfg.Limiter.Allow(r.Context(), cfg.KeyFunc(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			if res.WindowTTL > 0 {
				resetAt := time.Now().Add(res.WindowTTL).Unix()
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))

			if !res.Allowed {
				secs := int(math.Ceil(res.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				errors.WriteError(w, errors.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
