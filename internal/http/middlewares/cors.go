package middlewares

import (
	"net/http"
	"strings"
)

// WithCORS habilita CORS con credenciales para los orígenes de la SPA.
// "*" refleja cualquier origen (sólo para desarrollo).
func WithCORS(allowed []string) Middleware {
	trim := func(s string) string { return strings.TrimRight(strings.TrimSpace(s), "/") }

	alist := make([]string, len(allowed))
	for i, v := range allowed {
		alist[i] = trim(v)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := trim(r.Header.Get("Origin"))
			allowedOrigin := ""
			if origin != "" {
				for _, a := range alist {
					if a == "*" || strings.EqualFold(origin, a) {
						allowedOrigin = origin
						break
					}
				}
			}

			w.Header().Add("Vary", "Origin")
			w.Header().Add("Vary", "Access-Control-Request-Method")
			w.Header().Add("Vary", "Access-Control-Request-Headers")

			if allowedOrigin != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", allowedOrigin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,HEAD,OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-CSRF")
				h.Set("Access-Control-Expose-Headers", "X-Request-ID, X-Epoch, Retry-After, X-RateLimit-Remaining, X-RateLimit-Reset, WWW-Authenticate")
				h.Set("Access-Control-Max-Age", "600")
			}

			// Preflight
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
