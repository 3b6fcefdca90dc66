package middlewares

import (
	"net/http"
	"strconv"
)

// WithEpoch expone el epoch del proceso en X-Epoch para cache-bust aguas abajo.
func WithEpoch(epoch int64) Middleware {
	v := strconv.FormatInt(epoch, 10)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Epoch", v)
			next.ServeHTTP(w, r)
		})
	}
}
