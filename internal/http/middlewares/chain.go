package middlewares

import "net/http"

// Middleware es un decorador de http.Handler (compatible con chi.Use).
type Middleware func(http.Handler) http.Handler

// Chain aplica middlewares de izquierda a derecha: Chain(h, A, B) ejecuta A -> B -> h.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// Group compone varios middlewares en uno solo, en el mismo orden que Chain.
func Group(mws ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		return Chain(next, mws...)
	}
}
