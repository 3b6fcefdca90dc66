// Package router arma el árbol de rutas de la API con chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httpx "github.com/ji-devs/ji-cloud-sub012/internal/http"
	contentctrl "github.com/ji-devs/ji-cloud-sub012/internal/http/controllers/content"
	healthctrl "github.com/ji-devs/ji-cloud-sub012/internal/http/controllers/health"
	mediactrl "github.com/ji-devs/ji-cloud-sub012/internal/http/controllers/media"
	sessionctrl "github.com/ji-devs/ji-cloud-sub012/internal/http/controllers/session"
	usersctrl "github.com/ji-devs/ji-cloud-sub012/internal/http/controllers/users"
	httperrors "github.com/ji-devs/ji-cloud-sub012/internal/http/errors"
	"github.com/ji-devs/ji-cloud-sub012/internal/http/helpers"
	mw "github.com/ji-devs/ji-cloud-sub012/internal/http/middlewares"
	"github.com/ji-devs/ji-cloud-sub012/internal/rate"
)

// Controllers agrupa los controllers de la API.
type Controllers struct {
	Session *sessionctrl.Controller
	Users   *usersctrl.Controller
	Media   *mediactrl.Controller
	Content *contentctrl.Controller
	Health  *healthctrl.Controller
}

// Deps contiene las dependencias del router.
type Deps struct {
	Controllers Controllers
	Auth        *mw.Authenticator
	CORSOrigins []string
	Epoch       int64
	RateLimiter rate.Limiter // Opcional: nil desactiva el rate limiting
	// TrustedProxies: peers cuyo X-Forwarded-For vale para la clave de rate.
	TrustedProxies helpers.TrustedProxies
	Metrics        http.Handler // Opcional: GET /metrics
}

var (
	userRule    = mw.Rule{Require: mw.RequireUser}
	refreshRule = mw.Rule{Require: mw.RequireUser, Credential: mw.CredentialRefresh}
	anonRule    = mw.Rule{Require: mw.AllowAnonymous}
	deleteRule  = mw.Rule{Require: mw.RequireUserOrService}
)

// New devuelve el handler raíz.
func New(deps Deps) http.Handler {
	c := deps.Controllers
	r := chi.NewRouter()

	// Orden: recover envuelve todo; logging ve el status final.
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithSecurityHeaders(),
		mw.WithCORS(deps.CORSOrigins),
		mw.WithEpoch(deps.Epoch),
		httpx.WithMetrics,
		mw.WithLogging(),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	r.Get("/healthz", c.Health.Live)
	r.Get("/readyz", c.Health.Ready)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	auth := deps.Auth
	limited := func(bucket string) mw.Middleware {
		return mw.WithRateLimit(mw.RateLimitConfig{Limiter: deps.RateLimiter, KeyFunc: mw.IPRateKey(bucket, deps.TrustedProxies)})
	}

	r.Route("/v1/session", func(r chi.Router) {
		r.Use(mw.WithNoStore(), limited("session"))
		r.With(auth.Require(anonRule)).Post("/", c.Session.Login)
		r.With(auth.Require(refreshRule)).Post("/refresh", c.Session.Refresh)
		r.With(auth.Require(userRule)).Delete("/", c.Session.Logout)
		r.With(auth.Require(anonRule)).Post("/email/confirm", c.Session.ConfirmEmail)
	})

	r.Route("/v1/users/me", func(r chi.Router) {
		r.Use(mw.WithNoStore(), auth.Require(userRule))
		r.Get("/", c.Users.Me)
		r.Patch("/", c.Users.Patch)
		r.With(limited("email")).Post("/email/verify", c.Users.SendVerification)
	})

	r.Route("/v1/media", func(r chi.Router) {
		r.Use(mw.WithNoStore())
		r.With(limited("media"), auth.Require(userRule)).Post("/upload", c.Media.Upload)
		r.With(limited("media"), auth.Require(userRule)).Get("/download", c.Media.Download)
		r.With(auth.Require(deleteRule)).Delete("/*", c.Media.Delete)
	})

	r.Route("/v1/"+contentctrl.KindPattern, func(r chi.Router) {
		r.Use(auth.Require(userRule))
		r.Post("/", c.Content.Create)
		r.Get("/{id}", c.Content.Get)
		r.Patch("/{id}", c.Content.Patch)
		r.Delete("/{id}", c.Content.Delete)
	})

	return r
}
