package helpers

import (
	"net/http"
	"strings"
	"time"
)

// Nombres de cookies y header de CSRF.
const (
	SessionCookie = "session"
	RefreshCookie = "refresh"
	CSRFCookie    = "csrf"
	CSRFHeader    = "X-CSRF"

	// RefreshPath limita el envío del refresh a los endpoints de sesión.
	RefreshPath = "/v1/session"
)

// CookieConfig agrupa los atributos comunes de las cookies de sesión.
type CookieConfig struct {
	Domain string
	Secure bool
}

func (c CookieConfig) build(name, value, path string, httpOnly bool, sameSite http.SameSite, ttl time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		HttpOnly: httpOnly,
		Secure:   c.Secure,
		SameSite: sameSite,
	}
	if strings.TrimSpace(c.Domain) != "" {
		ck.Domain = c.Domain
	}
	if ttl > 0 {
		ck.Expires = time.Now().Add(ttl).UTC()
		ck.MaxAge = int(ttl.Seconds())
	}
	return ck
}

// SessionCookies arma session (Lax, /), refresh (Strict, /v1/session) y csrf
// (legible por la SPA).
func (c CookieConfig) SessionCookies(session string, sessionTTL time.Duration, refresh string, refreshTTL time.Duration, csrf string) []*http.Cookie {
	return []*http.Cookie{
		c.build(SessionCookie, session, "/", true, http.SameSiteLaxMode, sessionTTL),
		c.build(RefreshCookie, refresh, RefreshPath, true, http.SameSiteStrictMode, refreshTTL),
		c.build(CSRFCookie, csrf, "/", false, http.SameSiteLaxMode, refreshTTL),
	}
}

// DeletionCookies expiran las tres cookies de sesión.
func (c CookieConfig) DeletionCookies() []*http.Cookie {
	out := []*http.Cookie{
		c.build(SessionCookie, "", "/", true, http.SameSiteLaxMode, 0),
		c.build(RefreshCookie, "", RefreshPath, true, http.SameSiteStrictMode, 0),
		c.build(CSRFCookie, "", "/", false, http.SameSiteLaxMode, 0),
	}
	for _, ck := range out {
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0).UTC()
	}
	return out
}

// SetCookies agrega todas las cookies a la respuesta.
func SetCookies(w http.ResponseWriter, cookies []*http.Cookie) {
	for _, ck := range cookies {
		http.SetCookie(w, ck)
	}
}

// CookieValue devuelve el valor de la cookie o "" si no está.
func CookieValue(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(ck.Value)
}
