package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/types"
	"github.com/ji-devs/ji-cloud-sub012/internal/http/errors"
	"github.com/ji-devs/ji-cloud-sub012/internal/http/helpers"
	jwtx "github.com/ji-devs/ji-cloud-sub012/internal/jwt"
	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
	tokens "github.com/ji-devs/ji-cloud-sub012/internal/security/token"
)

// =================================================================================
// AUTHENTICATION EXTRACTOR
// =================================================================================

// ServiceTokenPrefix marca los bearer de cuentas de servicio.
const ServiceTokenPrefix = "svc."

const realm = `Bearer realm="ji-cloud"`

// Require es el tipo de principal que exige una ruta.
type Require uint8

const (
	AllowAnonymous Require = iota
	RequireUser
	RequireService
	RequireUserOrService
)

// Credential elige qué credenciales mira el extractor.
type Credential uint8

const (
	// CredentialAccess: bearer del issuer, bearer svc. o cookie de sesión.
	CredentialAccess Credential = iota
	// CredentialRefresh: sólo la cookie de refresh (rutas /v1/session/refresh).
	CredentialRefresh
)

// Rule es la anotación de una ruta.
type Rule struct {
	Require    Require
	Scopes     []string
	Credential Credential
}

// IdentityVerifier valida assertions del issuer externo (jwt.IdentityVerifier).
type IdentityVerifier interface {
	Trusts(iss string) bool
	Verify(ctx context.Context, token string) (*jwtx.IdentityAssertion, error)
}

// SessionVerifier valida tokens locales (jwt.SessionVerifier).
type SessionVerifier interface {
	Verify(ctx context.Context, token string, want jwtx.Kind) (*jwtx.SessionClaims, error)
}

// UserResolver carga o crea el usuario local de una assertion verificada.
type UserResolver interface {
	ResolveIdentity(ctx context.Context, a *jwtx.IdentityAssertion) (uuid.UUID, []string, error)
}

// AuthConfig agrupa las dependencias del extractor.
type AuthConfig struct {
	Identity IdentityVerifier
	Sessions SessionVerifier
	Users    UserResolver
	// ServiceAccounts: nombre -> SHA256 base64url del token "svc.<secreto>".
	ServiceAccounts map[string]string
}

// Authenticator es el único lugar donde se inspeccionan credenciales.
type Authenticator struct {
	cfg AuthConfig
}

func NewAuthenticator(cfg AuthConfig) *Authenticator {
	return &Authenticator{cfg: cfg}
}

// Extract resuelve el principal del request. Sin credenciales devuelve
// Anonymous; credenciales presentes pero inválidas son error.
func (a *Authenticator) Extract(r *http.Request, rule Rule) (types.Principal, *jwtx.SessionClaims, error) {
	if rule.Credential == CredentialRefresh {
		raw := helpers.CookieValue(r, helpers.RefreshCookie)
		if raw == "" {
			return types.Anonymous, nil, nil
		}
		return a.fromSession(r, raw, jwtx.KindRefresh, types.TokenRefresh)
	}

	// bearer que no es del issuer: se sigue con la cookie y, si no hay,
	// el rechazo del bearer es la respuesta.
	var bearerErr error
	if raw := helpers.BearerToken(r); raw != "" {
		if strings.HasPrefix(raw, ServiceTokenPrefix) {
			p, err := a.fromService(raw)
			return p, nil, err
		}
		p, applies, err := a.fromIdentity(r.Context(), raw)
		if applies {
			return p, nil, err
		}
		bearerErr = err
	}

	if raw := helpers.CookieValue(r, helpers.SessionCookie); raw != "" {
		return a.fromSession(r, raw, jwtx.KindShort, types.TokenSession)
	}
	if bearerErr != nil {
		return types.Anonymous, nil, bearerErr
	}
	return types.Anonymous, nil, nil
}

// fromIdentity devuelve applies=false cuando el bearer no lleva un iss de
// confianza; ese token no es una assertion del issuer.
func (a *Authenticator) fromIdentity(ctx context.Context, raw string) (types.Principal, bool, error) {
	if a.cfg.Identity == nil {
		return types.Anonymous, false, errors.ErrAuthInvalid.WithDetail("identity tokens not accepted")
	}
	iss, err := jwtx.PeekIssuer(raw)
	if err != nil {
		return types.Anonymous, false, errors.FromDomain(err)
	}
	if !a.cfg.Identity.Trusts(iss) {
		return types.Anonymous, false, errors.ErrAuthInvalid.WithDetail("untrusted_issuer")
	}
	p, err := a.verifyIdentity(ctx, raw)
	return p, true, err
}

func (a *Authenticator) verifyIdentity(ctx context.Context, raw string) (types.Principal, error) {
	assertion, err := a.cfg.Identity.Verify(ctx, raw)
	if err != nil {
		return types.Anonymous, errors.FromDomain(err)
	}
	uid, scopes, err := a.cfg.Users.ResolveIdentity(ctx, assertion)
	if err != nil {
		return types.Anonymous, errors.FromDomain(err)
	}
	p := types.NewUser(uid, scopes, types.TokenIdentity)
	p.ExpiresAt = assertion.ExpiresAt
	return p, nil
}

func (a *Authenticator) fromService(raw string) (types.Principal, error) {
	sum := tokens.SHA256Base64URL(raw)
	name := ""
	// se comparan todas para no filtrar por timing cuál coincidió
	for n, want := range a.cfg.ServiceAccounts {
		if tokens.ConstantTimeEqual(sum, want) {
			name = n
		}
	}
	if name == "" {
		return types.Anonymous, errors.ErrAuthInvalid.WithDetail("unknown service account")
	}
	return types.NewServiceAccount(name), nil
}

func (a *Authenticator) fromSession(r *http.Request, raw string, kind jwtx.Kind, tk types.TokenKind) (types.Principal, *jwtx.SessionClaims, error) {
	claims, err := a.cfg.Sessions.Verify(r.Context(), raw, kind)
	if err != nil {
		return types.Anonymous, nil, errors.FromDomain(err)
	}
	uid, err := claims.UserID()
	if err != nil {
		return types.Anonymous, nil, errors.FromDomain(err)
	}
	if !helpers.IsSafeMethod(r.Method) {
		hdr := strings.TrimSpace(r.Header.Get(helpers.CSRFHeader))
		if !tokens.ConstantTimeEqual(hdr, claims.CSRF) {
			return types.Anonymous, nil, errors.ErrCSRFMismatch
		}
	}
	p := types.NewUser(uid, claims.Scopes, tk)
	p.TokenID = claims.ID
	p.CSRF = claims.CSRF
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, claims, nil
}

// Authorize chequea el principal contra la regla de la ruta.
func Authorize(p types.Principal, rule Rule) error {
	switch rule.Require {
	case RequireUser:
		if p.IsAnonymous() {
			return errors.ErrAuthMissing
		}
		if !p.IsUser() {
			return errors.ErrForbidden.WithDetail("user principal required")
		}
	case RequireService:
		if p.IsAnonymous() {
			return errors.ErrAuthMissing
		}
		if !p.IsService() {
			return errors.ErrForbidden.WithDetail("service account required")
		}
	case RequireUserOrService:
		if p.IsAnonymous() {
			return errors.ErrAuthMissing
		}
	}
	if missing := p.Missing(rule.Scopes...); len(missing) > 0 {
		return errors.ErrInsufficientScope.WithDetail(strings.Join(missing, " "))
	}
	return nil
}

// Require devuelve el middleware que aplica rule antes del handler.
// En rutas AllowAnonymous una credencial inválida degrada a anónimo.
func (a *Authenticator) Require(rule Rule) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p, claims, err := a.Extract(r, rule)
			if err != nil && rule.Require == AllowAnonymous {
				p, claims, err = types.Anonymous, nil, nil
			}
			if err == nil {
				err = Authorize(p, rule)
			}
			if err != nil {
				appErr := errors.FromDomain(err)
				switch appErr.Kind {
				case errors.KindAuthMissing:
					w.Header().Set("WWW-Authenticate", realm)
				case errors.KindAuthInvalid:
					w.Header().Set("WWW-Authenticate", realm+`, error="invalid_token"`)
				}
				logger.From(ctx).Debug("request rejected by authenticator",
					logger.String("code", appErr.Code),
					logger.String("detail", appErr.Detail),
				)
				errors.Respond(w, r, appErr)
				return
			}

			recordPrincipal(ctx, p)
			ctx = logger.Enrich(ctx, principalFields(p)...)
			ctx = WithPrincipal(ctx, p)
			if claims != nil {
				ctx = withSessionClaims(ctx, claims)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
