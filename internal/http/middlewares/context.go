package middlewares

import (
	"context"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/types"
	jwtx "github.com/ji-devs/ji-cloud-sub012/internal/jwt"
)

type ctxKey string

const (
	ctxPrincipalKey ctxKey = "principal"
	ctxSessionKey   ctxKey = "session_claims"
	ctxRequestIDKey ctxKey = "request_id"
	ctxHolderKey    ctxKey = "principal_holder"
)

// WithPrincipal inyecta el principal en el contexto.
func WithPrincipal(ctx context.Context, p types.Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, p)
}

// GetPrincipal devuelve el principal del request; Anonymous si el extractor
// no corrió.
func GetPrincipal(ctx context.Context) types.Principal {
	if p, ok := ctx.Value(ctxPrincipalKey).(types.Principal); ok {
		return p
	}
	return types.Anonymous
}

func withSessionClaims(ctx context.Context, c *jwtx.SessionClaims) context.Context {
	return context.WithValue(ctx, ctxSessionKey, c)
}

// GetSessionClaims devuelve las claims del token local que autenticó el
// request (session o refresh). nil para identity, servicio o anónimo.
func GetSessionClaims(ctx context.Context) *jwtx.SessionClaims {
	c, _ := ctx.Value(ctxSessionKey).(*jwtx.SessionClaims)
	return c
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxRequestIDKey).(string)
	return s
}

// principalHolder deja que WithLogging (más afuera en la cadena) vea el
// principal que resolvió el extractor.
type principalHolder struct {
	principal types.Principal
}

func withPrincipalHolder(ctx context.Context, h *principalHolder) context.Context {
	return context.WithValue(ctx, ctxHolderKey, h)
}

func recordPrincipal(ctx context.Context, p types.Principal) {
	if h, ok := ctx.Value(ctxHolderKey).(*principalHolder); ok {
		h.principal = p
	}
}
