// Package types define tipos de dominio compartidos entre paquetes.
package types

import (
	"time"

	"github.com/google/uuid"
)

// PrincipalKind distingue las variantes de Principal.
type PrincipalKind string

const (
	PrincipalAnonymous PrincipalKind = "anonymous"
	PrincipalUser      PrincipalKind = "user"
	PrincipalService   PrincipalKind = "service_account"
)

// TokenKind indica con qué credencial se autenticó un User.
type TokenKind string

const (
	// TokenIdentity: assertion del issuer externo verificada contra su JWKS.
	TokenIdentity TokenKind = "identity"
	// TokenSession: cookie de sesión corta emitida localmente.
	TokenSession TokenKind = "session"
	// TokenRefresh: cookie de refresh, sólo en rutas /v1/session.
	TokenRefresh TokenKind = "refresh"
)

// Principal es la identidad autenticada de un request.
// Se construye por request en el extractor y nunca se persiste.
type Principal struct {
	Kind PrincipalKind

	// User
	UserID    uuid.UUID
	Scopes    []string
	TokenKind TokenKind
	// TokenID es el jti de la credencial local (vacío para identity).
	TokenID   string
	ExpiresAt time.Time
	// CSRF es el valor ligado a la sesión (vacío para identity/service).
	CSRF string

	// ServiceAccount
	ServiceName string
}

// Anonymous es el principal por defecto.
var Anonymous = Principal{Kind: PrincipalAnonymous}

// NewUser construye un principal de usuario.
func NewUser(id uuid.UUID, scopes []string, kind TokenKind) Principal {
	return Principal{Kind: PrincipalUser, UserID: id, Scopes: scopes, TokenKind: kind}
}

// NewServiceAccount construye un principal de servicio.
func NewServiceAccount(name string) Principal {
	return Principal{Kind: PrincipalService, ServiceName: name, Scopes: []string{ScopeService}}
}

func (p Principal) IsAnonymous() bool { return p.Kind == "" || p.Kind == PrincipalAnonymous }
func (p Principal) IsUser() bool      { return p.Kind == PrincipalUser }
func (p Principal) IsService() bool   { return p.Kind == PrincipalService }

// HasScope verifica un scope puntual.
func (p Principal) HasScope(s string) bool {
	for _, have := range p.Scopes {
		if have == s {
			return true
		}
	}
	return false
}

// Missing devuelve los scopes requeridos que el principal no tiene.
func (p Principal) Missing(required ...string) []string {
	var out []string
	for _, r := range required {
		if !p.HasScope(r) {
			out = append(out, r)
		}
	}
	return out
}

// Scopes conocidos.
const (
	ScopeBasic   = "basic"
	ScopeAdmin   = "admin"
	ScopeService = "service"
)

// DefaultUserScopes se asignan en el primer login.
func DefaultUserScopes() []string { return []string{ScopeBasic} }
