package jwt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// IdentitySkew es la tolerancia de reloj para exp/nbf de aserciones externas.
const IdentitySkew = 60 * time.Second

var identityMethods = []string{"RS256", "RS384", "RS512", "PS256", "PS384", "PS512", "ES256", "ES384", "ES512", "EdDSA"}

// KeyProvider resuelve la clave pública por kid (JWKSCache).
type KeyProvider interface {
	Key(ctx context.Context, kid string) (jose.JSONWebKey, error)
}

// IdentityAssertion es el subconjunto de claims que se consume de un token del issuer.
type IdentityAssertion struct {
	Issuer        string
	Subject       string
	Audience      []string
	ExpiresAt     time.Time
	IssuedAt      time.Time
	Nonce         string
	Email         string
	EmailVerified bool
	Name          string
	GivenName     string
	FamilyName    string
}

// flexBool acepta true o "true"; algunos issuers serializan email_verified como string.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*b = false
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b = flexBool(v)
	return nil
}

type identityClaims struct {
	Nonce         string   `json:"nonce,omitempty"`
	Email         string   `json:"email,omitempty"`
	EmailVerified flexBool `json:"email_verified,omitempty"`
	Name          string   `json:"name,omitempty"`
	GivenName     string   `json:"given_name,omitempty"`
	FamilyName    string   `json:"family_name,omitempty"`
	jwtv5.RegisteredClaims
}

// IdentityVerifier valida aserciones firmadas por el issuer externo.
type IdentityVerifier struct {
	keys     KeyProvider
	issuer   string
	audience string
	now      func() time.Time
}

func NewIdentityVerifier(keys KeyProvider, issuer, audience string) *IdentityVerifier {
	return &IdentityVerifier{keys: keys, issuer: issuer, audience: audience, now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (v *IdentityVerifier) WithClock(now func() time.Time) *IdentityVerifier {
	v.now = now
	return v
}

// Issuer devuelve el issuer de confianza.
func (v *IdentityVerifier) Issuer() string { return v.issuer }

// Trusts reporta si iss es el issuer configurado.
func (v *IdentityVerifier) Trusts(iss string) bool {
	return iss != "" && sameIssuer(iss, v.issuer)
}

func sameIssuer(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}

// Verify valida firma, issuer, audiencia y vigencia. Claims desconocidos se ignoran.
func (v *IdentityVerifier) Verify(ctx context.Context, token string) (*IdentityAssertion, error) {
	parser := jwtv5.NewParser(
		jwtv5.WithValidMethods(identityMethods),
		jwtv5.WithLeeway(IdentitySkew),
		jwtv5.WithTimeFunc(v.now),
		jwtv5.WithAudience(v.audience),
		jwtv5.WithExpirationRequired(),
	)
	var claims identityClaims
	_, err := parser.ParseWithClaims(token, &claims, func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		k, err := v.keys.Key(ctx, kid)
		if err != nil {
			return nil, err
		}
		if k.Algorithm != "" && k.Algorithm != t.Method.Alg() {
			return nil, ErrBadSignature
		}
		return k.Key, nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}
	// la barra final del issuer varía entre proveedores
	if !sameIssuer(claims.Issuer, v.issuer) {
		return nil, ErrWrongIssuer
	}
	if claims.Subject == "" {
		return nil, ErrMalformed
	}

	out := &IdentityAssertion{
		Issuer:        claims.Issuer,
		Subject:       claims.Subject,
		Audience:      []string(claims.Audience),
		Nonce:         claims.Nonce,
		Email:         claims.Email,
		EmailVerified: bool(claims.EmailVerified),
		Name:          claims.Name,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// PeekIssuer lee "iss" sin verificar; solo sirve para decidir qué verificador usar.
func PeekIssuer(token string) (string, error) {
	var rc jwtv5.RegisteredClaims
	if _, _, err := jwtv5.NewParser().ParseUnverified(token, &rc); err != nil {
		return "", ErrMalformed
	}
	return rc.Issuer, nil
}

// mapParseError reduce los errores de golang-jwt a los sentinels del paquete.
// La firma se evalúa antes que los claims.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKey):
		return ErrUnknownKey
	case errors.Is(err, ErrBadSignature), errors.Is(err, jwtv5.ErrTokenSignatureInvalid):
		return ErrBadSignature
	case errors.Is(err, jwtv5.ErrTokenMalformed), errors.Is(err, jwtv5.ErrTokenRequiredClaimMissing):
		return ErrMalformed
	case errors.Is(err, jwtv5.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwtv5.ErrTokenNotValidYet), errors.Is(err, jwtv5.ErrTokenUsedBeforeIssued):
		return fmt.Errorf("%w: not yet valid", ErrExpired)
	case errors.Is(err, jwtv5.ErrTokenInvalidIssuer):
		return ErrWrongIssuer
	case errors.Is(err, jwtv5.ErrTokenInvalidAudience):
		return ErrWrongAudience
	default:
		return ErrMalformed
	}
}
