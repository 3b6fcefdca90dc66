package jwt

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
	tokens "github.com/ji-devs/ji-cloud-sub012/internal/security/token"
)

// Kind es el tipo de token local.
type Kind string

const (
	KindShort         Kind = "short"
	KindRefresh       Kind = "refresh"
	KindPasswordReset Kind = "password_reset"
	KindEmailVerify   Kind = "email_verify"
)

// LocalIssuer es el "iss" de los tokens emitidos por la plataforma.
const LocalIssuer = "ji-cloud"

// SessionSkew es la tolerancia de reloj de los tokens locales (mismo reloj que los emite).
const SessionSkew = 5 * time.Second

// MinSecretLen es el largo mínimo del secreto de firma local.
const MinSecretLen = 32

var kindTTL = map[Kind]time.Duration{
	KindShort:         30 * time.Minute,
	KindRefresh:       30 * 24 * time.Hour,
	KindPasswordReset: 30 * time.Minute,
	KindEmailVerify:   7 * 24 * time.Hour,
}

func (k Kind) Valid() bool {
	_, ok := kindTTL[k]
	return ok
}

func (k Kind) TTL() time.Duration { return kindTTL[k] }

// SingleUse indica si el jti se registra y consume en DB.
func (k Kind) SingleUse() bool { return k == KindPasswordReset || k == KindEmailVerify }

// HasCSRF indica si el token lleva valor CSRF.
func (k Kind) HasCSRF() bool { return k == KindShort || k == KindRefresh }

// SessionClaims es el payload de un token local.
type SessionClaims struct {
	V      uint32   `json:"v"`
	Kind   Kind     `json:"kind"`
	CSRF   string   `json:"csrf,omitempty"`
	Scopes []string `json:"scopes"`
	jwtv5.RegisteredClaims
}

// UserID parsea "sub".
func (c *SessionClaims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrMalformed
	}
	return id, nil
}

// JTI parsea "jti".
func (c *SessionClaims) JTI() (uuid.UUID, error) {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return uuid.Nil, ErrMalformed
	}
	return id, nil
}

// SessionKeys contiene una clave HMAC por tipo, derivadas del secreto con HKDF.
// Un token de un tipo nunca valida con la clave de otro.
type SessionKeys struct {
	byKind map[Kind][]byte
}

func DeriveSessionKeys(secret []byte) (*SessionKeys, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("jwt: local token secret must be at least %d bytes", MinSecretLen)
	}
	out := &SessionKeys{byKind: make(map[Kind][]byte, len(kindTTL))}
	for k := range kindTTL {
		key := make([]byte, 32)
		r := hkdf.New(sha256.New, secret, nil, []byte("ji-cloud/session/"+string(k)))
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, err
		}
		out.byKind[k] = key
	}
	return out, nil
}

func (s *SessionKeys) key(k Kind) ([]byte, error) {
	key, ok := s.byKind[k]
	if !ok {
		return nil, ErrWrongKind
	}
	return key, nil
}

// MintRequest describe un token a emitir. CSRF vacío en short/refresh => se genera.
type MintRequest struct {
	UserID  uuid.UUID
	Version uint32
	Kind    Kind
	Scopes  []string
	CSRF    string
}

// Minted es el token firmado y sus metadatos.
type Minted struct {
	Token     string
	JTI       uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
	CSRF      string
}

// SessionIssuer firma tokens locales (HS256).
type SessionIssuer struct {
	keys *SessionKeys
	now  func() time.Time
}

func NewSessionIssuer(keys *SessionKeys) *SessionIssuer {
	return &SessionIssuer{keys: keys, now: time.Now}
}

func (i *SessionIssuer) WithClock(now func() time.Time) *SessionIssuer {
	i.now = now
	return i
}

func (i *SessionIssuer) Mint(req MintRequest) (Minted, error) {
	if !req.Kind.Valid() {
		return Minted{}, ErrWrongKind
	}
	key, err := i.keys.key(req.Kind)
	if err != nil {
		return Minted{}, err
	}
	csrf := ""
	if req.Kind.HasCSRF() {
		csrf = req.CSRF
		if csrf == "" {
			if csrf, err = tokens.NewCSRF(); err != nil {
				return Minted{}, err
			}
		}
	}
	scopes := req.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	now := i.now().Truncate(time.Second)
	jti := uuid.New()
	exp := now.Add(req.Kind.TTL())
	claims := SessionClaims{
		V:      req.Version,
		Kind:   req.Kind,
		CSRF:   csrf,
		Scopes: scopes,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    LocalIssuer,
			Subject:   req.UserID.String(),
			ID:        jti.String(),
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(key)
	if err != nil {
		return Minted{}, err
	}
	return Minted{Token: signed, JTI: jti, IssuedAt: now, ExpiresAt: exp, CSRF: csrf}, nil
}

// VersionSource devuelve la versión de sesión vigente del usuario.
type VersionSource interface {
	SessionVersion(ctx context.Context, userID uuid.UUID) (uint32, error)
}

// JTIStore consume jtis de tokens de un solo uso (TokenRepository).
type JTIStore interface {
	ConsumeSingleUse(ctx context.Context, jti uuid.UUID, kind string) error
}

// SessionVerifier valida tokens locales.
type SessionVerifier struct {
	keys     *SessionKeys
	versions VersionSource
	jtis     JTIStore
	now      func() time.Time
}

func NewSessionVerifier(keys *SessionKeys, versions VersionSource, jtis JTIStore) *SessionVerifier {
	return &SessionVerifier{keys: keys, versions: versions, jtis: jtis, now: time.Now}
}

func (v *SessionVerifier) WithClock(now func() time.Time) *SessionVerifier {
	v.now = now
	return v
}

// Verify valida firma, tipo, vigencia y versión. No consume jtis.
func (v *SessionVerifier) Verify(ctx context.Context, token string, want Kind) (*SessionClaims, error) {
	claims, err := v.parse(token, want)
	if err != nil {
		return nil, err
	}
	uid, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	current, err := v.versions.SessionVersion(ctx, uid)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrRevoked
		}
		return nil, err
	}
	if current != claims.V {
		return nil, ErrVersionMismatch
	}
	return claims, nil
}

// Redeem verifica y, para tipos de un solo uso, consume el jti.
// Un segundo canje del mismo token devuelve ErrRevoked.
func (v *SessionVerifier) Redeem(ctx context.Context, token string, want Kind) (*SessionClaims, error) {
	claims, err := v.Verify(ctx, token, want)
	if err != nil {
		return nil, err
	}
	if !want.SingleUse() {
		return claims, nil
	}
	jti, err := claims.JTI()
	if err != nil {
		return nil, err
	}
	if err := v.jtis.ConsumeSingleUse(ctx, jti, string(want)); err != nil {
		if errors.Is(err, repository.ErrAlreadyUsed) || repository.IsNotFound(err) {
			return nil, ErrRevoked
		}
		return nil, err
	}
	return claims, nil
}

// parse lee primero el tipo sin verificar: un token de otro tipo es ErrWrongKind
// y no un fallo de firma.
func (v *SessionVerifier) parse(token string, want Kind) (*SessionClaims, error) {
	var peek SessionClaims
	if _, _, err := jwtv5.NewParser().ParseUnverified(token, &peek); err != nil {
		return nil, ErrMalformed
	}
	if !peek.Kind.Valid() {
		return nil, ErrMalformed
	}
	if peek.Kind != want {
		return nil, ErrWrongKind
	}
	key, err := v.keys.key(want)
	if err != nil {
		return nil, err
	}

	parser := jwtv5.NewParser(
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithLeeway(SessionSkew),
		jwtv5.WithTimeFunc(v.now),
		jwtv5.WithIssuer(LocalIssuer),
		jwtv5.WithExpirationRequired(),
	)
	var claims SessionClaims
	if _, err := parser.ParseWithClaims(token, &claims, func(*jwtv5.Token) (any, error) {
		return key, nil
	}); err != nil {
		return nil, mapParseError(err)
	}
	if claims.Kind != want {
		return nil, ErrWrongKind
	}
	return &claims, nil
}
