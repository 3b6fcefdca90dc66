// Package session contiene el service de sesiones locales: canje de la
// assertion del issuer, rotación de refresh, logout y confirmación de email.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
	"github.com/ji-devs/ji-cloud-sub012/internal/domain/types"
	jwtx "github.com/ji-devs/ji-cloud-sub012/internal/jwt"
	"github.com/ji-devs/ji-cloud-sub012/internal/metrics"
	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
)

// Service errors
var (
	ErrMissingIDToken = errors.New("idToken is required")
	ErrMissingToken   = errors.New("token is required")
	// ErrRefreshReused: un refresh ya rotado se volvió a presentar; se revoca la familia.
	ErrRefreshReused = fmt.Errorf("%w: refresh token reuse", jwtx.ErrRevoked)
)

// IdentityVerifier valida el idToken del login.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*jwtx.IdentityAssertion, error)
}

// Result es un par session/refresh recién emitido.
type Result struct {
	User    *repository.User
	Created bool
	Session jwtx.Minted
	Refresh jwtx.Minted
}

// Service define las operaciones de sesión.
type Service interface {
	Login(ctx context.Context, idToken string) (*Result, error)
	Refresh(ctx context.Context, claims *jwtx.SessionClaims) (*Result, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	ConfirmEmail(ctx context.Context, token string) error
	ResolveIdentity(ctx context.Context, a *jwtx.IdentityAssertion) (uuid.UUID, []string, error)
}

// Deps contiene las dependencias del service.
type Deps struct {
	Identity IdentityVerifier
	Users    repository.UserRepository
	Tokens   repository.TokenRepository
	Issuer   *jwtx.SessionIssuer
	Verifier *jwtx.SessionVerifier
	Versions *VersionCache
}

type sessionService struct {
	deps Deps
}

// NewService crea el service de sesión.
func NewService(deps Deps) Service {
	return &sessionService{deps: deps}
}

func event(name string) { metrics.SessionEventsTotal.WithLabelValues(name).Inc() }

// displayName elige el nombre visible de la assertion.
func displayName(a *jwtx.IdentityAssertion) string {
	if n := strings.TrimSpace(a.Name); n != "" {
		return n
	}
	if n := strings.TrimSpace(a.GivenName + " " + a.FamilyName); n != "" {
		return n
	}
	if local, _, ok := strings.Cut(a.Email, "@"); ok {
		return local
	}
	return ""
}

func (s *sessionService) ensure(ctx context.Context, a *jwtx.IdentityAssertion) (*repository.User, bool, error) {
	return s.deps.Users.Ensure(ctx, repository.EnsureUserInput{
		IssuerSub:     a.Subject,
		Email:         a.Email,
		EmailVerified: a.EmailVerified,
		DisplayName:   displayName(a),
		Scopes:        types.DefaultUserScopes(),
	})
}

// ResolveIdentity implementa middlewares.UserResolver para bearers del issuer.
func (s *sessionService) ResolveIdentity(ctx context.Context, a *jwtx.IdentityAssertion) (uuid.UUID, []string, error) {
	u, created, err := s.ensure(ctx, a)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if created {
		logger.From(ctx).Info("user created from identity bearer", logger.UserID(u.ID.String()))
	}
	return u.ID, u.Scopes, nil
}

// Login canjea una assertion válida del issuer por un par session/refresh.
// El primer login crea el usuario con scopes ["basic"].
func (s *sessionService) Login(ctx context.Context, idToken string) (*Result, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("Login"),
	)
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, ErrMissingIDToken
	}

	assertion, err := s.deps.Identity.Verify(ctx, idToken)
	if err != nil {
		log.Debug("identity assertion rejected", logger.Err(err))
		event("login_rejected")
		return nil, err
	}
	u, created, err := s.ensure(ctx, assertion)
	if err != nil {
		return nil, err
	}

	res, err := s.issue(ctx, u, uuid.New(), nil)
	if err != nil {
		return nil, err
	}
	res.Created = created
	event("login")
	log.Info("session created", logger.UserID(u.ID.String()), logger.Bool("created", created))
	return res, nil
}

// Refresh rota el refresh presentado (ya verificado por el extractor).
// Sólo un request gana el consumo; reusar un jti rotado revoca toda la familia.
func (s *sessionService) Refresh(ctx context.Context, claims *jwtx.SessionClaims) (*Result, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("Refresh"),
	)
	if claims == nil || claims.Kind != jwtx.KindRefresh {
		return nil, jwtx.ErrWrongKind
	}
	jti, err := claims.JTI()
	if err != nil {
		return nil, err
	}
	uid, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	row, err := s.deps.Tokens.ConsumeRefresh(ctx, jti)
	switch {
	case errors.Is(err, repository.ErrAlreadyUsed):
		if row != nil {
			n, rerr := s.deps.Tokens.RevokeFamily(ctx, row.FamilyID)
			if rerr != nil {
				log.Error("revoke refresh family failed", logger.Err(rerr))
			}
			log.Warn("refresh token reuse detected",
				logger.UserID(uid.String()), logger.ID(row.FamilyID.String()), logger.Count(n))
		}
		event("refresh_reuse")
		return nil, ErrRefreshReused
	case repository.IsNotFound(err), errors.Is(err, repository.ErrRevoked):
		return nil, jwtx.ErrRevoked
	case err != nil:
		return nil, err
	}
	if row.UserID != uid {
		return nil, jwtx.ErrRevoked
	}

	u, err := s.deps.Users.GetByID(ctx, uid)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, jwtx.ErrRevoked
		}
		return nil, err
	}
	res, err := s.issue(ctx, u, row.FamilyID, &jti)
	if err != nil {
		return nil, err
	}
	event("refresh")
	return res, nil
}

// Logout invalida todo lo emitido para el usuario: sube la versión (mata los
// short vigentes) y revoca los refresh pendientes.
func (s *sessionService) Logout(ctx context.Context, userID uuid.UUID) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("session"),
		logger.Op("Logout"),
	)
	ver, err := s.deps.Users.BumpVersion(ctx, userID)
	if err != nil {
		return err
	}
	s.deps.Versions.Forget(ctx, userID)
	n, err := s.deps.Tokens.RevokeAllByUser(ctx, userID)
	if err != nil {
		return err
	}
	event("logout")
	log.Info("session revoked", logger.UserID(userID.String()), logger.Int("version", int(ver)), logger.Count(n))
	return nil
}

// ConfirmEmail canjea un token email_verify (un solo uso) y marca el email.
func (s *sessionService) ConfirmEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrMissingToken
	}
	claims, err := s.deps.Verifier.Redeem(ctx, token, jwtx.KindEmailVerify)
	if err != nil {
		return err
	}
	uid, err := claims.UserID()
	if err != nil {
		return err
	}
	if err := s.deps.Users.MarkEmailVerified(ctx, uid); err != nil {
		return err
	}
	event("email_verified")
	logger.From(ctx).Info("email verified", logger.UserID(uid.String()))
	return nil
}

// issue emite el par. Ambos tokens comparten el CSRF, así la SPA no cambia de
// valor al rotar.
func (s *sessionService) issue(ctx context.Context, u *repository.User, family uuid.UUID, rotatedFrom *uuid.UUID) (*Result, error) {
	short, err := s.deps.Issuer.Mint(jwtx.MintRequest{
		UserID: u.ID, Version: u.Version, Kind: jwtx.KindShort, Scopes: u.Scopes,
	})
	if err != nil {
		return nil, err
	}
	refresh, err := s.deps.Issuer.Mint(jwtx.MintRequest{
		UserID: u.ID, Version: u.Version, Kind: jwtx.KindRefresh, Scopes: u.Scopes, CSRF: short.CSRF,
	})
	if err != nil {
		return nil, err
	}
	if err := s.deps.Tokens.CreateRefresh(ctx, repository.CreateRefreshInput{
		JTI:         refresh.JTI,
		UserID:      u.ID,
		FamilyID:    family,
		RotatedFrom: rotatedFrom,
		ExpiresAt:   refresh.ExpiresAt,
	}); err != nil {
		return nil, err
	}
	return &Result{User: u, Session: short, Refresh: refresh}, nil
}
