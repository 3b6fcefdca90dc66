// Package users contiene el service del perfil del usuario autenticado.
package users

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
	httperrors "github.com/ji-devs/ji-cloud-sub012/internal/http/errors"
	"github.com/ji-devs/ji-cloud-sub012/internal/http/services/common"
	jwtx "github.com/ji-devs/ji-cloud-sub012/internal/jwt"
	"github.com/ji-devs/ji-cloud-sub012/internal/media"
	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
)

// Mailer envía el correo de verificación (email.Mailer).
type Mailer interface {
	SendVerification(ctx context.Context, to, displayName, token, ttl string) error
}

// Service define las operaciones sobre /v1/users/me.
type Service interface {
	Me(ctx context.Context, userID uuid.UUID) (*repository.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, patch repository.ProfilePatch) (*repository.User, error)
	// SendEmailVerification emite un email_verify y lo envía; devuelve el vencimiento.
	SendEmailVerification(ctx context.Context, userID uuid.UUID) (time.Time, error)
}

// Deps contiene las dependencias del service.
type Deps struct {
	Users  repository.UserRepository
	Tokens repository.TokenRepository
	Media  repository.MediaRepository
	Issuer *jwtx.SessionIssuer
	Mailer Mailer
}

type usersService struct {
	deps Deps
}

func NewService(deps Deps) Service {
	return &usersService{deps: deps}
}

func (s *usersService) Me(ctx context.Context, userID uuid.UUID) (*repository.User, error) {
	return s.deps.Users.GetByID(ctx, userID)
}

func (s *usersService) UpdateProfile(ctx context.Context, userID uuid.UUID, p repository.ProfilePatch) (*repository.User, error) {
	if err := common.Text("displayName", p.DisplayName, 100, p.DisplayName != nil); err != nil {
		return nil, err
	}
	if err := common.Text("givenName", p.GivenName, 100, false); err != nil {
		return nil, err
	}
	if err := common.Text("familyName", p.FamilyName, 100, false); err != nil {
		return nil, err
	}
	if err := common.Text("language", p.Language, 16, false); err != nil {
		return nil, err
	}
	if p.ProfileImageKey != nil {
		if err := common.CheckMediaRef(ctx, s.deps.Media, "profileImageKey", *p.ProfileImageKey, userID,
			media.KindUserProfile, media.KindImageLibrary); err != nil {
			return nil, err
		}
	}
	u, err := s.deps.Users.UpdateProfile(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	logger.From(ctx).Info("profile updated", logger.UserID(userID.String()))
	return u, nil
}

func (s *usersService) SendEmailVerification(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("users"),
		logger.Op("SendEmailVerification"),
	)
	u, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}
	if u.EmailVerified {
		return time.Time{}, httperrors.ErrEmailAlreadyVerified
	}
	if u.Email == "" {
		return time.Time{}, httperrors.ErrBadRequest.WithDetail("user has no email")
	}

	m, err := s.deps.Issuer.Mint(jwtx.MintRequest{UserID: u.ID, Version: u.Version, Kind: jwtx.KindEmailVerify})
	if err != nil {
		return time.Time{}, err
	}
	if err := s.deps.Tokens.CreateSingleUse(ctx, m.JTI, u.ID, string(jwtx.KindEmailVerify), m.ExpiresAt); err != nil {
		return time.Time{}, err
	}
	if err := s.deps.Mailer.SendVerification(ctx, u.Email, u.DisplayName, m.Token, "7 days"); err != nil {
		log.Error("verification email failed", logger.Err(err), logger.UserID(u.ID.String()))
		return time.Time{}, httperrors.ErrUpstream.WithDetail("email").WithCause(err)
	}
	log.Info("verification email sent", logger.UserID(u.ID.String()))
	return m.ExpiresAt, nil
}
