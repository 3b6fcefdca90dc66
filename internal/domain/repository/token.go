package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshToken es la fila de ledger de un refresh emitido.
type RefreshToken struct {
	JTI         uuid.UUID
	UserID      uuid.UUID
	FamilyID    uuid.UUID
	RotatedFrom *uuid.UUID
	IssuedAt    time.Time
	ExpiresAt   time.Time
	UsedAt      *time.Time
	RevokedAt   *time.Time
}

// CreateRefreshInput contiene los datos para registrar un refresh.
type CreateRefreshInput struct {
	JTI         uuid.UUID
	UserID      uuid.UUID
	FamilyID    uuid.UUID
	RotatedFrom *uuid.UUID
	ExpiresAt   time.Time
}

// TokenRepository define operaciones sobre refresh y tokens de un solo uso.
type TokenRepository interface {
	// CreateRefresh registra un refresh recién emitido.
	CreateRefresh(ctx context.Context, in CreateRefreshInput) error

	// ConsumeRefresh marca el jti como usado de forma atómica.
	// Si ya fue usado retorna la fila junto con ErrAlreadyUsed (reuso); si fue
	// revocado o expiró sin usarse, la fila junto con ErrRevoked.
	// Retorna ErrNotFound si el jti no existe.
	ConsumeRefresh(ctx context.Context, jti uuid.UUID) (*RefreshToken, error)

	// IsRefreshActive reporta si el jti existe, no fue usado ni revocado y no expiró.
	IsRefreshActive(ctx context.Context, jti uuid.UUID) (bool, error)

	// RevokeFamily revoca toda la cadena de rotación (detección de reuso).
	RevokeFamily(ctx context.Context, familyID uuid.UUID) (int, error)

	// RevokeAllByUser revoca todos los refresh activos del usuario.
	RevokeAllByUser(ctx context.Context, userID uuid.UUID) (int, error)

	// CreateSingleUse registra el jti de un token password_reset / email_verify.
	CreateSingleUse(ctx context.Context, jti, userID uuid.UUID, kind string, expiresAt time.Time) error

	// ConsumeSingleUse marca el jti como usado.
	// Retorna ErrAlreadyUsed si ya fue consumido, ErrNotFound si no existe.
	ConsumeSingleUse(ctx context.Context, jti uuid.UUID, kind string) error
}
