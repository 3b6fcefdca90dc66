package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User representa un usuario local ligado a un sujeto del issuer externo.
type User struct {
	ID              uuid.UUID
	IssuerSub       string
	Email           string
	EmailVerified   bool
	DisplayName     string
	GivenName       string
	FamilyName      string
	Language        string
	ProfileImageKey *string
	Scopes          []string
	Version         uint32
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EnsureUserInput contiene los datos del primer login.
type EnsureUserInput struct {
	IssuerSub     string
	Email         string
	EmailVerified bool
	DisplayName   string
	Scopes        []string
}

// ProfilePatch contiene los campos editables del perfil. nil = sin cambio.
type ProfilePatch struct {
	DisplayName     *string
	GivenName       *string
	FamilyName      *string
	Language        *string
	ProfileImageKey *string
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetByIssuerSub busca por sujeto del issuer externo.
	GetByIssuerSub(ctx context.Context, sub string) (*User, error)

	// Ensure carga el usuario del sujeto o lo crea (con su registro de índice).
	// created indica si la fila es nueva.
	Ensure(ctx context.Context, in EnsureUserInput) (u *User, created bool, err error)

	// UpdateProfile aplica el patch y encola el registro de índice.
	UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*User, error)

	// Version retorna la versión de sesión vigente.
	Version(ctx context.Context, id uuid.UUID) (uint32, error)

	// BumpVersion invalida todas las sesiones emitidas y retorna la nueva versión.
	BumpVersion(ctx context.Context, id uuid.UUID) (uint32, error)

	// MarkEmailVerified marca el email como verificado.
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
}
