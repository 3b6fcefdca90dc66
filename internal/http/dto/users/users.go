// Package users contiene los DTOs de /v1/users.
package users

import (
	"time"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
)

// Profile es la vista pública del usuario autenticado.
type Profile struct {
	ID              string    `json:"id"`
	Email           string    `json:"email,omitempty"`
	EmailVerified   bool      `json:"emailVerified"`
	DisplayName     string    `json:"displayName"`
	GivenName       string    `json:"givenName,omitempty"`
	FamilyName      string    `json:"familyName,omitempty"`
	Language        string    `json:"language,omitempty"`
	ProfileImageKey *string   `json:"profileImageKey,omitempty"`
	Scopes          []string  `json:"scopes"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// FromUser arma el Profile de un repository.User.
func FromUser(u *repository.User) Profile {
	scopes := u.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	return Profile{
		ID:              u.ID.String(),
		Email:           u.Email,
		EmailVerified:   u.EmailVerified,
		DisplayName:     u.DisplayName,
		GivenName:       u.GivenName,
		FamilyName:      u.FamilyName,
		Language:        u.Language,
		ProfileImageKey: u.ProfileImageKey,
		Scopes:          scopes,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// PatchProfileRequest es el body de PATCH /v1/users/me. Campos ausentes no cambian.
type PatchProfileRequest struct {
	DisplayName     *string `json:"displayName"`
	GivenName       *string `json:"givenName"`
	FamilyName      *string `json:"familyName"`
	Language        *string `json:"language"`
	ProfileImageKey *string `json:"profileImageKey"`
}
