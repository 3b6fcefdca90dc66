// Package session contiene los DTOs de /v1/session.
package session

import (
	"time"

	"github.com/ji-devs/ji-cloud-sub012/internal/http/dto/users"
)

// LoginRequest es el body de POST /v1/session.
type LoginRequest struct {
	IDToken string `json:"idToken"`
}

// SessionResponse se devuelve en login y refresh. Los tokens viajan sólo en
// cookies; el body lleva el CSRF para clientes que no leen cookies.
type SessionResponse struct {
	User      users.Profile `json:"user"`
	CSRF      string        `json:"csrf"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Created   bool          `json:"created,omitempty"`
}

// ConfirmEmailRequest es el body de POST /v1/session/email/confirm.
type ConfirmEmailRequest struct {
	Token string `json:"token"`
}
