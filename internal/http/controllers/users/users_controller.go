// Package users contiene los controllers de /v1/users/me.
package users

import (
	"net/http"
	"time"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
	dto "github.com/ji-devs/ji-cloud-sub012/internal/http/dto/users"
	httperrors "github.com/ji-devs/ji-cloud-sub012/internal/http/errors"
	"github.com/ji-devs/ji-cloud-sub012/internal/http/helpers"
	mw "github.com/ji-devs/ji-cloud-sub012/internal/http/middlewares"
	svc "github.com/ji-devs/ji-cloud-sub012/internal/http/services/users"
)

type Controller struct {
	service svc.Service
}

func NewController(service svc.Service) *Controller {
	return &Controller{service: service}
}

// Me handles GET /v1/users/me.
func (c *Controller) Me(w http.ResponseWriter, r *http.Request) {
	p := mw.GetPrincipal(r.Context())
	u, err := c.service.Me(r.Context(), p.UserID)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.FromUser(u))
}

// Patch handles PATCH /v1/users/me.
func (c *Controller) Patch(w http.ResponseWriter, r *http.Request) {
	var req dto.PatchProfileRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	p := mw.GetPrincipal(r.Context())
	u, err := c.service.UpdateProfile(r.Context(), p.UserID, repository.ProfilePatch{
		DisplayName:     req.DisplayName,
		GivenName:       req.GivenName,
		FamilyName:      req.FamilyName,
		Language:        req.Language,
		ProfileImageKey: req.ProfileImageKey,
	})
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.FromUser(u))
}

type verifyResponse struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

// SendVerification handles POST /v1/users/me/email/verify.
func (c *Controller) SendVerification(w http.ResponseWriter, r *http.Request) {
	p := mw.GetPrincipal(r.Context())
	exp, err := c.service.SendEmailVerification(r.Context(), p.UserID)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusAccepted, verifyResponse{ExpiresAt: exp})
}
