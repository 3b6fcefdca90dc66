// Package session contiene los controllers de /v1/session.
package session

import (
	"errors"
	"net/http"
	"time"

	dto "github.com/ji-devs/ji-cloud-sub012/internal/http/dto/session"
	"github.com/ji-devs/ji-cloud-sub012/internal/http/dto/users"
	httperrors "github.com/ji-devs/ji-cloud-sub012/internal/http/errors"
	"github.com/ji-devs/ji-cloud-sub012/internal/http/helpers"
	mw "github.com/ji-devs/ji-cloud-sub012/internal/http/middlewares"
	svc "github.com/ji-devs/ji-cloud-sub012/internal/http/services/session"
	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
)

// Controller maneja login, refresh, logout y confirmación de email.
type Controller struct {
	service svc.Service
	cookies helpers.CookieConfig
	now     func() time.Time
}

// NewController crea el controller de sesión.
func NewController(service svc.Service, cookies helpers.CookieConfig) *Controller {
	return &Controller{service: service, cookies: cookies, now: time.Now}
}

// Login handles POST /v1/session.
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SessionController.Login"))

	var req dto.LoginRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	res, err := c.service.Login(ctx, req.IDToken)
	if err != nil {
		if errors.Is(err, svc.ErrMissingIDToken) {
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("idToken is required"))
			return
		}
		httperrors.Respond(w, r, err)
		return
	}
	c.writeSession(w, res)
	log.Debug("session login successful", logger.UserID(res.User.ID.String()))
}

// Refresh handles POST /v1/session/refresh. El refresh ya fue verificado por
// el middleware de auth y viene en el contexto.
func (c *Controller) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := mw.GetSessionClaims(ctx)
	if claims == nil {
		httperrors.WriteError(w, httperrors.ErrAuthMissing)
		return
	}
	res, err := c.service.Refresh(ctx, claims)
	if err != nil {
		// un refresh rechazado no sirve más: limpiamos las cookies
		helpers.SetCookies(w, c.cookies.DeletionCookies())
		httperrors.Respond(w, r, err)
		return
	}
	c.writeSession(w, res)
}

// Logout handles DELETE /v1/session.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := mw.GetPrincipal(ctx)
	if err := c.service.Logout(ctx, p.UserID); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.SetCookies(w, c.cookies.DeletionCookies())
	helpers.NoContent(w)
}

// ConfirmEmail handles POST /v1/session/email/confirm.
func (c *Controller) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.ConfirmEmailRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := c.service.ConfirmEmail(r.Context(), req.Token); err != nil {
		if errors.Is(err, svc.ErrMissingToken) {
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("token is required"))
			return
		}
		httperrors.Respond(w, r, err)
		return
	}
	helpers.NoContent(w)
}

func (c *Controller) writeSession(w http.ResponseWriter, res *svc.Result) {
	now := c.now()
	helpers.SetCookies(w, c.cookies.SessionCookies(
		res.Session.Token, res.Session.ExpiresAt.Sub(now),
		res.Refresh.Token, res.Refresh.ExpiresAt.Sub(now),
		res.Session.CSRF,
	))
	helpers.WriteJSON(w, http.StatusOK, dto.SessionResponse{
		User:      users.FromUser(res.User),
		CSRF:      res.Session.CSRF,
		ExpiresAt: res.Session.ExpiresAt,
		Created:   res.Created,
	})
}
