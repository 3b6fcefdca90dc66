// Package media contiene los controllers de /v1/media.
package media

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	dto "github.com/ji-devs/ji-cloud-sub012/internal/http/dto/media"
	httperrors "github.com/ji-devs/ji-cloud-sub012/internal/http/errors"
	"github.com/ji-devs/ji-cloud-sub012/internal/http/helpers"
	mw "github.com/ji-devs/ji-cloud-sub012/internal/http/middlewares"
	"github.com/ji-devs/ji-cloud-sub012/internal/media"
	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
)

// Gateway es la parte de media.Gateway que usa la API.
type Gateway interface {
	GrantUpload(ctx context.Context, req media.UploadRequest) (*media.UploadGrant, error)
	GrantDownload(ctx context.Context, key string, userID uuid.UUID) (*media.DownloadGrant, error)
	Delete(ctx context.Context, key string, actor media.Actor) error
}

type Controller struct {
	gateway Gateway
}

func NewController(gateway Gateway) *Controller {
	return &Controller{gateway: gateway}
}

// Upload handles POST /v1/media/upload. Responde 201 con la URL firmada.
func (c *Controller) Upload(w http.ResponseWriter, r *http.Request) {
	var req dto.UploadRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	p := mw.GetPrincipal(r.Context())
	grant, err := c.gateway.GrantUpload(r.Context(), media.UploadRequest{
		Kind:        req.Kind,
		OwnerID:     p.UserID,
		ContentType: req.ContentType,
		Size:        req.Size,
	})
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, grant)
}

// Download handles GET /v1/media/download?key=.
func (c *Controller) Download(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("key is required"))
		return
	}
	p := mw.GetPrincipal(r.Context())
	grant, err := c.gateway.GrantDownload(r.Context(), key, p.UserID)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, grant)
}

// Delete handles DELETE /v1/media/{key...}. 204 exista o no la key.
func (c *Controller) Delete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	p := mw.GetPrincipal(r.Context())
	actor := media.Actor{UserID: p.UserID, Service: p.IsService()}
	if err := c.gateway.Delete(r.Context(), key, actor); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	if actor.Service {
		logger.From(r.Context()).Info("media deleted by service account",
			logger.MediaKey(key), logger.String("service", p.ServiceName))
	}
	helpers.NoContent(w)
}
