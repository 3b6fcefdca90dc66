// Package content contiene los controllers de /v1/{jigs,playlists,courses,circles}.
package content

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
	"github.com/ji-devs/ji-cloud-sub012/internal/domain/types"
	dto "github.com/ji-devs/ji-cloud-sub012/internal/http/dto/content"
	httperrors "github.com/ji-devs/ji-cloud-sub012/internal/http/errors"
	"github.com/ji-devs/ji-cloud-sub012/internal/http/helpers"
	mw "github.com/ji-devs/ji-cloud-sub012/internal/http/middlewares"
	svc "github.com/ji-devs/ji-cloud-sub012/internal/http/services/content"
)

// KindPattern es el patrón chi del segmento {kind}.
const KindPattern = "{kind:(jigs|playlists|courses|circles)}"

type Controller struct {
	service svc.Service
}

func NewController(service svc.Service) *Controller {
	return &Controller{service: service}
}

func kindParam(r *http.Request) (types.EntityKind, bool) {
	return types.ParseContentKind(chi.URLParam(r, "kind"))
}

func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /v1/{kind}.
func (c *Controller) Create(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrNotFound)
		return
	}
	var req dto.CreateRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	p := mw.GetPrincipal(r.Context())
	item, err := c.service.Create(r.Context(), kind, p.UserID, svc.CreateInput{
		DisplayName: req.DisplayName,
		Description: req.Description,
		Language:    req.Language,
		Privacy:     req.Privacy,
		CoverKey:    req.CoverKey,
		Data:        req.Data,
	})
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+item.ID.String())
	helpers.WriteJSON(w, http.StatusCreated, dto.FromItem(item))
}

// Get handles GET /v1/{kind}/{id}.
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrNotFound)
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	item, err := c.service.Get(r.Context(), kind, id, mw.GetPrincipal(r.Context()))
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.FromItem(item))
}

// Patch handles PATCH /v1/{kind}/{id}.
func (c *Controller) Patch(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrNotFound)
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req dto.PatchRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	patch := repository.ContentPatch{
		DisplayName: req.DisplayName,
		Description: req.Description,
		Language:    req.Language,
		CoverKey:    req.CoverKey,
		Data:        req.Data,
	}
	if req.Privacy != nil {
		pv := types.Privacy(*req.Privacy)
		patch.Privacy = &pv
	}
	p := mw.GetPrincipal(r.Context())
	item, err := c.service.Update(r.Context(), kind, id, p.UserID, patch)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.FromItem(item))
}

// Delete handles DELETE /v1/{kind}/{id}.
func (c *Controller) Delete(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrNotFound)
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p := mw.GetPrincipal(r.Context())
	if err := c.service.Delete(r.Context(), kind, id, p.UserID); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.NoContent(w)
}
