// Package content contiene el service de jigs, playlists, courses y circles.
// Cada mutación escribe la fila y su registro de índice en una transacción
// (ver store/pg); este paquete sólo valida y aplica permisos.
package content

import (
	"context"

	"github.com/google/uuid"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
	"github.com/ji-devs/ji-cloud-sub012/internal/domain/types"
	httperrors "github.com/ji-devs/ji-cloud-sub012/internal/http/errors"
	"github.com/ji-devs/ji-cloud-sub012/internal/http/services/common"
	"github.com/ji-devs/ji-cloud-sub012/internal/media"
	"github.com/ji-devs/ji-cloud-sub012/internal/observability/logger"
)

// CreateInput es el item a crear.
type CreateInput struct {
	DisplayName string
	Description string
	Language    string
	Privacy     string
	CoverKey    *string
	Data        map[string]any
}

// Service define el CRUD de contenido.
type Service interface {
	Create(ctx context.Context, kind types.EntityKind, owner uuid.UUID, in CreateInput) (*repository.ContentItem, error)
	// Get responde ErrNotFound para items privados de otro usuario.
	Get(ctx context.Context, kind types.EntityKind, id uuid.UUID, viewer types.Principal) (*repository.ContentItem, error)
	Update(ctx context.Context, kind types.EntityKind, id, owner uuid.UUID, patch repository.ContentPatch) (*repository.ContentItem, error)
	Delete(ctx context.Context, kind types.EntityKind, id, owner uuid.UUID) error
}

type Deps struct {
	Content repository.ContentRepository
	Media   repository.MediaRepository
}

type contentService struct {
	deps Deps
}

func NewService(deps Deps) Service {
	return &contentService{deps: deps}
}

const (
	maxNameLen        = 255
	maxDescriptionLen = 5000
	maxLanguageLen    = 16
)

var coverKinds = []media.Kind{media.KindImageLibrary, media.KindAnimation}

func parsePrivacy(s string) (types.Privacy, error) {
	if s == "" {
		return types.PrivacyPrivate, nil
	}
	p := types.Privacy(s)
	if !p.Valid() {
		return "", httperrors.ErrBadRequest.WithDetail("privacy must be public, unlisted or private")
	}
	return p, nil
}

func (s *contentService) Create(ctx context.Context, kind types.EntityKind, owner uuid.UUID, in CreateInput) (*repository.ContentItem, error) {
	if err := common.Text("displayName", &in.DisplayName, maxNameLen, true); err != nil {
		return nil, err
	}
	if err := common.Text("description", &in.Description, maxDescriptionLen, false); err != nil {
		return nil, err
	}
	if err := common.Text("language", &in.Language, maxLanguageLen, false); err != nil {
		return nil, err
	}
	privacy, err := parsePrivacy(in.Privacy)
	if err != nil {
		return nil, err
	}
	if in.CoverKey != nil {
		if err := common.CheckMediaRef(ctx, s.deps.Media, "coverKey", *in.CoverKey, owner, coverKinds...); err != nil {
			return nil, err
		}
	}

	item := &repository.ContentItem{
		ID:          uuid.New(),
		Kind:        kind,
		OwnerID:     owner,
		DisplayName: in.DisplayName,
		Description: in.Description,
		Language:    in.Language,
		Privacy:     privacy,
		CoverKey:    in.CoverKey,
		Data:        in.Data,
	}
	if err := s.deps.Content.Create(ctx, item); err != nil {
		return nil, err
	}
	logger.From(ctx).Info("content created",
		logger.ObjectID(types.ObjectKey(kind, item.ID)), logger.UserID(owner.String()))
	return item, nil
}

func (s *contentService) Get(ctx context.Context, kind types.EntityKind, id uuid.UUID, viewer types.Principal) (*repository.ContentItem, error) {
	item, err := s.deps.Content.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if item.Privacy == types.PrivacyPrivate && !viewer.IsService() && (!viewer.IsUser() || viewer.UserID != item.OwnerID) {
		return nil, repository.ErrNotFound
	}
	return item, nil
}

func (s *contentService) Update(ctx context.Context, kind types.EntityKind, id, owner uuid.UUID, p repository.ContentPatch) (*repository.ContentItem, error) {
	if err := common.Text("displayName", p.DisplayName, maxNameLen, p.DisplayName != nil); err != nil {
		return nil, err
	}
	if err := common.Text("description", p.Description, maxDescriptionLen, false); err != nil {
		return nil, err
	}
	if err := common.Text("language", p.Language, maxLanguageLen, false); err != nil {
		return nil, err
	}
	if p.Privacy != nil && !p.Privacy.Valid() {
		return nil, httperrors.ErrBadRequest.WithDetail("privacy must be public, unlisted or private")
	}
	if p.CoverKey != nil {
		if err := common.CheckMediaRef(ctx, s.deps.Media, "coverKey", *p.CoverKey, owner, coverKinds...); err != nil {
			return nil, err
		}
	}
	item, err := s.deps.Content.Update(ctx, kind, id, owner, p)
	if err != nil {
		return nil, err
	}
	logger.From(ctx).Info("content updated", logger.ObjectID(types.ObjectKey(kind, id)))
	return item, nil
}

func (s *contentService) Delete(ctx context.Context, kind types.EntityKind, id, owner uuid.UUID) error {
	if err := s.deps.Content.Delete(ctx, kind, id, owner); err != nil {
		return err
	}
	logger.From(ctx).Info("content deleted", logger.ObjectID(types.ObjectKey(kind, id)))
	return nil
}
