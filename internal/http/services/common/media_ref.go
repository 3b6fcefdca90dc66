// Package common contiene validaciones compartidas entre services.
package common

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
	httperrors "github.com/ji-devs/ji-cloud-sub012/internal/http/errors"
	"github.com/ji-devs/ji-cloud-sub012/internal/media"
)

// CheckMediaRef valida que key haya sido emitida por el gateway, sea de uno de
// los kinds aceptados y pertenezca a owner. Referenciar una key ajena es 400:
// no se revela si existe.
func CheckMediaRef(ctx context.Context, repo repository.MediaRepository, field, key string, owner uuid.UUID, kinds ...media.Kind) error {
	kind, err := media.ParseKey(key)
	if err != nil {
		return httperrors.ErrInvalidParameter.WithDetail(field + ": invalid media key")
	}
	if len(kinds) > 0 {
		ok := false
		for _, k := range kinds {
			ok = ok || k == kind
		}
		if !ok {
			return httperrors.ErrInvalidParameter.WithDetail(field + ": media kind not allowed")
		}
	}
	obj, err := repo.Get(ctx, key)
	if err != nil {
		if repository.IsNotFound(err) {
			return httperrors.ErrInvalidParameter.WithDetail(field + ": unknown media key")
		}
		return err
	}
	if obj.OwnerID == nil || *obj.OwnerID != owner {
		return httperrors.ErrInvalidParameter.WithDetail(field + ": unknown media key")
	}
	return nil
}

// Text normaliza un campo de texto y valida su largo en runas.
// required rechaza el string vacío.
func Text(field string, v *string, max int, required bool) error {
	if v == nil {
		if required {
			return httperrors.ErrBadRequest.WithDetail(field + " is required")
		}
		return nil
	}
	*v = strings.TrimSpace(*v)
	if required && *v == "" {
		return httperrors.ErrBadRequest.WithDetail(field + " is required")
	}
	if utf8.RuneCountInString(*v) > max {
		return httperrors.ErrBadRequest.WithDetail(field + " is too long")
	}
	return nil
}
