// Package search espeja usuarios y contenido al servicio de búsqueda externo.
// Los repositorios escriben el outbox en la misma transacción que la mutación;
// el Worker lo drena con semántica at-least-once.
package search

import (
	"time"

	"github.com/google/uuid"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
	"github.com/ji-devs/ji-cloud-sub012/internal/domain/types"
)

// Campos reservados del documento.
const (
	FieldObjectID  = "objectID"
	FieldUpdatedAt = "updatedAt"
	FieldDeleted   = "_deleted"
)

// Builder arma el documento de cada entidad. El shape es determinista:
// mismo input, mismas claves y valores.
type Builder struct{}

var _ repository.RecordBuilder = Builder{}

// UserRecord nunca incluye el email.
func (Builder) UserRecord(u *repository.User) types.IndexRecord {
	fields := map[string]any{
		"displayName": u.DisplayName,
		"givenName":   u.GivenName,
		"familyName":  u.FamilyName,
		"language":    u.Language,
		"createdAt":   u.CreatedAt.UnixMilli(),
	}
	if u.ProfileImageKey != nil {
		fields["profileImageKey"] = *u.ProfileImageKey
	}
	return record(types.EntityUser, u.ID, u.UpdatedAt, fields)
}

func (Builder) ContentRecord(it *repository.ContentItem) types.IndexRecord {
	fields := map[string]any{
		"kind":        string(it.Kind),
		"ownerId":     it.OwnerID.String(),
		"displayName": it.DisplayName,
		"description": it.Description,
		"language":    it.Language,
		"privacy":     string(it.Privacy),
		"createdAt":   it.CreatedAt.UnixMilli(),
	}
	if it.CoverKey != nil {
		fields["coverKey"] = *it.CoverKey
	}
	if len(it.Data) > 0 {
		fields["data"] = it.Data
	}
	return record(it.Kind, it.ID, it.UpdatedAt, fields)
}

// DeletedRecord sólo lleva objectID y _deleted.
func (Builder) DeletedRecord(kind types.EntityKind, id uuid.UUID, at time.Time) types.IndexRecord {
	return types.IndexRecord{
		Kind:     kind,
		ObjectID: id,
		Document: map[string]any{
			FieldObjectID: types.ObjectKey(kind, id),
			FieldDeleted:  true,
		},
		Deleted:   true,
		UpdatedAt: at,
	}
}

func record(kind types.EntityKind, id uuid.UUID, updatedAt time.Time, fields map[string]any) types.IndexRecord {
	doc := Flatten(fields)
	doc[FieldObjectID] = types.ObjectKey(kind, id)
	doc[FieldUpdatedAt] = updatedAt.UnixMilli()
	return types.IndexRecord{Kind: kind, ObjectID: id, Document: doc, UpdatedAt: updatedAt}
}
