package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntityKind identifica los tipos de fila que se espejan al índice de búsqueda.
type EntityKind string

const (
	EntityUser     EntityKind = "user"
	EntityJig      EntityKind = "jig"
	EntityPlaylist EntityKind = "playlist"
	EntityCourse   EntityKind = "course"
	EntityCircle   EntityKind = "circle"
)

// ContentKinds son los kinds servidos por los endpoints de contenido.
var ContentKinds = []EntityKind{EntityJig, EntityPlaylist, EntityCourse, EntityCircle}

// ParseContentKind acepta el singular o el plural usado en rutas ("jigs").
func ParseContentKind(s string) (EntityKind, bool) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s")
	for _, k := range ContentKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Valid reporta si el kind es indexable.
func (k EntityKind) Valid() bool {
	switch k {
	case EntityUser, EntityJig, EntityPlaylist, EntityCourse, EntityCircle:
		return true
	}
	return false
}

// Privacy controla quién puede leer un item de contenido.
type Privacy string

const (
	PrivacyPublic   Privacy = "public"
	PrivacyUnlisted Privacy = "unlisted"
	PrivacyPrivate  Privacy = "private"
)

func (p Privacy) Valid() bool {
	return p == PrivacyPublic || p == PrivacyUnlisted || p == PrivacyPrivate
}

// IndexRecord es la unidad que viaja por el outbox hacia el índice externo.
// Document ya está aplanado y contiene objectID y updatedAt; en bajas sólo
// objectID y _deleted.
type IndexRecord struct {
	Kind      EntityKind
	ObjectID  uuid.UUID
	Document  map[string]any
	Deleted   bool
	UpdatedAt time.Time
}

// ObjectKey es el objectID en el índice: "<kind>:<uuid>".
func (r IndexRecord) ObjectKey() string {
	return ObjectKey(r.Kind, r.ObjectID)
}

// ObjectKey compone el objectID de un registro.
func ObjectKey(kind EntityKind, id uuid.UUID) string {
	return string(kind) + ":" + id.String()
}

// ParseObjectKey es la inversa de ObjectKey.
func ParseObjectKey(s string) (EntityKind, uuid.UUID, error) {
	k, rest, ok := strings.Cut(s, ":")
	if !ok {
		return "", uuid.Nil, fmt.Errorf("object key %q: missing kind", s)
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("object key %q: %w", s, err)
	}
	kind := EntityKind(k)
	if !kind.Valid() {
		return "", uuid.Nil, fmt.Errorf("object key %q: unknown kind", s)
	}
	return kind, id, nil
}
