package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/types"
)

// ContentItem es un jig, playlist, course o circle.
type ContentItem struct {
	ID          uuid.UUID
	Kind        types.EntityKind
	OwnerID     uuid.UUID
	DisplayName string
	Description string
	Language    string
	Privacy     types.Privacy
	CoverKey    *string
	Data        map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ContentPatch contiene los campos editables. nil = sin cambio.
type ContentPatch struct {
	DisplayName *string
	Description *string
	Language    *string
	Privacy     *types.Privacy
	CoverKey    *string
	Data        map[string]any
}

// ContentRepository define operaciones sobre content_item.
// Create, Update y Delete encolan el registro de índice en la misma transacción.
type ContentRepository interface {
	Create(ctx context.Context, item *ContentItem) error

	// Get retorna ErrNotFound si no existe o es de otro kind.
	Get(ctx context.Context, kind types.EntityKind, id uuid.UUID) (*ContentItem, error)

	// Update aplica el patch si ownerID es dueño; ErrNotFound en caso contrario.
	Update(ctx context.Context, kind types.EntityKind, id, ownerID uuid.UUID, patch ContentPatch) (*ContentItem, error)

	// Delete borra si ownerID es dueño; ErrNotFound en caso contrario.
	Delete(ctx context.Context, kind types.EntityKind, id, ownerID uuid.UUID) error
}
