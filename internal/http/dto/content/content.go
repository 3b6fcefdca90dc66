// Package content contiene los DTOs de /v1/{jigs,playlists,courses,circles}.
package content

import (
	"time"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
)

// CreateRequest es el body de POST /v1/{kind}.
type CreateRequest struct {
	DisplayName string         `json:"displayName"`
	Description string         `json:"description"`
	Language    string         `json:"language"`
	Privacy     string         `json:"privacy"`
	CoverKey    *string        `json:"coverKey"`
	Data        map[string]any `json:"data"`
}

// PatchRequest es el body de PATCH /v1/{kind}/{id}. Data se mezcla con la existente.
type PatchRequest struct {
	DisplayName *string        `json:"displayName"`
	Description *string        `json:"description"`
	Language    *string        `json:"language"`
	Privacy     *string        `json:"privacy"`
	CoverKey    *string        `json:"coverKey"`
	Data        map[string]any `json:"data"`
}

// Item es la representación de un item de contenido.
type Item struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	OwnerID     string         `json:"ownerId"`
	DisplayName string         `json:"displayName"`
	Description string         `json:"description"`
	Language    string         `json:"language"`
	Privacy     string         `json:"privacy"`
	CoverKey    *string        `json:"coverKey,omitempty"`
	Data        map[string]any `json:"data"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// FromItem arma el DTO.
func FromItem(it *repository.ContentItem) Item {
	data := it.Data
	if data == nil {
		data = map[string]any{}
	}
	return Item{
		ID:          it.ID.String(),
		Kind:        string(it.Kind),
		OwnerID:     it.OwnerID.String(),
		DisplayName: it.DisplayName,
		Description: it.Description,
		Language:    it.Language,
		Privacy:     string(it.Privacy),
		CoverKey:    it.CoverKey,
		Data:        data,
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}
}
