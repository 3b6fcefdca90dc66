package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MediaObject es la fila que registra una key emitida por el gateway.
type MediaObject struct {
	Key          string
	Kind         string
	OwnerID      *uuid.UUID
	ContentType  string
	DeclaredSize int64
	CreatedAt    time.Time
}

// MediaRepository define operaciones sobre media_object.
type MediaRepository interface {
	Create(ctx context.Context, obj MediaObject) error

	// Get retorna ErrNotFound si la key no fue emitida.
	Get(ctx context.Context, key string) (*MediaObject, error)

	// Delete borra la fila; retorna ErrInUse si alguna fila la referencia.
	// Borrar una key inexistente no es error.
	Delete(ctx context.Context, key string) error

	// CanRead reporta si userID puede leer la key: dueño, o referenciada por
	// contenido no privado o por un perfil.
	CanRead(ctx context.Context, key string, userID uuid.UUID) (bool, error)
}
