package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/types"
)

// OutboxState es el estado de una fila del outbox.
type OutboxState string

const (
	OutboxPending  OutboxState = "pending"
	OutboxDone     OutboxState = "done"
	OutboxPoisoned OutboxState = "poisoned"
)

// OutboxRow es una fila reclamada por un worker.
type OutboxRow struct {
	ID         int64
	Kind       types.EntityKind
	ObjectID   uuid.UUID
	Payload    []byte
	Deleted    bool
	EnqueuedAt time.Time
	// Attempts cuenta todos los envíos fallidos; Rejections sólo los 4xx
	// definitivos, que son los que llevan a poisoned.
	Attempts   int
	Rejections int
}

// OutboxStats resume el estado del outbox.
type OutboxStats struct {
	Pending  int64
	Done     int64
	Poisoned int64
	// OldestPending es cero si no hay pendientes.
	OldestPending time.Time
}

// OutboxRepository es el lado consumidor del outbox de búsqueda.
// El lado productor vive dentro de las transacciones de cada repositorio.
type OutboxRepository interface {
	// Enqueue agrega un registro fuera de una mutación (reindex manual).
	Enqueue(ctx context.Context, rec types.IndexRecord) (int64, error)

	// Compact marca como done las filas pendientes que tienen una fila más
	// nueva pendiente para el mismo objeto y no están tomadas.
	Compact(ctx context.Context) (int64, error)

	// Claim toma hasta limit filas cabeza-de-fila por objeto y las arrienda
	// por lease. Dos workers nunca reciben filas del mismo objeto.
	Claim(ctx context.Context, limit int, lease time.Duration) ([]OutboxRow, error)

	MarkDone(ctx context.Context, ids []int64) error

	// MarkRetry incrementa attempts (y rejections si rejected) y reprograma
	// la fila.
	MarkRetry(ctx context.Context, id int64, next time.Time, lastErr string, rejected bool) error

	// MarkPoisoned incrementa attempts y rejections y saca la fila de circulación.
	MarkPoisoned(ctx context.Context, id int64, lastErr string) error

	Stats(ctx context.Context) (OutboxStats, error)

	// Requeue devuelve las filas poisoned a pending con los contadores en cero.
	Requeue(ctx context.Context) (int64, error)
}

// RecordBuilder construye el IndexRecord de cada entidad.
// Lo implementa el sincronizador de búsqueda y lo usan los repositorios al
// escribir el outbox.
type RecordBuilder interface {
	UserRecord(u *User) types.IndexRecord
	ContentRecord(item *ContentItem) types.IndexRecord
	DeletedRecord(kind types.EntityKind, id uuid.UUID, at time.Time) types.IndexRecord
}
