package pg

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
)

// MediaRepo implementa repository.MediaRepository.
type MediaRepo struct{ db *DB }

func NewMediaRepo(db *DB) *MediaRepo { return &MediaRepo{db: db} }

var _ repository.MediaRepository = (*MediaRepo)(nil)

const (
	sqlMediaInsert = `INSERT INTO media_object (key, kind, owner_id, content_type, declared_size) VALUES ($1, $2, $3, $4, $5)`
	sqlMediaGet    = `SELECT key, kind, owner_id, content_type, declared_size, created_at FROM media_object WHERE key = $1`

	sqlMediaDelete = `DELETE FROM media_object m WHERE m.key = $1
	AND NOT EXISTS (SELECT 1 FROM content_item c WHERE c.cover_key = m.key)
	AND NOT EXISTS (SELECT 1 FROM users u WHERE u.profile_image_key = m.key)`

	sqlMediaExists = `SELECT EXISTS (SELECT 1 FROM media_object WHERE key = $1)`

	sqlMediaCanRead = `SELECT
		EXISTS (SELECT 1 FROM media_object WHERE key = $1 AND owner_id = $2)
		OR EXISTS (SELECT 1 FROM content_item WHERE cover_key = $1 AND (privacy <> 'private' OR owner_id = $2))
		OR EXISTS (SELECT 1 FROM users WHERE profile_image_key = $1)`
)

func (r *MediaRepo) Create(ctx context.Context, obj repository.MediaObject) error {
	_, err := r.db.Pool.Exec(ctx, sqlMediaInsert, obj.Key, obj.Kind, obj.OwnerID, obj.ContentType, obj.DeclaredSize)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *MediaRepo) Get(ctx context.Context, key string) (*repository.MediaObject, error) {
	var m repository.MediaObject
	err := r.db.Pool.QueryRow(ctx, sqlMediaGet, key).
		Scan(&m.Key, &m.Kind, &m.OwnerID, &m.ContentType, &m.DeclaredSize, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Delete no falla si la key no existe; ErrInUse si alguna fila la referencia.
func (r *MediaRepo) Delete(ctx context.Context, key string) error {
	tag, err := r.db.Pool.Exec(ctx, sqlMediaDelete, key)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrInUse
		}
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.db.Pool.QueryRow(ctx, sqlMediaExists, key).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return repository.ErrInUse
	}
	return nil
}

func (r *MediaRepo) CanRead(ctx context.Context, key string, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, sqlMediaCanRead, key, userID).Scan(&ok)
	return ok, err
}
