package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
	"github.com/ji-devs/ji-cloud-sub012/internal/domain/types"
)

// ContentRepo implementa repository.ContentRepository sobre content_item.
type ContentRepo struct {
	db  *DB
	now func() time.Time
}

func NewContentRepo(db *DB) *ContentRepo { return &ContentRepo{db: db, now: time.Now} }

var _ repository.ContentRepository = (*ContentRepo)(nil)

const contentColumns = `id, kind, owner_id, display_name, description, language, privacy, cover_key, data, created_at, updated_at`

const (
	sqlContentInsert = `INSERT INTO content_item (id, kind, owner_id, display_name, description, language, privacy, cover_key, data)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING created_at, updated_at`

	sqlContentGet = `SELECT ` + contentColumns + ` FROM content_item WHERE id = $1 AND kind = $2`

	sqlContentUpdate = `UPDATE content_item SET
		display_name = COALESCE($4, display_name),
		description = COALESCE($5, description),
		language = COALESCE($6, language),
		privacy = COALESCE($7, privacy),
		cover_key = COALESCE($8, cover_key),
		data = CASE WHEN $9::jsonb IS NULL THEN data ELSE data || $9::jsonb END,
		updated_at = now()
	WHERE id = $1 AND kind = $2 AND owner_id = $3
	RETURNING ` + contentColumns

	sqlContentDelete = `DELETE FROM content_item WHERE id = $1 AND kind = $2 AND owner_id = $3`
)

func scanContent(row pgx.Row) (*repository.ContentItem, error) {
	var (
		it      repository.ContentItem
		kind    string
		privacy string
		data    []byte
	)
	err := row.Scan(&it.ID, &kind, &it.OwnerID, &it.DisplayName, &it.Description, &it.Language,
		&privacy, &it.CoverKey, &data, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	it.Kind = types.EntityKind(kind)
	it.Privacy = types.Privacy(privacy)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &it.Data); err != nil {
			return nil, fmt.Errorf("content %s: decode data: %w", it.ID, err)
		}
	}
	return &it, nil
}

func encodeData(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Create inserta el item y su registro de índice en una transacción.
func (r *ContentRepo) Create(ctx context.Context, item *repository.ContentItem) error {
	if item.Data == nil {
		item.Data = map[string]any{}
	}
	data, err := encodeData(item.Data)
	if err != nil {
		return err
	}
	err = r.db.InTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, sqlContentInsert, item.ID, string(item.Kind), item.OwnerID,
			item.DisplayName, item.Description, item.Language, string(item.Privacy), item.CoverKey, data,
		).Scan(&item.CreatedAt, &item.UpdatedAt); err != nil {
			return err
		}
		_, err := enqueue(ctx, tx, r.db.Records.ContentRecord(item))
		return err
	})
	switch {
	case isUniqueViolation(err):
		return repository.ErrConflict
	case isForeignKeyViolation(err):
		return repository.ErrInvalidInput
	}
	return err
}

func (r *ContentRepo) Get(ctx context.Context, kind types.EntityKind, id uuid.UUID) (*repository.ContentItem, error) {
	return scanContent(r.db.Pool.QueryRow(ctx, sqlContentGet, id, string(kind)))
}

func (r *ContentRepo) Update(ctx context.Context, kind types.EntityKind, id, ownerID uuid.UUID, p repository.ContentPatch) (*repository.ContentItem, error) {
	data, err := encodeData(p.Data)
	if err != nil {
		return nil, err
	}
	var privacy *string
	if p.Privacy != nil {
		s := string(*p.Privacy)
		privacy = &s
	}

	var item *repository.ContentItem
	err = r.db.InTx(ctx, func(tx pgx.Tx) error {
		it, err := scanContent(tx.QueryRow(ctx, sqlContentUpdate, id, string(kind), ownerID,
			p.DisplayName, p.Description, p.Language, privacy, p.CoverKey, data))
		if err != nil {
			return err
		}
		if _, err := enqueue(ctx, tx, r.db.Records.ContentRecord(it)); err != nil {
			return err
		}
		item = it
		return nil
	})
	if isForeignKeyViolation(err) {
		return nil, repository.ErrInvalidInput
	}
	return item, err
}

func (r *ContentRepo) Delete(ctx context.Context, kind types.EntityKind, id, ownerID uuid.UUID) error {
	return r.db.InTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, sqlContentDelete, id, string(kind), ownerID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		_, err = enqueue(ctx, tx, r.db.Records.DeletedRecord(kind, id, r.now().UTC()))
		return err
	})
}
