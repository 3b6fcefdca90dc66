package pg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
)

// TokenRepo implementa repository.TokenRepository.
type TokenRepo struct{ db *DB }

func NewTokenRepo(db *DB) *TokenRepo { return &TokenRepo{db: db} }

var _ repository.TokenRepository = (*TokenRepo)(nil)

const refreshColumns = `jti, user_id, family_id, rotated_from, issued_at, expires_at, used_at, revoked_at`

const (
	sqlRefreshInsert = `INSERT INTO refresh_token (jti, user_id, family_id, rotated_from, expires_at) VALUES ($1, $2, $3, $4, $5)`

	sqlRefreshConsume = `UPDATE refresh_token SET used_at = now()
	WHERE jti = $1 AND used_at IS NULL AND revoked_at IS NULL AND expires_at > now()
	RETURNING ` + refreshColumns

	sqlRefreshByJTI = `SELECT ` + refreshColumns + ` FROM refresh_token WHERE jti = $1`

	sqlRefreshActive = `SELECT EXISTS (SELECT 1 FROM refresh_token
	WHERE jti = $1 AND used_at IS NULL AND revoked_at IS NULL AND expires_at > now())`

	sqlRefreshRevokeFamily = `UPDATE refresh_token SET revoked_at = now() WHERE family_id = $1 AND revoked_at IS NULL`
	sqlRefreshRevokeUser   = `UPDATE refresh_token SET revoked_at = now() WHERE user_id = $1 AND used_at IS NULL AND revoked_at IS NULL`

	sqlSingleUseInsert  = `INSERT INTO single_use_token (jti, user_id, kind, expires_at) VALUES ($1, $2, $3, $4)`
	sqlSingleUseConsume = `UPDATE single_use_token SET used_at = now() WHERE jti = $1 AND kind = $2 AND used_at IS NULL`
	sqlSingleUseExists  = `SELECT EXISTS (SELECT 1 FROM single_use_token WHERE jti = $1 AND kind = $2)`
)

func scanRefresh(row pgx.Row) (*repository.RefreshToken, error) {
	var t repository.RefreshToken
	err := row.Scan(&t.JTI, &t.UserID, &t.FamilyID, &t.RotatedFrom, &t.IssuedAt, &t.ExpiresAt, &t.UsedAt, &t.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TokenRepo) CreateRefresh(ctx context.Context, in repository.CreateRefreshInput) error {
	_, err := r.db.Pool.Exec(ctx, sqlRefreshInsert, in.JTI, in.UserID, in.FamilyID, in.RotatedFrom, in.ExpiresAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

// ConsumeRefresh es el punto de serialización de la rotación: sólo un
// request gana el UPDATE condicional sobre used_at.
func (r *TokenRepo) ConsumeRefresh(ctx context.Context, jti uuid.UUID) (*repository.RefreshToken, error) {
	t, err := scanRefresh(r.db.Pool.QueryRow(ctx, sqlRefreshConsume, jti))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	prev, err := scanRefresh(r.db.Pool.QueryRow(ctx, sqlRefreshByJTI, jti))
	if err != nil {
		return nil, err
	}
	if prev.UsedAt != nil {
		return prev, repository.ErrAlreadyUsed
	}
	return prev, repository.ErrRevoked
}

func (r *TokenRepo) IsRefreshActive(ctx context.Context, jti uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, sqlRefreshActive, jti).Scan(&ok)
	return ok, err
}

func (r *TokenRepo) RevokeFamily(ctx context.Context, familyID uuid.UUID) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, sqlRefreshRevokeFamily, familyID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *TokenRepo) RevokeAllByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, sqlRefreshRevokeUser, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *TokenRepo) CreateSingleUse(ctx context.Context, jti, userID uuid.UUID, kind string, expiresAt time.Time) error {
	_, err := r.db.Pool.Exec(ctx, sqlSingleUseInsert, jti, userID, kind, expiresAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *TokenRepo) ConsumeSingleUse(ctx context.Context, jti uuid.UUID, kind string) error {
	tag, err := r.db.Pool.Exec(ctx, sqlSingleUseConsume, jti, kind)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.db.Pool.QueryRow(ctx, sqlSingleUseExists, jti, kind).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return repository.ErrAlreadyUsed
	}
	return repository.ErrNotFound
}
