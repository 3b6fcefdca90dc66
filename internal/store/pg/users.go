package pg

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ji-devs/ji-cloud-sub012/internal/domain/repository"
)

// UserRepo implementa repository.UserRepository.
type UserRepo struct{ db *DB }

// NewUserRepo construye el repositorio de usuarios.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

var _ repository.UserRepository = (*UserRepo)(nil)

const userColumns = `id, issuer_sub, email, email_verified, display_name, given_name, family_name,
	language, profile_image_key, scopes, session_version, created_at, updated_at`

const (
	sqlUserByID  = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	sqlUserBySub = `SELECT ` + userColumns + ` FROM users WHERE issuer_sub = $1`

	sqlUserInsert = `INSERT INTO users (id, issuer_sub, email, email_verified, display_name, scopes)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (issuer_sub) DO NOTHING
	RETURNING ` + userColumns

	sqlUserUpdateProfile = `UPDATE users SET
		display_name = COALESCE($2, display_name),
		given_name = COALESCE($3, given_name),
		family_name = COALESCE($4, family_name),
		language = COALESCE($5, language),
		profile_image_key = COALESCE($6, profile_image_key),
		updated_at = now()
	WHERE id = $1
	RETURNING ` + userColumns

	sqlUserVersion     = `SELECT session_version FROM users WHERE id = $1`
	sqlUserBumpVersion = `UPDATE users SET session_version = session_version + 1 WHERE id = $1 RETURNING session_version`
	sqlUserVerifyEmail = `UPDATE users SET email_verified = TRUE, updated_at = now() WHERE id = $1`
)

func scanUser(row pgx.Row) (*repository.User, error) {
	var (
		u       repository.User
		email   *string
		version int32
	)
	err := row.Scan(&u.ID, &u.IssuerSub, &email, &u.EmailVerified, &u.DisplayName, &u.GivenName,
		&u.FamilyName, &u.Language, &u.ProfileImageKey, &u.Scopes, &version, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if email != nil {
		u.Email = *email
	}
	u.Version = uint32(version)
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	return scanUser(r.db.Pool.QueryRow(ctx, sqlUserByID, id))
}

func (r *UserRepo) GetByIssuerSub(ctx context.Context, sub string) (*repository.User, error) {
	return scanUser(r.db.Pool.QueryRow(ctx, sqlUserBySub, sub))
}

// Ensure resuelve el primer login: si el sujeto no existe lo inserta y
// encola su registro de índice en la misma transacción.
func (r *UserRepo) Ensure(ctx context.Context, in repository.EnsureUserInput) (*repository.User, bool, error) {
	if in.IssuerSub == "" {
		return nil, false, repository.ErrInvalidInput
	}
	if u, err := r.GetByIssuerSub(ctx, in.IssuerSub); err == nil {
		return u, false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	var (
		user    *repository.User
		created bool
	)
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		var email *string
		if in.Email != "" {
			email = &in.Email
		}
		u, err := scanUser(tx.QueryRow(ctx, sqlUserInsert,
			uuid.New(), in.IssuerSub, email, in.EmailVerified, in.DisplayName, in.Scopes))
		if errors.Is(err, repository.ErrNotFound) {
			// otro request creó el usuario entre el SELECT y el INSERT
			u, err = scanUser(tx.QueryRow(ctx, sqlUserBySub, in.IssuerSub))
			if err != nil {
				return err
			}
			user, created = u, false
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := enqueue(ctx, tx, r.db.Records.UserRecord(u)); err != nil {
			return err
		}
		user, created = u, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return user, created, nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, p repository.ProfilePatch) (*repository.User, error) {
	var user *repository.User
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		u, err := scanUser(tx.QueryRow(ctx, sqlUserUpdateProfile, id,
			p.DisplayName, p.GivenName, p.FamilyName, p.Language, p.ProfileImageKey))
		if err != nil {
			return err
		}
		if _, err := enqueue(ctx, tx, r.db.Records.UserRecord(u)); err != nil {
			return err
		}
		user = u
		return nil
	})
	if isForeignKeyViolation(err) {
		return nil, repository.ErrInvalidInput
	}
	return user, err
}

func (r *UserRepo) Version(ctx context.Context, id uuid.UUID) (uint32, error) {
	var v int32
	if err := r.db.Pool.QueryRow(ctx, sqlUserVersion, id).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, err
	}
	return uint32(v), nil
}

func (r *UserRepo) BumpVersion(ctx context.Context, id uuid.UUID) (uint32, error) {
	var v int32
	if err := r.db.Pool.QueryRow(ctx, sqlUserBumpVersion, id).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, err
	}
	return uint32(v), nil
}

func (r *UserRepo) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, sqlUserVerifyEmail, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
