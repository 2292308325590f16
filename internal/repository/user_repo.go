package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"printer-fieldops/internal/model"
)

// bootstrapLockKey serializes concurrent first-user creation.
const bootstrapLockKey int64 = 0x66_6f_70_73_62_6f_6f_74

const userColumns = `id, username, password_hash, hash_algorithm, role, active, created_at, updated_at, last_login_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (model.WebUser, error) {
	var (
		u         model.WebUser
		algorithm string
		role      string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &algorithm, &role,
		&u.Active, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt); err != nil {
		return model.WebUser{}, err
	}

	var err error
	if u.HashAlgorithm, err = model.ParseHashAlgorithm(algorithm); err != nil {
		return model.WebUser{}, fmt.Errorf("user %s: %w", u.ID, err)
	}
	if u.Role, err = model.ParseRole(role); err != nil {
		return model.WebUser{}, fmt.Errorf("user %s: %w", u.ID, err)
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.WebUser, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.WebUser{}, model.ErrUserNotFound
	}

	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM web_users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.WebUser{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.WebUser{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.WebUser, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM web_users WHERE lower(username) = lower($1)`,
		strings.TrimSpace(username)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.WebUser{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.WebUser{}, fmt.Errorf("find user by username: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM web_users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func insertUser(ctx context.Context, db DBTX, u model.WebUser) error {
	_, err := db.Exec(ctx,
		`INSERT INTO web_users (id, username, password_hash, hash_algorithm, role, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Username, u.PasswordHash, u.HashAlgorithm.String(), u.Role.String(), u.Active, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return model.ErrUserAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, u model.WebUser) error {
	return insertUser(ctx, r.db, u)
}

// CreateFirst inserts u only while the table is empty. The advisory lock makes
// two concurrent bootstraps serialize; the loser sees ErrBootstrapAlreadyDone.
func (r *UserRepository) CreateFirst(ctx context.Context, u model.WebUser) error {
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockKey); err != nil {
			return fmt.Errorf("acquire bootstrap lock: %w", err)
		}

		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM web_users`).Scan(&count); err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		if count > 0 {
			return model.ErrBootstrapAlreadyDone
		}

		return insertUser(ctx, tx, u)
	})
}

func (r *UserRepository) List(ctx context.Context) ([]model.WebUser, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM web_users ORDER BY lower(username)`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.WebUser, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Update applies the non-nil fields of patch and returns the stored row.
func (r *UserRepository) Update(ctx context.Context, id string, patch model.UserPatch, at time.Time) (model.WebUser, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.WebUser{}, model.ErrUserNotFound
	}

	var role *string
	if patch.Role != nil {
		name := patch.Role.String()
		role = &name
	}

	u, err := scanUser(r.db.QueryRow(ctx,
		`UPDATE web_users
		 SET role = COALESCE($2, role), active = COALESCE($3, active), updated_at = $4
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, role, patch.Active, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.WebUser{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.WebUser{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, update model.PasswordUpdate, at time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.ErrUserNotFound
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE web_users SET password_hash = $2, hash_algorithm = $3, updated_at = $4 WHERE id = $1`,
		id, update.Hash, update.Algorithm.String(), at)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// CompleteLogin stamps last_login_at and, when rehash is non-nil, swaps the
// digest in the same statement so a crash cannot leave them out of step.
func (r *UserRepository) CompleteLogin(ctx context.Context, id string, at time.Time, rehash *model.PasswordUpdate) error {
	var hash, algorithm *string
	if rehash != nil {
		name := rehash.Algorithm.String()
		hash, algorithm = &rehash.Hash, &name
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE web_users
		 SET last_login_at = $2,
		     updated_at = $2,
		     password_hash = COALESCE($3, password_hash),
		     hash_algorithm = COALESCE($4, hash_algorithm)
		 WHERE id = $1 AND active`,
		id, at, hash, algorithm)
	if err != nil {
		return fmt.Errorf("complete login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// ImportBatch inserts users in one transaction. Rows whose username already
// exists are reported back by username instead of failing the batch.
func (r *UserRepository) ImportBatch(ctx context.Context, users []model.WebUser) ([]model.WebUser, []string, error) {
	inserted := make([]model.WebUser, 0, len(users))
	duplicates := make([]string, 0)

	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		for _, u := range users {
			var id string
			err := tx.QueryRow(ctx,
				`INSERT INTO web_users (id, username, password_hash, hash_algorithm, role, active, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				 ON CONFLICT DO NOTHING
				 RETURNING id`,
				u.ID, u.Username, u.PasswordHash, u.HashAlgorithm.String(), u.Role.String(), u.Active, u.CreatedAt, u.UpdatedAt).
				Scan(&id)
			if errors.Is(err, pgx.ErrNoRows) {
				duplicates = append(duplicates, u.Username)
				continue
			}
			if err != nil {
				return fmt.Errorf("import user %q: %w", u.Username, err)
			}
			inserted = append(inserted, u)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return inserted, duplicates, nil
}
