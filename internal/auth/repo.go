package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tripcast/tripcast-admin/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Admin, error)
	FindByID(ctx context.Context, id int64) (*Admin, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const adminColumns = `id, email, password_hash, name, status, is_superuser, COALESCE(last_login_at, 'epoch'::timestamptz), created_at, updated_at`

func (r *PGRepository) scanAdmin(row pgx.Row) (*Admin, error) {
	var admin Admin
	err := row.Scan(&admin.ID, &admin.Email, &admin.PasswordHash, &admin.Name, &admin.Status, &admin.Superuser, &admin.LastLoginAt, &admin.CreatedAt, &admin.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &admin, nil
}

// FindByEmail fetches an admin by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Admin, error) {
	return r.scanAdmin(r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE email = $1`, email))
}

// FindByID fetches an admin by identifier.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Admin, error) {
	return r.scanAdmin(r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id))
}

// TouchLastLogin records the latest successful login time.
func (r *PGRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE admins SET last_login_at = $2, updated_at = NOW() WHERE id = $1`, id, at.UTC())
	return err
}

var _ Repository = (*PGRepository)(nil)
