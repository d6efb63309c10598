package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository persists user profiles in Postgres. Permission overrides are a
// jsonb map of override keys to booleans.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, display_name, password_hash, tenant_id, implicit_role, role_id, permission_overrides, created_at, updated_at`

func (r *PGRepository) Get(ctx context.Context, id int64) (Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanProfile(row)
}

func (r *PGRepository) FindByEmail(ctx context.Context, email string) (Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanProfile(row)
}

func (r *PGRepository) ListByTenant(ctx context.Context, tenantID int64) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE tenant_id = $1 ORDER BY display_name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("users: list by tenant: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, profile)
	}
	return out, rows.Err()
}

func (r *PGRepository) Insert(ctx context.Context, profile Profile) (Profile, error) {
	overrides, err := encodeOverrides(profile.Overrides)
	if err != nil {
		return Profile{}, err
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, display_name, password_hash, tenant_id, implicit_role, role_id, permission_overrides)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		profile.Email, profile.DisplayName, profile.PasswordHash, profile.TenantID,
		profile.ImplicitRole, profile.RoleID, overrides)
	inserted, err := scanProfile(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Profile{}, ErrDuplicateEmail
		}
		return Profile{}, err
	}
	return inserted, nil
}

func (r *PGRepository) SetRole(ctx context.Context, userID int64, roleID *int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role_id = $2, updated_at = now() WHERE id = $1`, userID, roleID)
	if err != nil {
		return fmt.Errorf("users: set role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PGRepository) SetOverrides(ctx context.Context, userID int64, overrides map[string]bool) error {
	encoded, err := encodeOverrides(overrides)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE users SET permission_overrides = $2, updated_at = now() WHERE id = $1`, userID, encoded)
	if err != nil {
		return fmt.Errorf("users: set overrides: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var (
		profile   Profile
		overrides []byte
	)
	err := row.Scan(&profile.ID, &profile.Email, &profile.DisplayName, &profile.PasswordHash,
		&profile.TenantID, &profile.ImplicitRole, &profile.RoleID, &overrides,
		&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, fmt.Errorf("users: scan: %w", err)
	}
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &profile.Overrides); err != nil {
			return Profile{}, fmt.Errorf("users: decode overrides: %w", err)
		}
	}
	return profile, nil
}

func encodeOverrides(overrides map[string]bool) ([]byte, error) {
	if overrides == nil {
		overrides = map[string]bool{}
	}
	encoded, err := json.Marshal(overrides)
	if err != nil {
		return nil, fmt.Errorf("users: encode overrides: %w", err)
	}
	return encoded, nil
}
