package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthbook/hearthbook/internal/authz"
)

// PGRepository persists roles in Postgres. Privilege matrices and special
// permission maps are stored as jsonb so the closed vocabularies stay the
// single source of truth in Go code rather than in enum columns.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const roleColumns = `id, name, description, is_system_role, tenant_id, entity_privileges, special_permissions, created_at, updated_at`

func (r *PGRepository) Get(ctx context.Context, id int64) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	return scanRole(row)
}

func (r *PGRepository) FindByName(ctx context.Context, name string) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
	return scanRole(row)
}

// List returns all system roles plus, when tenantID is set, that tenant's
// custom roles. A nil tenantID returns the entire catalog.
func (r *PGRepository) List(ctx context.Context, tenantID *int64) ([]Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles ORDER BY is_system_role DESC, name`
	args := []any{}
	if tenantID != nil {
		query = `SELECT ` + roleColumns + ` FROM roles WHERE is_system_role OR tenant_id = $1 ORDER BY is_system_role DESC, name`
		args = append(args, *tenantID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

func (r *PGRepository) Insert(ctx context.Context, role Role) (Role, error) {
	privileges, specials, err := encodeGrants(role)
	if err != nil {
		return Role{}, err
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description, is_system_role, tenant_id, entity_privileges, special_permissions)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+roleColumns,
		role.Name, role.Description, role.IsSystem, role.TenantID, privileges, specials)
	inserted, err := scanRole(row)
	if err != nil {
		return Role{}, mapConstraint(err)
	}
	return inserted, nil
}

func (r *PGRepository) Update(ctx context.Context, role Role) (Role, error) {
	privileges, specials, err := encodeGrants(role)
	if err != nil {
		return Role{}, err
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE roles
		SET name = $2, description = $3, entity_privileges = $4, special_permissions = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+roleColumns,
		role.ID, role.Name, role.Description, privileges, specials)
	updated, err := scanRole(row)
	if err != nil {
		return Role{}, mapConstraint(err)
	}
	return updated, nil
}

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("roles: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

func (r *PGRepository) CountAssignedUsers(ctx context.Context, roleID int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users WHERE role_id = $1`, roleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("roles: count assigned users: %w", err)
	}
	return count, nil
}

func scanRole(row pgx.Row) (Role, error) {
	var (
		role       Role
		privileges []byte
		specials   []byte
	)
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem, &role.TenantID,
		&privileges, &specials, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrRoleNotFound
		}
		return Role{}, fmt.Errorf("roles: scan: %w", err)
	}
	if err := json.Unmarshal(privileges, &role.Privileges); err != nil {
		return Role{}, fmt.Errorf("roles: decode privileges: %w", err)
	}
	if err := json.Unmarshal(specials, &role.Specials); err != nil {
		return Role{}, fmt.Errorf("roles: decode specials: %w", err)
	}
	if role.Specials == nil {
		role.Specials = authz.SpecialGrants{}
	}
	return role, nil
}

func encodeGrants(role Role) ([]byte, []byte, error) {
	if role.Privileges == nil {
		role.Privileges = []EntityPrivilege{}
	}
	if role.Specials == nil {
		role.Specials = authz.SpecialGrants{}
	}
	privileges, err := json.Marshal(role.Privileges)
	if err != nil {
		return nil, nil, fmt.Errorf("roles: encode privileges: %w", err)
	}
	specials, err := json.Marshal(role.Specials)
	if err != nil {
		return nil, nil, fmt.Errorf("roles: encode specials: %w", err)
	}
	return privileges, specials, nil
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateName
	}
	return err
}
