package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository persists tenants and membership records in Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const tenantColumns = `id, name, status, require_approval, member_count, content_count, pending_approvals, created_at, updated_at`

func (r *PGRepository) Get(ctx context.Context, id int64) (Tenant, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

func (r *PGRepository) List(ctx context.Context) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("tenants: list: %w", err)
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PGRepository) Insert(ctx context.Context, tenant Tenant) (Tenant, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO tenants (name, status, require_approval)
		VALUES ($1, $2, $3)
		RETURNING `+tenantColumns,
		tenant.Name, tenant.Status, tenant.RequireApproval)
	return scanTenant(row)
}

func (r *PGRepository) GetMember(ctx context.Context, id int64) (Member, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, user_id, status, created_at, updated_at
		FROM tenant_members WHERE id = $1`, id)
	return scanMember(row)
}

func (r *PGRepository) InsertMember(ctx context.Context, member Member) (Member, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO tenant_members (tenant_id, user_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, tenant_id, user_id, status, created_at, updated_at`,
		member.TenantID, member.UserID, member.Status)
	return scanMember(row)
}

// AdjustCounters applies a relative counter update in a single statement so
// concurrent transitions never lose increments.
func (r *PGRepository) AdjustCounters(ctx context.Context, tenantID int64, delta CounterDelta) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tenants
		SET member_count = member_count + $2,
		    content_count = content_count + $3,
		    pending_approvals = pending_approvals + $4,
		    updated_at = now()
		WHERE id = $1`,
		tenantID, delta.Members, delta.Content, delta.PendingApprovals)
	if err != nil {
		return fmt.Errorf("tenants: adjust counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

// SetStatus moves a tenant to a new lifecycle state.
func (r *PGRepository) SetStatus(ctx context.Context, tenantID int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tenants SET status = $2, updated_at = now() WHERE id = $1`, tenantID, status)
	if err != nil {
		return fmt.Errorf("tenants: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Status, &t.RequireApproval,
		&t.MemberCount, &t.ContentCount, &t.PendingApprovals, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrTenantNotFound
		}
		return Tenant{}, fmt.Errorf("tenants: scan: %w", err)
	}
	return t, nil
}

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.TenantID, &m.UserID, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, ErrMemberNotFound
		}
		return Member{}, fmt.Errorf("tenants: scan member: %w", err)
	}
	return m, nil
}
