package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthbook/hearthbook/internal/authz"
)

// PGRepository persists content items in Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const itemColumns = `id, kind, tenant_id, author_id, title, body, status, created_at, updated_at`

func (r *PGRepository) Get(ctx context.Context, kind authz.EntityType, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM content_items WHERE kind = $1 AND id = $2`, kind, id)
	return scanItem(row)
}

// ListByTenant returns a tenant's items of one kind, filtered to the
// statuses the caller may see.
func (r *PGRepository) ListByTenant(ctx context.Context, tenantID int64, kind authz.EntityType, statuses []Status) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+itemColumns+` FROM content_items
		WHERE tenant_id = $1 AND kind = $2 AND status = ANY($3)
		ORDER BY created_at DESC`,
		tenantID, kind, statuses)
	if err != nil {
		return nil, fmt.Errorf("content: list: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *PGRepository) Insert(ctx context.Context, item Item) (Item, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO content_items (kind, tenant_id, author_id, title, body, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+itemColumns,
		item.Kind, item.TenantID, item.AuthorID, item.Title, item.Body, item.Status)
	return scanItem(row)
}

func (r *PGRepository) Update(ctx context.Context, item Item) (Item, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE content_items
		SET title = $3, body = $4, updated_at = now()
		WHERE kind = $1 AND id = $2
		RETURNING `+itemColumns,
		item.Kind, item.ID, item.Title, item.Body)
	return scanItem(row)
}

func (r *PGRepository) SetStatus(ctx context.Context, kind authz.EntityType, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE content_items SET status = $3, updated_at = now() WHERE kind = $1 AND id = $2`, kind, id, status)
	if err != nil {
		return fmt.Errorf("content: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, kind authz.EntityType, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM content_items WHERE kind = $1 AND id = $2`, kind, id)
	if err != nil {
		return fmt.Errorf("content: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.Kind, &item.TenantID, &item.AuthorID,
		&item.Title, &item.Body, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, fmt.Errorf("content: scan: %w", err)
	}
	return item, nil
}
