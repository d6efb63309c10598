package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthbook/hearthbook/internal/platform/db"
)

// TxRepository is the transactional slice of the store. Everything a decision
// touches goes through one TxRepository instance so the ticket row, the
// target record and the tenant counters commit or roll back together.
type TxRepository interface {
	GetTicketForUpdate(ctx context.Context, id uuid.UUID) (Ticket, error)
	PendingTicketExists(ctx context.Context, kind TargetKind, targetID int64) (bool, error)
	InsertTicket(ctx context.Context, ticket Ticket) (Ticket, error)
	MarkDecided(ctx context.Context, id uuid.UUID, status TicketStatus, reason string, decidedBy int64) (Ticket, error)
	SetTargetStatus(ctx context.Context, kind TargetKind, targetID int64, status string) error
	TargetTitle(ctx context.Context, kind TargetKind, targetID int64) (string, error)
	AdjustCounters(ctx context.Context, tenantID int64, members, content, pending int64) error
}

// Repository is the workflow store.
type Repository interface {
	GetTicket(ctx context.Context, id uuid.UUID) (Ticket, error)
	ListTickets(ctx context.Context, tenantID *int64, status *TicketStatus) ([]Ticket, error)
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
}

// PGRepository implements Repository on Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const ticketColumns = `id, kind, target_id, tenant_id, submitted_by, status, summary, changes, reason, decided_by, decided_at, created_at, updated_at`

func (r *PGRepository) GetTicket(ctx context.Context, id uuid.UUID) (Ticket, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM approval_tickets WHERE id = $1`, id)
	return scanTicket(row)
}

func (r *PGRepository) ListTickets(ctx context.Context, tenantID *int64, status *TicketStatus) ([]Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM approval_tickets WHERE ($1::bigint IS NULL OR tenant_id = $1) AND ($2::text IS NULL OR status = $2) ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, tenantID, status)
	if err != nil {
		return nil, fmt.Errorf("moderation: list tickets: %w", err)
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ticket)
	}
	return out, rows.Err()
}

func (r *PGRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

func (p *pgTx) GetTicketForUpdate(ctx context.Context, id uuid.UUID) (Ticket, error) {
	row := p.tx.QueryRow(ctx, `SELECT `+ticketColumns+` FROM approval_tickets WHERE id = $1 FOR UPDATE`, id)
	return scanTicket(row)
}

func (p *pgTx) PendingTicketExists(ctx context.Context, kind TargetKind, targetID int64) (bool, error) {
	var exists bool
	err := p.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM approval_tickets
			WHERE kind = $1 AND target_id = $2 AND status = 'pending'
		)`, kind, targetID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("moderation: pending exists: %w", err)
	}
	return exists, nil
}

func (p *pgTx) InsertTicket(ctx context.Context, ticket Ticket) (Ticket, error) {
	changes, err := json.Marshal(ticket.Changes)
	if err != nil {
		return Ticket{}, fmt.Errorf("moderation: encode changes: %w", err)
	}
	row := p.tx.QueryRow(ctx, `
		INSERT INTO approval_tickets (id, kind, target_id, tenant_id, submitted_by, status, summary, changes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+ticketColumns,
		ticket.ID, ticket.Kind, ticket.TargetID, ticket.TenantID, ticket.SubmittedBy,
		ticket.Status, ticket.Summary, changes)
	inserted, err := scanTicket(row)
	if err != nil {
		return Ticket{}, mapConstraint(err)
	}
	return inserted, nil
}

// mapConstraint translates the partial unique index on pending tickets into
// the domain conflict, covering the race where two submissions pass the
// existence check before either commits.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrPendingExists
	}
	return err
}

func (p *pgTx) MarkDecided(ctx context.Context, id uuid.UUID, status TicketStatus, reason string, decidedBy int64) (Ticket, error) {
	row := p.tx.QueryRow(ctx, `
		UPDATE approval_tickets
		SET status = $2, reason = $3, decided_by = $4, decided_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING `+ticketColumns,
		id, status, reason, decidedBy)
	return scanTicket(row)
}

func (p *pgTx) SetTargetStatus(ctx context.Context, kind TargetKind, targetID int64, status string) error {
	var query string
	switch kind {
	case KindMember:
		query = `UPDATE tenant_members SET status = $2, updated_at = now() WHERE id = $1`
	case KindTenant:
		query = `UPDATE tenants SET status = $2, updated_at = now() WHERE id = $1`
	default:
		query = `UPDATE content_items SET status = $2, updated_at = now() WHERE id = $1 AND kind = $3`
	}
	args := []any{targetID, status}
	if kind != KindMember && kind != KindTenant {
		args = append(args, kind)
	}
	tag, err := p.tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("moderation: set target status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("moderation: target %s/%d: %w", kind, targetID, ErrTicketNotFound)
	}
	return nil
}

// TargetTitle reads the target's current human-readable name per kind, so
// the audit trail records what the reviewer actually saw at decision time.
func (p *pgTx) TargetTitle(ctx context.Context, kind TargetKind, targetID int64) (string, error) {
	var query string
	switch kind {
	case KindMember:
		query = `SELECT u.display_name FROM tenant_members m JOIN users u ON u.id = m.user_id WHERE m.id = $1`
	case KindTenant:
		query = `SELECT name FROM tenants WHERE id = $1`
	default:
		query = `SELECT title FROM content_items WHERE id = $1 AND kind = $2`
	}
	args := []any{targetID}
	if kind != KindMember && kind != KindTenant {
		args = append(args, kind)
	}
	var title string
	if err := p.tx.QueryRow(ctx, query, args...).Scan(&title); err != nil {
		return "", fmt.Errorf("moderation: target title: %w", err)
	}
	return title, nil
}

func (p *pgTx) AdjustCounters(ctx context.Context, tenantID int64, members, content, pending int64) error {
	tag, err := p.tx.Exec(ctx, `
		UPDATE tenants
		SET member_count = member_count + $2,
		    content_count = content_count + $3,
		    pending_approvals = pending_approvals + $4,
		    updated_at = now()
		WHERE id = $1`,
		tenantID, members, content, pending)
	if err != nil {
		return fmt.Errorf("moderation: adjust counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("moderation: tenant %d: %w", tenantID, ErrTicketNotFound)
	}
	return nil
}

func scanTicket(row pgx.Row) (Ticket, error) {
	var (
		ticket  Ticket
		changes []byte
		decided *time.Time
	)
	err := row.Scan(&ticket.ID, &ticket.Kind, &ticket.TargetID, &ticket.TenantID,
		&ticket.SubmittedBy, &ticket.Status, &ticket.Summary, &changes,
		&ticket.Reason, &ticket.DecidedBy, &decided, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ticket{}, ErrTicketNotFound
		}
		return Ticket{}, fmt.Errorf("moderation: scan ticket: %w", err)
	}
	ticket.DecidedAt = decided
	if len(changes) > 0 {
		if err := json.Unmarshal(changes, &ticket.Changes); err != nil {
			return Ticket{}, fmt.Errorf("moderation: decode changes: %w", err)
		}
	}
	return ticket, nil
}
