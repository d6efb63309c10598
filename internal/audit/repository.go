package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthbook/hearthbook/internal/shared"
)

// PGEmitter writes events to Postgres. Insert failures are logged at warn
// level and dropped; audit must never take the primary operation down.
type PGEmitter struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPGEmitter constructs a PGEmitter.
func NewPGEmitter(pool *pgxpool.Pool, logger *slog.Logger) *PGEmitter {
	return &PGEmitter{pool: pool, logger: logger}
}

func (e *PGEmitter) Emit(ctx context.Context, event Event) {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		e.warn("audit: encode detail", err, event)
		return
	}
	_, err = e.pool.Exec(ctx, `
		INSERT INTO audit_events (actor_id, tenant_id, action, target_kind, target_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ActorID, event.TenantID, event.Action, event.TargetKind, event.TargetID, detail)
	if err != nil {
		e.warn("audit: insert event", err, event)
	}
}

func (e *PGEmitter) warn(msg string, err error, event Event) {
	if e.logger == nil {
		return
	}
	e.logger.Warn(msg,
		slog.String("action", event.Action),
		slog.String("target_kind", event.TargetKind),
		slog.String("target_id", event.TargetID),
		slog.Any("error", err))
}

// Query filters the audit log.
type Query struct {
	TenantID *int64
	Action   string
	Limit    int
	Offset   int
}

// List reads events for the audit viewer, newest first.
func (e *PGEmitter) List(ctx context.Context, q Query) ([]Event, error) {
	limit := q.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := e.pool.Query(ctx, `
		SELECT id, occurred_at, actor_id, tenant_id, action, target_kind, target_id, detail
		FROM audit_events
		WHERE ($1::bigint IS NULL OR tenant_id = $1)
		  AND ($2::text = '' OR action = $2)
		ORDER BY occurred_at DESC
		LIMIT $3 OFFSET $4`,
		q.TenantID, q.Action, limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			event  Event
			detail []byte
		)
		err := rows.Scan(&event.ID, &event.OccurredAt, &event.ActorID, &event.TenantID,
			&event.Action, &event.TargetKind, &event.TargetID, &detail)
		if err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &event.Detail); err != nil {
				return nil, fmt.Errorf("audit: decode detail: %w", err)
			}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// Count returns the number of events matching the query filters.
func (e *PGEmitter) Count(ctx context.Context, q Query) (int, error) {
	var total int
	err := e.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM audit_events
		WHERE ($1::bigint IS NULL OR tenant_id = $1)
		  AND ($2::text = '' OR action = $2)`,
		q.TenantID, q.Action).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("audit: count: %w", err)
	}
	return total, nil
}

var _ Emitter = (*PGEmitter)(nil)

// ErrInvalidQuery guards the audit viewer inputs.
var ErrInvalidQuery = fmt.Errorf("audit: invalid query: %w", shared.ErrValidation)
