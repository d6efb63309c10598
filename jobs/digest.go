package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/hearthbook/hearthbook/internal/jobs"
)

// ModerationDigestJob mails family administrators a summary of their pending
// approval queue.
type ModerationDigestJob struct {
	Pool    *pgxpool.Pool
	Client  *Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewModerationDigestJob initialises the digest handler.
func NewModerationDigestJob(pool *pgxpool.Pool, client *Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *ModerationDigestJob {
	return &ModerationDigestJob{Pool: pool, Client: client, Logger: logger, Metrics: metrics}
}

type digestRow struct {
	tenantID   int64
	tenantName string
	adminEmail string
	pending    int64
}

// Handle processes TaskTypeModerationDigest tasks.
func (j *ModerationDigestJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.Metrics.Track("moderation_digest")
	return tracker.End(j.run(ctx))
}

func (j *ModerationDigestJob) run(ctx context.Context) error {
	rows, err := j.Pool.Query(ctx, `
		SELECT t.id, t.name, u.email, t.pending_approvals
		FROM tenants t
		JOIN users u ON u.tenant_id = t.id AND u.implicit_role = 'tenant_admin'
		WHERE t.status = 'active' AND t.pending_approvals > 0
		ORDER BY t.id`)
	if err != nil {
		return fmt.Errorf("jobs: digest query: %w", err)
	}
	defer rows.Close()

	var digests []digestRow
	for rows.Next() {
		var d digestRow
		if err := rows.Scan(&d.tenantID, &d.tenantName, &d.adminEmail, &d.pending); err != nil {
			return fmt.Errorf("jobs: digest scan: %w", err)
		}
		digests = append(digests, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, d := range digests {
		payload := SendEmailPayload{
			To:      d.adminEmail,
			Subject: fmt.Sprintf("%s: %d approvals waiting", d.tenantName, d.pending),
			Body:    fmt.Sprintf("Your family community has %d items waiting for review.", d.pending),
		}
		if _, err := j.Client.EnqueueSendEmail(ctx, payload); err != nil {
			j.Logger.Warn("jobs: enqueue digest mail",
				slog.Int64("tenant_id", d.tenantID), slog.Any("error", err))
		}
	}
	return nil
}
