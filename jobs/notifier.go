package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthbook/hearthbook/internal/moderation"
)

// DecisionNotifier mails submitters when their ticket is decided. It
// implements the moderation notifier contract through the task queue.
type DecisionNotifier struct {
	pool   *pgxpool.Pool
	client *Client
}

// NewDecisionNotifier constructs a DecisionNotifier.
func NewDecisionNotifier(pool *pgxpool.Pool, client *Client) *DecisionNotifier {
	return &DecisionNotifier{pool: pool, client: client}
}

// TicketDecided enqueues the outcome mail for the submitter.
func (n *DecisionNotifier) TicketDecided(ctx context.Context, ticket moderation.Ticket) error {
	var email string
	err := n.pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, ticket.SubmittedBy).Scan(&email)
	if err != nil {
		return fmt.Errorf("jobs: submitter lookup: %w", err)
	}
	body := fmt.Sprintf("Your %s submission %q was %s.", ticket.Kind, ticket.Summary, ticket.Status)
	if ticket.Reason != "" {
		body += " Reason: " + ticket.Reason
	}
	_, err = n.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      email,
		Subject: fmt.Sprintf("Submission %s", ticket.Status),
		Body:    body,
	})
	return err
}

var _ moderation.Notifier = (*DecisionNotifier)(nil)
