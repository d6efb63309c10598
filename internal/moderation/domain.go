// Package moderation implements the approval workflow: submissions become
// pending tickets, reviewers decide them, and every decision atomically
// updates the ticket, the target record and the tenant counters.
package moderation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hearthbook/hearthbook/internal/authz"
	"github.com/hearthbook/hearthbook/internal/shared"
)

// TargetKind names what a ticket is about. Content kinds reuse the entity
// type vocabulary; member and tenant tickets cover governance transitions.
type TargetKind string

const (
	KindMember TargetKind = "member"
	KindTenant TargetKind = "tenant"
)

// ContentKind wraps an entity type as a ticket target kind.
func ContentKind(entity authz.EntityType) TargetKind {
	return TargetKind(entity)
}

// TicketStatus is the lifecycle state of an approval ticket. Transitions are
// monotonic: a ticket leaves pending exactly once and never returns.
type TicketStatus string

const (
	StatusPending  TicketStatus = "pending"
	StatusApproved TicketStatus = "approved"
	StatusRejected TicketStatus = "rejected"
)

// FieldChange records one proposed field edit carried by a ticket, so
// reviewers see what they are approving.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Ticket is one approval request.
type Ticket struct {
	ID          uuid.UUID     `json:"id"`
	Kind        TargetKind    `json:"kind"`
	TargetID    int64         `json:"target_id"`
	TenantID    *int64        `json:"tenant_id,omitempty"`
	SubmittedBy int64         `json:"submitted_by"`
	Status      TicketStatus  `json:"status"`
	Summary     string        `json:"summary"`
	Changes     []FieldChange `json:"changes,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	DecidedBy   *int64        `json:"decided_by,omitempty"`
	DecidedAt   *time.Time    `json:"decided_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Submission is the input for opening a ticket.
type Submission struct {
	Kind     TargetKind
	TargetID int64
	TenantID *int64
	Summary  string
	Changes  []FieldChange
}

// Verdict is a reviewer's decision on a pending ticket.
type Verdict struct {
	Approve bool
	Reason  string
}

// ErrTicketNotFound indicates the requested ticket does not exist.
var ErrTicketNotFound = fmt.Errorf("moderation: ticket %w", shared.ErrNotFound)

// ErrPendingExists indicates the target already has an open ticket.
var ErrPendingExists = fmt.Errorf("moderation: target already has a pending ticket: %w", shared.ErrConflict)

// ErrReviewerNotAllowed indicates the actor lacks authority over the ticket.
var ErrReviewerNotAllowed = fmt.Errorf("moderation: reviewer lacks authority for this ticket: %w", shared.ErrPermission)

// ErrUnknownTarget indicates the ticket kind has no registered outcome.
var ErrUnknownTarget = fmt.Errorf("moderation: unknown target kind: %w", shared.ErrValidation)

func errAlreadyDecided(current TicketStatus) error {
	return fmt.Errorf("moderation: ticket already %s: %w", current, shared.ErrConflict)
}
