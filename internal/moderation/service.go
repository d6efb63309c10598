package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/hearthbook/hearthbook/internal/audit"
	"github.com/hearthbook/hearthbook/internal/authz"
)

// SpecialChecker resolves special permissions for reviewer authority.
type SpecialChecker interface {
	CheckSpecial(ctx context.Context, p authz.Principal, name authz.SpecialPermission) (bool, error)
}

// Metrics records workflow transitions.
type Metrics interface {
	RecordTransition(kind string, approved bool)
}

// Notifier delivers post-decision notifications, typically through the task
// queue. Failures are logged and dropped.
type Notifier interface {
	TicketDecided(ctx context.Context, ticket Ticket) error
}

// Service runs the approval workflow.
type Service struct {
	repo     Repository
	registry Registry
	specials SpecialChecker
	auditor  audit.Emitter
	metrics  Metrics
	notifier Notifier
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, registry Registry, specials SpecialChecker, auditor audit.Emitter, logger *slog.Logger) *Service {
	if auditor == nil {
		auditor = audit.Discard{}
	}
	return &Service{repo: repo, registry: registry, specials: specials, auditor: auditor, logger: logger}
}

// WithMetrics attaches a transition recorder.
func (s *Service) WithMetrics(m Metrics) *Service {
	s.metrics = m
	return s
}

// WithNotifier attaches a decision notifier.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Get returns one ticket.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Ticket, error) {
	return s.repo.GetTicket(ctx, id)
}

// List returns tickets visible to the actor, optionally filtered by status.
func (s *Service) List(ctx context.Context, actor authz.Principal, status *TicketStatus) ([]Ticket, error) {
	if actor.ImplicitRole == authz.RoleSystemAdmin {
		return s.repo.ListTickets(ctx, nil, status)
	}
	return s.repo.ListTickets(ctx, actor.TenantID, status)
}

// Submit opens a pending ticket for a target. A target can hold at most one
// pending ticket at a time; a second submission is rejected outright rather
// than merged, so the original submitter's request stays intact.
func (s *Service) Submit(ctx context.Context, actor authz.Principal, sub Submission) (Ticket, error) {
	if _, ok := s.registry.Lookup(sub.Kind); !ok {
		return Ticket{}, fmt.Errorf("%w: %q", ErrUnknownTarget, sub.Kind)
	}

	ticket := Ticket{
		ID:          uuid.New(),
		Kind:        sub.Kind,
		TargetID:    sub.TargetID,
		TenantID:    sub.TenantID,
		SubmittedBy: actor.UserID,
		Status:      StatusPending,
		Summary:     sub.Summary,
		Changes:     sub.Changes,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.PendingTicketExists(ctx, sub.Kind, sub.TargetID)
		if err != nil {
			return err
		}
		if exists {
			return ErrPendingExists
		}
		inserted, err := tx.InsertTicket(ctx, ticket)
		if err != nil {
			return err
		}
		ticket = inserted
		if sub.TenantID != nil {
			return tx.AdjustCounters(ctx, *sub.TenantID, 0, 0, 1)
		}
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}

	s.auditor.Emit(ctx, s.event(actor, ticket, "moderation.submit", nil))
	return ticket, nil
}

// Decide resolves a pending ticket. The ticket row, the target record status
// and the tenant counters change in one transaction; a decided ticket can
// never be decided again.
func (s *Service) Decide(ctx context.Context, actor authz.Principal, id uuid.UUID, verdict Verdict) (Ticket, error) {
	var (
		decided Ticket
		title   string
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ticket, err := tx.GetTicketForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if ticket.Status != StatusPending {
			return errAlreadyDecided(ticket.Status)
		}
		if err := s.authorizeReviewer(ctx, actor, ticket); err != nil {
			return err
		}
		target, ok := s.registry.Lookup(ticket.Kind)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTarget, ticket.Kind)
		}

		// Titles can be edited between submit and decide; the audit trail
		// records the name current at decision time, not the snapshot.
		title, err = tx.TargetTitle(ctx, ticket.Kind, ticket.TargetID)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("moderation: resolve target title",
					slog.String("ticket_id", ticket.ID.String()), slog.Any("error", err))
			}
			title = ticket.Summary
		}

		outcome := target.OnReject
		status := StatusRejected
		if verdict.Approve {
			outcome = target.OnApprove
			status = StatusApproved
		}

		decided, err = tx.MarkDecided(ctx, id, status, verdict.Reason, actor.UserID)
		if err != nil {
			return err
		}
		if err := tx.SetTargetStatus(ctx, ticket.Kind, ticket.TargetID, outcome.Status); err != nil {
			return err
		}
		if ticket.TenantID != nil {
			members, content := int64(0), int64(0)
			if verdict.Approve {
				switch outcome.Counter {
				case CounterMember:
					members = 1
				case CounterContent:
					content = 1
				}
			}
			return tx.AdjustCounters(ctx, *ticket.TenantID, members, content, -1)
		}
		return nil
	})
	if err != nil {
		return Ticket{}, err
	}

	detail := map[string]any{"approved": verdict.Approve}
	if title != "" {
		detail["title"] = title
	}
	if verdict.Reason != "" {
		detail["reason"] = verdict.Reason
	}
	s.auditor.Emit(ctx, s.event(actor, decided, "moderation.decide", detail))
	if s.metrics != nil {
		s.metrics.RecordTransition(string(decided.Kind), verdict.Approve)
	}
	if s.notifier != nil {
		if err := s.notifier.TicketDecided(ctx, decided); err != nil && s.logger != nil {
			s.logger.Warn("moderation: notify decision", slog.String("ticket_id", decided.ID.String()), slog.Any("error", err))
		}
	}
	return decided, nil
}

// authorizeReviewer enforces who may decide a ticket. Tenant lifecycle
// tickets are platform governance: a tenant admin approving their own tenant
// would be self-certification, so only a platform administrator qualifies.
func (s *Service) authorizeReviewer(ctx context.Context, actor authz.Principal, ticket Ticket) error {
	if actor.ImplicitRole == authz.RoleSystemAdmin {
		return nil
	}
	if ticket.Kind == KindTenant {
		return ErrReviewerNotAllowed
	}
	if ticket.TenantID == nil || !actor.InTenant(*ticket.TenantID) {
		return ErrReviewerNotAllowed
	}
	granted, err := s.specials.CheckSpecial(ctx, actor, authz.SpecialApproveContent)
	if err != nil {
		return err
	}
	if !granted {
		return ErrReviewerNotAllowed
	}
	return nil
}

func (s *Service) event(actor authz.Principal, ticket Ticket, action string, detail map[string]any) audit.Event {
	return audit.Event{
		ActorID:    actor.UserID,
		TenantID:   ticket.TenantID,
		Action:     action,
		TargetKind: string(ticket.Kind),
		TargetID:   strconv.FormatInt(ticket.TargetID, 10),
		Detail:     detail,
	}
}
