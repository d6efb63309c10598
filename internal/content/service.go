package content

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hearthbook/hearthbook/internal/authz"
	"github.com/hearthbook/hearthbook/internal/moderation"
	"github.com/hearthbook/hearthbook/internal/shared"
	"github.com/hearthbook/hearthbook/internal/tenants"
)

// Repository defines persistence operations for content items.
type Repository interface {
	Get(ctx context.Context, kind authz.EntityType, id int64) (Item, error)
	ListByTenant(ctx context.Context, tenantID int64, kind authz.EntityType, statuses []Status) ([]Item, error)
	Insert(ctx context.Context, item Item) (Item, error)
	Update(ctx context.Context, item Item) (Item, error)
	SetStatus(ctx context.Context, kind authz.EntityType, id int64, status Status) error
	Delete(ctx context.Context, kind authz.EntityType, id int64) error
}

// Decider resolves privileges and special permissions.
type Decider interface {
	Resolve(ctx context.Context, p authz.Principal, entity authz.EntityType, privilege authz.PrivilegeType, target authz.Ownership) (authz.Decision, error)
	CheckSpecial(ctx context.Context, p authz.Principal, name authz.SpecialPermission) (bool, error)
}

// TenantSource is the slice of the tenant store the content flow needs.
type TenantSource interface {
	Get(ctx context.Context, id int64) (tenants.Tenant, error)
	AdjustCounters(ctx context.Context, tenantID int64, delta tenants.CounterDelta) error
}

// Workflow opens approval tickets for guarded creations and edits.
type Workflow interface {
	Submit(ctx context.Context, actor authz.Principal, sub moderation.Submission) (moderation.Ticket, error)
}

// Service implements the guarded content flow: a creation either publishes
// directly or parks as pending behind an approval ticket, depending on the
// tenant's governance settings and the author's authority.
type Service struct {
	repo     Repository
	decider  Decider
	tenants  TenantSource
	workflow Workflow
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, decider Decider, tenantSource TenantSource, workflow Workflow, logger *slog.Logger) *Service {
	return &Service{repo: repo, decider: decider, tenants: tenantSource, workflow: workflow, logger: logger}
}

// CreateResult reports how a creation landed.
type CreateResult struct {
	Item   Item               `json:"item"`
	Ticket *moderation.Ticket `json:"ticket,omitempty"`
}

// Create publishes or submits a draft in the actor's tenant.
func (s *Service) Create(ctx context.Context, actor authz.Principal, draft Draft) (CreateResult, error) {
	if err := draft.Validate(); err != nil {
		return CreateResult{}, err
	}
	if actor.TenantID == nil {
		return CreateResult{}, fmt.Errorf("content: actor has no tenant: %w", shared.ErrPermission)
	}
	tenantID := *actor.TenantID

	decision, err := s.decider.Resolve(ctx, actor, draft.Kind, authz.PrivilegeCreate,
		authz.Ownership{OwnerID: &actor.UserID, TenantID: &tenantID})
	if err != nil {
		return CreateResult{}, err
	}
	if !decision.Allowed {
		return CreateResult{}, fmt.Errorf("content: %s: %w", decision.Reason, shared.ErrPermission)
	}

	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return CreateResult{}, err
	}
	if tenant.Status != tenants.StatusActive {
		return CreateResult{}, fmt.Errorf("content: tenant is %s: %w", tenant.Status, shared.ErrPermission)
	}

	guarded := tenant.RequireApproval
	if guarded {
		// Authors who may approve content skip their own queue.
		selfApprover, err := s.decider.CheckSpecial(ctx, actor, authz.SpecialApproveContent)
		if err != nil {
			return CreateResult{}, err
		}
		guarded = !selfApprover
	}

	item := Item{
		Kind:     draft.Kind,
		TenantID: tenantID,
		AuthorID: actor.UserID,
		Title:    draft.Title,
		Body:     draft.Body,
		Status:   StatusApproved,
	}
	if guarded {
		item.Status = StatusPending
	}

	inserted, err := s.repo.Insert(ctx, item)
	if err != nil {
		return CreateResult{}, err
	}

	if !guarded {
		if err := s.tenants.AdjustCounters(ctx, tenantID, tenants.CounterDelta{Content: 1}); err != nil {
			return CreateResult{}, err
		}
		return CreateResult{Item: inserted}, nil
	}

	ticket, err := s.workflow.Submit(ctx, actor, moderation.Submission{
		Kind:     moderation.ContentKind(inserted.Kind),
		TargetID: inserted.ID,
		TenantID: &tenantID,
		Summary:  inserted.Title,
		Changes: []moderation.FieldChange{
			{Field: "title", New: inserted.Title},
		},
	})
	if err != nil {
		// Without a ticket the pending item would be stranded, so the
		// creation is unwound.
		if delErr := s.repo.Delete(ctx, inserted.Kind, inserted.ID); delErr != nil && s.logger != nil {
			s.logger.Error("content: unwind stranded pending item",
				slog.String("kind", string(inserted.Kind)), slog.Int64("id", inserted.ID), slog.Any("error", delErr))
		}
		return CreateResult{}, err
	}
	return CreateResult{Item: inserted, Ticket: &ticket}, nil
}

// Get returns one item after a read privilege check against its ownership.
func (s *Service) Get(ctx context.Context, actor authz.Principal, kind authz.EntityType, id int64) (Item, error) {
	item, err := s.repo.Get(ctx, kind, id)
	if err != nil {
		return Item{}, err
	}
	decision, err := s.decider.Resolve(ctx, actor, kind, authz.PrivilegeRead, item.Ownership())
	if err != nil {
		return Item{}, err
	}
	if !decision.Allowed {
		return Item{}, fmt.Errorf("content: %s: %w", decision.Reason, shared.ErrPermission)
	}
	return item, nil
}

// List returns a tenant's items of one kind. Actors who may approve content
// also see the pending queue; everyone else sees published items only.
func (s *Service) List(ctx context.Context, actor authz.Principal, tenantID int64, kind authz.EntityType) ([]Item, error) {
	if !authz.ValidEntityType(kind) {
		return nil, fmt.Errorf("content: unknown kind %q: %w", kind, shared.ErrValidation)
	}
	decision, err := s.decider.Resolve(ctx, actor, kind, authz.PrivilegeRead, authz.Ownership{TenantID: &tenantID})
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, fmt.Errorf("content: %s: %w", decision.Reason, shared.ErrPermission)
	}
	statuses := []Status{StatusApproved}
	reviewer, err := s.decider.CheckSpecial(ctx, actor, authz.SpecialApproveContent)
	if err != nil {
		return nil, err
	}
	if reviewer {
		statuses = append(statuses, StatusPending)
	}
	return s.repo.ListByTenant(ctx, tenantID, kind, statuses)
}

// UpdateResult reports how an edit landed.
type UpdateResult struct {
	Item   Item               `json:"item"`
	Ticket *moderation.Ticket `json:"ticket,omitempty"`
}

// Update edits an item's title and body after a write privilege check. In a
// tenant that requires approval, an edit by a non-approver goes back through
// the moderation queue: the new values are staged with the item parked
// pending, and the ticket carries the old and new field values so the
// reviewer sees exactly what changed. An item with an outstanding ticket
// cannot take a second edit until the first is decided.
func (s *Service) Update(ctx context.Context, actor authz.Principal, kind authz.EntityType, id int64, draft Draft) (UpdateResult, error) {
	draft.Kind = kind
	if err := draft.Validate(); err != nil {
		return UpdateResult{}, err
	}
	item, err := s.repo.Get(ctx, kind, id)
	if err != nil {
		return UpdateResult{}, err
	}
	decision, err := s.decider.Resolve(ctx, actor, kind, authz.PrivilegeWrite, item.Ownership())
	if err != nil {
		return UpdateResult{}, err
	}
	if !decision.Allowed {
		return UpdateResult{}, fmt.Errorf("content: %s: %w", decision.Reason, shared.ErrPermission)
	}

	var changes []moderation.FieldChange
	if draft.Title != item.Title {
		changes = append(changes, moderation.FieldChange{Field: "title", Old: item.Title, New: draft.Title})
	}
	if draft.Body != item.Body {
		changes = append(changes, moderation.FieldChange{Field: "body", Old: item.Body, New: draft.Body})
	}
	if len(changes) == 0 {
		return UpdateResult{Item: item}, nil
	}

	tenant, err := s.tenants.Get(ctx, item.TenantID)
	if err != nil {
		return UpdateResult{}, err
	}
	guarded := tenant.RequireApproval
	if guarded {
		selfApprover, err := s.decider.CheckSpecial(ctx, actor, authz.SpecialApproveContent)
		if err != nil {
			return UpdateResult{}, err
		}
		guarded = !selfApprover
	}

	prior := item
	item.Title = draft.Title
	item.Body = draft.Body

	if !guarded {
		updated, err := s.repo.Update(ctx, item)
		if err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{Item: updated}, nil
	}

	updated, err := s.repo.Update(ctx, item)
	if err != nil {
		return UpdateResult{}, err
	}
	if err := s.repo.SetStatus(ctx, kind, id, StatusPending); err != nil {
		return UpdateResult{}, err
	}
	updated.Status = StatusPending

	// The staged item leaves the published set while the edit is reviewed;
	// approval re-counts it through the workflow's counter dispatch.
	wasApproved := prior.Status == StatusApproved
	if wasApproved {
		if err := s.tenants.AdjustCounters(ctx, item.TenantID, tenants.CounterDelta{Content: -1}); err != nil {
			return UpdateResult{}, err
		}
	}

	ticket, err := s.workflow.Submit(ctx, actor, moderation.Submission{
		Kind:     moderation.ContentKind(kind),
		TargetID: id,
		TenantID: &item.TenantID,
		Summary:  draft.Title,
		Changes:  changes,
	})
	if err != nil {
		// Without a ticket the staged edit would be stranded, so the item is
		// restored to its previous values and status.
		s.unwindEdit(ctx, prior, wasApproved)
		return UpdateResult{}, err
	}
	return UpdateResult{Item: updated, Ticket: &ticket}, nil
}

func (s *Service) unwindEdit(ctx context.Context, prior Item, wasApproved bool) {
	if _, err := s.repo.Update(ctx, prior); err != nil && s.logger != nil {
		s.logger.Error("content: restore edited item",
			slog.String("kind", string(prior.Kind)), slog.Int64("id", prior.ID), slog.Any("error", err))
	}
	if err := s.repo.SetStatus(ctx, prior.Kind, prior.ID, prior.Status); err != nil && s.logger != nil {
		s.logger.Error("content: restore item status",
			slog.String("kind", string(prior.Kind)), slog.Int64("id", prior.ID), slog.Any("error", err))
	}
	if wasApproved {
		if err := s.tenants.AdjustCounters(ctx, prior.TenantID, tenants.CounterDelta{Content: 1}); err != nil && s.logger != nil {
			s.logger.Error("content: restore content counter",
				slog.Int64("tenant_id", prior.TenantID), slog.Any("error", err))
		}
	}
}

// Archive retires an approved item and releases its counter slot.
func (s *Service) Archive(ctx context.Context, actor authz.Principal, kind authz.EntityType, id int64) error {
	item, err := s.repo.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	decision, err := s.decider.Resolve(ctx, actor, kind, authz.PrivilegeDelete, item.Ownership())
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return fmt.Errorf("content: %s: %w", decision.Reason, shared.ErrPermission)
	}
	if item.Status != StatusApproved {
		return fmt.Errorf("content: only approved items can be archived: %w", shared.ErrConflict)
	}
	if err := s.repo.SetStatus(ctx, kind, id, StatusArchived); err != nil {
		return err
	}
	return s.tenants.AdjustCounters(ctx, item.TenantID, tenants.CounterDelta{Content: -1})
}
