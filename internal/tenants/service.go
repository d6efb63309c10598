package tenants

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hearthbook/hearthbook/internal/authz"
	"github.com/hearthbook/hearthbook/internal/moderation"
	"github.com/hearthbook/hearthbook/internal/shared"
)

// Repository defines persistence operations for tenants and members.
type Repository interface {
	Get(ctx context.Context, id int64) (Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	Insert(ctx context.Context, tenant Tenant) (Tenant, error)
	AdjustCounters(ctx context.Context, tenantID int64, delta CounterDelta) error
	SetStatus(ctx context.Context, tenantID int64, status Status) error
	GetMember(ctx context.Context, id int64) (Member, error)
	InsertMember(ctx context.Context, member Member) (Member, error)
}

// Workflow opens approval tickets for governance transitions.
type Workflow interface {
	Submit(ctx context.Context, actor authz.Principal, sub moderation.Submission) (moderation.Ticket, error)
}

// Service manages the tenant lifecycle. New tenants start pending and go
// through a platform-level approval ticket; joins go through a tenant-level
// member ticket.
type Service struct {
	repo     Repository
	workflow Workflow
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, workflow Workflow, logger *slog.Logger) *Service {
	return &Service{repo: repo, workflow: workflow, logger: logger}
}

// Get returns one tenant.
func (s *Service) Get(ctx context.Context, id int64) (Tenant, error) {
	return s.repo.Get(ctx, id)
}

// List returns all tenants. Platform administration only.
func (s *Service) List(ctx context.Context, actor authz.Principal) ([]Tenant, error) {
	if actor.ImplicitRole != authz.RoleSystemAdmin {
		return nil, fmt.Errorf("tenants: catalog restricted to platform administrators: %w", shared.ErrPermission)
	}
	return s.repo.List(ctx)
}

// RegisterResult reports a registration outcome.
type RegisterResult struct {
	Tenant Tenant            `json:"tenant"`
	Ticket moderation.Ticket `json:"ticket"`
}

// Register creates a pending tenant and opens the activation ticket a
// platform administrator decides.
func (s *Service) Register(ctx context.Context, actor authz.Principal, name string, requireApproval bool) (RegisterResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return RegisterResult{}, fmt.Errorf("tenants: name required: %w", shared.ErrValidation)
	}
	tenant, err := s.repo.Insert(ctx, Tenant{Name: name, Status: StatusPending, RequireApproval: requireApproval})
	if err != nil {
		return RegisterResult{}, err
	}
	ticket, err := s.workflow.Submit(ctx, actor, moderation.Submission{
		Kind:     moderation.KindTenant,
		TargetID: tenant.ID,
		TenantID: &tenant.ID,
		Summary:  fmt.Sprintf("activate family %q", tenant.Name),
	})
	if err != nil {
		return RegisterResult{}, err
	}
	return RegisterResult{Tenant: tenant, Ticket: ticket}, nil
}

// JoinResult reports a join request outcome.
type JoinResult struct {
	Member Member            `json:"member"`
	Ticket moderation.Ticket `json:"ticket"`
}

// Join files a membership request for the actor in an active tenant.
func (s *Service) Join(ctx context.Context, actor authz.Principal, tenantID int64) (JoinResult, error) {
	tenant, err := s.repo.Get(ctx, tenantID)
	if err != nil {
		return JoinResult{}, err
	}
	if tenant.Status != StatusActive {
		return JoinResult{}, fmt.Errorf("tenants: tenant is %s: %w", tenant.Status, shared.ErrPermission)
	}
	member, err := s.repo.InsertMember(ctx, Member{TenantID: tenantID, UserID: actor.UserID, Status: MemberPending})
	if err != nil {
		return JoinResult{}, err
	}
	ticket, err := s.workflow.Submit(ctx, actor, moderation.Submission{
		Kind:     moderation.KindMember,
		TargetID: member.ID,
		TenantID: &tenantID,
		Summary:  fmt.Sprintf("membership request for user %d", actor.UserID),
	})
	if err != nil {
		return JoinResult{}, err
	}
	return JoinResult{Member: member, Ticket: ticket}, nil
}
