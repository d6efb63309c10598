package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hearthbook/hearthbook/internal/authz"
)

// Repository defines persistence operations for the role catalog.
type Repository interface {
	Get(ctx context.Context, id int64) (Role, error)
	FindByName(ctx context.Context, name string) (Role, error)
	List(ctx context.Context, tenantID *int64) ([]Role, error)
	Insert(ctx context.Context, role Role) (Role, error)
	Update(ctx context.Context, role Role) (Role, error)
	Delete(ctx context.Context, id int64) error
	CountAssignedUsers(ctx context.Context, roleID int64) (int64, error)
}

// Service enforces catalog rules independent of the caller: system-role
// immutability, tenant scoping and reference-counted deletion.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Get fetches a role visible to the actor.
func (s *Service) Get(ctx context.Context, actor authz.Principal, id int64) (Role, error) {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if !role.IsSystem && !s.canView(actor, role) {
		return Role{}, ErrCrossTenant
	}
	return role, nil
}

// List returns the system roles plus the roles of the actor's tenant.
// Platform administrators see the full catalog.
func (s *Service) List(ctx context.Context, actor authz.Principal) ([]Role, error) {
	if actor.ImplicitRole == authz.RoleSystemAdmin {
		return s.repo.List(ctx, nil)
	}
	return s.repo.List(ctx, actor.TenantID)
}

// Create inserts a new role after vocabulary validation and authority checks.
func (s *Service) Create(ctx context.Context, actor authz.Principal, role Role) (Role, error) {
	if err := role.Validate(); err != nil {
		return Role{}, err
	}
	if err := s.authorize(actor, role); err != nil {
		return Role{}, err
	}
	return s.repo.Insert(ctx, role)
}

// Update mutates an existing role. The system flag and tenant scope of the
// stored role are authoritative and cannot be changed through this path.
func (s *Service) Update(ctx context.Context, actor authz.Principal, role Role) (Role, error) {
	existing, err := s.repo.Get(ctx, role.ID)
	if err != nil {
		return Role{}, err
	}
	if err := s.authorize(actor, existing); err != nil {
		return Role{}, err
	}
	role.IsSystem = existing.IsSystem
	role.TenantID = existing.TenantID
	if err := role.Validate(); err != nil {
		return Role{}, err
	}
	updated, err := s.repo.Update(ctx, role)
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx, role.ID)
	return updated, nil
}

// Delete removes a custom role. System roles can never be deleted, and a
// custom role referenced by any user is protected until reassignment.
func (s *Service) Delete(ctx context.Context, actor authz.Principal, id int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return ErrSystemRoleProtected
	}
	if err := s.authorize(actor, existing); err != nil {
		return err
	}
	count, err := s.repo.CountAssignedUsers(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return errRoleInUse(count)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// Grants implements authz.RoleSource through the grants cache.
func (s *Service) Grants(ctx context.Context, roleID int64) (authz.PrivilegeMatrix, authz.SpecialGrants, error) {
	grants, err := s.cache.Fetch(ctx, roleID, func(ctx context.Context) (Grants, error) {
		role, err := s.repo.Get(ctx, roleID)
		if err != nil {
			return Grants{}, err
		}
		return Grants{Privileges: role.Matrix(), Specials: role.Specials}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return grants.Privileges, grants.Specials, nil
}

// EnsureSystemRoles seeds the immutable platform roles when missing.
func (s *Service) EnsureSystemRoles(ctx context.Context) error {
	for _, seed := range SystemRoles() {
		_, err := s.repo.FindByName(ctx, seed.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrRoleNotFound) {
			return err
		}
		if _, err := s.repo.Insert(ctx, seed); err != nil {
			return fmt.Errorf("roles: seed %q: %w", seed.Name, err)
		}
	}
	return nil
}

func (s *Service) authorize(actor authz.Principal, role Role) error {
	if role.IsSystem {
		if actor.ImplicitRole != authz.RoleSystemAdmin {
			return ErrSystemRoleImmutable
		}
		return nil
	}
	if actor.ImplicitRole == authz.RoleSystemAdmin {
		return nil
	}
	// Tenant admins manage only their own tenant's roles; another tenant's
	// admin is still a stranger here.
	if actor.ImplicitRole == authz.RoleTenantAdmin && role.TenantID != nil && actor.InTenant(*role.TenantID) {
		return nil
	}
	return ErrCrossTenant
}

func (s *Service) canView(actor authz.Principal, role Role) bool {
	if actor.ImplicitRole == authz.RoleSystemAdmin {
		return true
	}
	return role.TenantID != nil && actor.InTenant(*role.TenantID)
}

func (s *Service) invalidate(ctx context.Context, roleID int64) {
	if err := s.cache.Invalidate(ctx, roleID); err != nil && s.logger != nil {
		s.logger.Warn("roles: cache invalidation failed", slog.Int64("role_id", roleID), slog.Any("error", err))
	}
}
