package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hearthbook/hearthbook/internal/authz"
	"github.com/hearthbook/hearthbook/internal/roles"
	"github.com/hearthbook/hearthbook/internal/shared"
)

// Repository defines persistence operations for user profiles.
type Repository interface {
	Get(ctx context.Context, id int64) (Profile, error)
	FindByEmail(ctx context.Context, email string) (Profile, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]Profile, error)
	Insert(ctx context.Context, profile Profile) (Profile, error)
	SetRole(ctx context.Context, userID int64, roleID *int64) error
	SetOverrides(ctx context.Context, userID int64, overrides map[string]bool) error
}

// RoleCatalog is the slice of the role service needed for assignment checks.
type RoleCatalog interface {
	Get(ctx context.Context, actor authz.Principal, id int64) (roles.Role, error)
}

// Service manages member security assignments.
type Service struct {
	repo    Repository
	catalog RoleCatalog
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, catalog RoleCatalog, logger *slog.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, logger: logger}
}

// PrincipalByUserID loads a profile and projects it to a Principal. It backs
// the per-request principal construction in the HTTP middleware.
func (s *Service) PrincipalByUserID(ctx context.Context, userID int64) (authz.Principal, error) {
	profile, err := s.repo.Get(ctx, userID)
	if err != nil {
		return authz.Principal{}, err
	}
	return profile.Principal(), nil
}

// Get returns a profile visible to the actor.
func (s *Service) Get(ctx context.Context, actor authz.Principal, id int64) (Profile, error) {
	profile, err := s.repo.Get(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if err := s.sameTenant(actor, profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// ListByTenant returns the members of one tenant.
func (s *Service) ListByTenant(ctx context.Context, actor authz.Principal, tenantID int64) ([]Profile, error) {
	if actor.ImplicitRole != authz.RoleSystemAdmin && !actor.InTenant(tenantID) {
		return nil, errCrossTenantUser
	}
	return s.repo.ListByTenant(ctx, tenantID)
}

// AssignRole points a user at a security role, or clears the assignment when
// roleID is nil. The role must be visible in the user's tenant scope.
func (s *Service) AssignRole(ctx context.Context, actor authz.Principal, userID int64, roleID *int64) error {
	profile, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.sameTenant(actor, profile); err != nil {
		return err
	}
	if roleID != nil {
		role, err := s.catalog.Get(ctx, actor, *roleID)
		if err != nil {
			return err
		}
		if !role.IsSystem && (profile.TenantID == nil || role.TenantID == nil || *role.TenantID != *profile.TenantID) {
			return fmt.Errorf("users: role belongs to another tenant: %w", shared.ErrPermission)
		}
	}
	return s.repo.SetRole(ctx, userID, roleID)
}

// SetOverride upserts one permission override for a user. The key must name
// a known entity:privilege pair or special:name; unknown keys are rejected.
func (s *Service) SetOverride(ctx context.Context, actor authz.Principal, userID int64, key string, granted bool) error {
	if !authz.ValidOverrideKey(key) {
		return fmt.Errorf("users: unknown override key %q: %w", key, shared.ErrValidation)
	}
	profile, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.sameTenant(actor, profile); err != nil {
		return err
	}
	overrides := profile.Overrides
	if overrides == nil {
		overrides = make(map[string]bool, 1)
	}
	overrides[key] = granted
	return s.repo.SetOverrides(ctx, userID, overrides)
}

// ClearOverride removes one permission override, restoring role-based
// resolution for that permission.
func (s *Service) ClearOverride(ctx context.Context, actor authz.Principal, userID int64, key string) error {
	profile, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.sameTenant(actor, profile); err != nil {
		return err
	}
	if _, ok := profile.Overrides[key]; !ok {
		return nil
	}
	delete(profile.Overrides, key)
	return s.repo.SetOverrides(ctx, userID, profile.Overrides)
}

func (s *Service) sameTenant(actor authz.Principal, profile Profile) error {
	if actor.ImplicitRole == authz.RoleSystemAdmin {
		return nil
	}
	if actor.UserID == profile.ID {
		return nil
	}
	if profile.TenantID != nil && actor.InTenant(*profile.TenantID) {
		return nil
	}
	return errCrossTenantUser
}

var errCrossTenantUser = fmt.Errorf("users: user belongs to another tenant: %w", shared.ErrPermission)
