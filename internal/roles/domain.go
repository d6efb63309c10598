// Package roles maintains the security role catalog.
package roles

import (
	"fmt"
	"strings"
	"time"

	"github.com/hearthbook/hearthbook/internal/authz"
	"github.com/hearthbook/hearthbook/internal/shared"
)

// EntityPrivilege is one row of a role's privilege matrix. The slice form
// preserves the authoring order for storage fidelity.
type EntityPrivilege struct {
	Entity     authz.EntityType                           `json:"entity_type"`
	Privileges map[authz.PrivilegeType]authz.AccessLevel `json:"privileges"`
}

// Role is a named bundle of entity privileges and special permissions.
// System roles are platform-defined, immutable by tenants and un-deletable.
// Custom roles are scoped to exactly one tenant.
type Role struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	IsSystem    bool                `json:"is_system_role"`
	TenantID    *int64              `json:"tenant_id,omitempty"`
	Privileges  []EntityPrivilege   `json:"entity_privileges"`
	Specials    authz.SpecialGrants `json:"special_permissions"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Validate enforces the closed vocabularies before persistence. Unknown
// entity types, privilege types, access levels and special permission keys
// are rejected, never coerced or dropped.
func (r Role) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("roles: name required: %w", shared.ErrValidation)
	}
	if r.IsSystem && r.TenantID != nil {
		return fmt.Errorf("roles: system roles are not tenant scoped: %w", shared.ErrValidation)
	}
	if !r.IsSystem && r.TenantID == nil {
		return fmt.Errorf("roles: custom roles require a tenant: %w", shared.ErrValidation)
	}
	seen := make(map[authz.EntityType]struct{}, len(r.Privileges))
	for _, ep := range r.Privileges {
		if !authz.ValidEntityType(ep.Entity) {
			return fmt.Errorf("roles: unknown entity type %q: %w", ep.Entity, shared.ErrValidation)
		}
		if _, dup := seen[ep.Entity]; dup {
			return fmt.Errorf("roles: duplicate privileges for entity type %q: %w", ep.Entity, shared.ErrValidation)
		}
		seen[ep.Entity] = struct{}{}
		for priv, level := range ep.Privileges {
			if !authz.ValidPrivilegeType(priv) {
				return fmt.Errorf("roles: unknown privilege type %q: %w", priv, shared.ErrValidation)
			}
			if !authz.ValidAccessLevel(level) {
				return fmt.Errorf("roles: unknown access level %q for %s:%s: %w", level, ep.Entity, priv, shared.ErrValidation)
			}
		}
	}
	for name := range r.Specials {
		if !authz.ValidSpecialPermission(name) {
			return fmt.Errorf("roles: unknown special permission %q: %w", name, shared.ErrValidation)
		}
	}
	return nil
}

// Matrix materializes the privilege list into the resolver's lookup shape.
func (r Role) Matrix() authz.PrivilegeMatrix {
	matrix := make(authz.PrivilegeMatrix, len(r.Privileges))
	for _, ep := range r.Privileges {
		privileges := make(map[authz.PrivilegeType]authz.AccessLevel, len(ep.Privileges))
		for priv, level := range ep.Privileges {
			privileges[priv] = level
		}
		matrix[ep.Entity] = privileges
	}
	return matrix
}

// ErrRoleNotFound indicates the requested role does not exist.
var ErrRoleNotFound = fmt.Errorf("roles: role %w", shared.ErrNotFound)

// ErrSystemRoleImmutable is returned when a non-platform actor touches a system role.
var ErrSystemRoleImmutable = fmt.Errorf("roles: system roles can only be managed by a platform administrator: %w", shared.ErrPermission)

// ErrSystemRoleProtected is returned on any attempt to delete a system role.
var ErrSystemRoleProtected = fmt.Errorf("roles: system roles cannot be deleted: %w", shared.ErrConflict)

// ErrCrossTenant is returned when a tenant admin touches another tenant's role.
var ErrCrossTenant = fmt.Errorf("roles: role belongs to another tenant: %w", shared.ErrPermission)

// ErrDuplicateName indicates a role name collision within the same scope.
var ErrDuplicateName = fmt.Errorf("roles: role name already in use: %w", shared.ErrConflict)

func errRoleInUse(count int64) error {
	return fmt.Errorf("roles: role still assigned to %d user(s), reassign them first: %w", count, shared.ErrConflict)
}
