package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/hearthbook/hearthbook/internal/shared"
)

// RoleSource loads the grants attached to an assigned security role.
type RoleSource interface {
	Grants(ctx context.Context, roleID int64) (PrivilegeMatrix, SpecialGrants, error)
}

// Metrics receives decision outcomes for observability.
type Metrics interface {
	RecordDecision(allowed bool)
}

// Resolver decides whether a principal may act on a target record.
//
// Resolution order is fixed, first match wins: platform superuser bypass,
// per-user custom override, no-role fallback, assigned-role privilege
// matrix. Every branch yields a human-readable reason.
type Resolver struct {
	roles   RoleSource
	metrics Metrics
}

// NewResolver constructs a Resolver backed by the given role source.
func NewResolver(roles RoleSource) *Resolver {
	return &Resolver{roles: roles}
}

// WithMetrics attaches a decision metrics sink.
func (r *Resolver) WithMetrics(m Metrics) *Resolver {
	r.metrics = m
	return r
}

// Resolve evaluates one privilege request against the principal.
func (r *Resolver) Resolve(ctx context.Context, p Principal, entity EntityType, privilege PrivilegeType, target Ownership) (Decision, error) {
	d, err := r.resolve(ctx, p, entity, privilege, target)
	if err == nil && r.metrics != nil {
		r.metrics.RecordDecision(d.Allowed)
	}
	return d, err
}

func (r *Resolver) resolve(ctx context.Context, p Principal, entity EntityType, privilege PrivilegeType, target Ownership) (Decision, error) {
	if !ValidEntityType(entity) {
		return Decision{}, fmt.Errorf("authz: unknown entity type %q: %w", entity, shared.ErrValidation)
	}
	if !ValidPrivilegeType(privilege) {
		return Decision{}, fmt.Errorf("authz: unknown privilege type %q: %w", privilege, shared.ErrValidation)
	}

	if p.ImplicitRole == RoleSystemAdmin {
		return allow("system administrator", AccessGlobal), nil
	}

	// A custom override is a complete override: it outranks the assigned
	// role in both directions.
	if granted, ok := p.Overrides[PermissionKey(entity, privilege)]; ok {
		if granted {
			return allow("custom permission grant", ""), nil
		}
		return deny("custom permission denial"), nil
	}

	if p.RoleID == nil {
		if p.ImplicitRole == RoleTenantAdmin {
			return r.tenantScope(p, target, "tenant administrator default"), nil
		}
		return deny("no security role assigned"), nil
	}

	matrix, _, err := r.roles.Grants(ctx, *p.RoleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return deny("assigned security role not found"), nil
		}
		return Decision{}, err
	}

	privileges, ok := matrix[entity]
	if !ok {
		return deny(fmt.Sprintf("no privileges defined for entity type %q", entity)), nil
	}

	switch privileges[privilege] {
	case AccessNone, "":
		return deny(fmt.Sprintf("role denies %s on %s", privilege, entity)), nil
	case AccessOwner:
		if ownsTarget(p, target) {
			return allow("owner access", AccessOwner), nil
		}
		return deny("owner access only: not owner of record"), nil
	case AccessTenant:
		return r.tenantScope(p, target, "tenant access"), nil
	case AccessGlobal:
		return allow("global access", AccessGlobal), nil
	default:
		return Decision{}, fmt.Errorf("authz: role %d carries unknown access level for %s:%s: %w", *p.RoleID, entity, privilege, shared.ErrInvariant)
	}
}

// tenantScope applies tenant-level semantics: a grant covers any record in
// the principal's tenant, and ownership always satisfies it (ownership is a
// strict superset of tenant scope, never a stricter requirement).
func (r *Resolver) tenantScope(p Principal, target Ownership, reason string) Decision {
	if target.TenantID != nil && p.TenantID != nil && *target.TenantID == *p.TenantID {
		return allow(reason, AccessTenant)
	}
	if ownsTarget(p, target) {
		return allow(reason, AccessTenant)
	}
	if target.TenantID == nil && target.OwnerID == nil {
		// No target metadata: a coarse capability probe within the
		// principal's own tenant.
		return allow(reason, AccessTenant)
	}
	return deny("record outside tenant")
}

func ownsTarget(p Principal, target Ownership) bool {
	return target.OwnerID != nil && *target.OwnerID == p.UserID
}

// CheckSpecial evaluates a named special permission with the same
// precedence as Resolve, minus the access-level branching.
func (r *Resolver) CheckSpecial(ctx context.Context, p Principal, name SpecialPermission) (bool, error) {
	if !ValidSpecialPermission(name) {
		return false, fmt.Errorf("authz: unknown special permission %q: %w", name, shared.ErrValidation)
	}

	if p.ImplicitRole == RoleSystemAdmin {
		return true, nil
	}

	if granted, ok := p.Overrides[SpecialKey(name)]; ok {
		return granted, nil
	}

	if p.RoleID == nil {
		return defaultSpecialGrant(p.ImplicitRole, name), nil
	}

	_, specials, err := r.roles.Grants(ctx, *p.RoleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return specials[name], nil
}

// defaultSpecialGrant is the coarse fallback table used when no security
// role is assigned.
func defaultSpecialGrant(role ImplicitRole, name SpecialPermission) bool {
	if role != RoleTenantAdmin {
		return false
	}
	switch name {
	case SpecialManageUsers, SpecialApproveContent, SpecialManageSettings, SpecialViewAuditLogs:
		return true
	default:
		return false
	}
}
