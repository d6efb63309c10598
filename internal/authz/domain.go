// Package authz implements privilege resolution for tenant-scoped content.
package authz

import "fmt"

// EntityType identifies a content kind subject to privilege checks.
type EntityType string

const (
	EntityNews     EntityType = "news"
	EntityEvent    EntityType = "event"
	EntityDocument EntityType = "document"
	EntityRecipe   EntityType = "recipe"
	EntityPoll     EntityType = "poll"
	EntityMemorial EntityType = "memorial"
	EntityPhoto    EntityType = "photo"
)

// EntityTypes lists every recognized content kind.
func EntityTypes() []EntityType {
	return []EntityType{
		EntityNews,
		EntityEvent,
		EntityDocument,
		EntityRecipe,
		EntityPoll,
		EntityMemorial,
		EntityPhoto,
	}
}

// ValidEntityType reports whether the value belongs to the closed vocabulary.
func ValidEntityType(e EntityType) bool {
	switch e {
	case EntityNews, EntityEvent, EntityDocument, EntityRecipe, EntityPoll, EntityMemorial, EntityPhoto:
		return true
	default:
		return false
	}
}

// PrivilegeType identifies the action being gated.
type PrivilegeType string

const (
	PrivilegeCreate  PrivilegeType = "create"
	PrivilegeRead    PrivilegeType = "read"
	PrivilegeWrite   PrivilegeType = "write"
	PrivilegeDelete  PrivilegeType = "delete"
	PrivilegeApprove PrivilegeType = "approve"
)

// ValidPrivilegeType reports whether the value belongs to the closed vocabulary.
func ValidPrivilegeType(p PrivilegeType) bool {
	switch p {
	case PrivilegeCreate, PrivilegeRead, PrivilegeWrite, PrivilegeDelete, PrivilegeApprove:
		return true
	default:
		return false
	}
}

// AccessLevel describes the breadth of a grant.
type AccessLevel string

const (
	AccessNone   AccessLevel = "none"
	AccessOwner  AccessLevel = "owner"
	AccessTenant AccessLevel = "tenant"
	AccessGlobal AccessLevel = "global"
)

// ValidAccessLevel reports whether the value belongs to the closed 4-level set.
func ValidAccessLevel(a AccessLevel) bool {
	switch a {
	case AccessNone, AccessOwner, AccessTenant, AccessGlobal:
		return true
	default:
		return false
	}
}

// SpecialPermission names a boolean capability outside the privilege matrix.
type SpecialPermission string

const (
	SpecialManageUsers    SpecialPermission = "manage_users"
	SpecialApproveContent SpecialPermission = "approve_content"
	SpecialManageSettings SpecialPermission = "manage_settings"
	SpecialViewAuditLogs  SpecialPermission = "view_audit_logs"
	SpecialBulkOperations SpecialPermission = "bulk_operations"
)

// SpecialPermissions lists the governed special permission names.
func SpecialPermissions() []SpecialPermission {
	return []SpecialPermission{
		SpecialManageUsers,
		SpecialApproveContent,
		SpecialManageSettings,
		SpecialViewAuditLogs,
		SpecialBulkOperations,
	}
}

// ValidSpecialPermission reports whether the name is governed.
func ValidSpecialPermission(s SpecialPermission) bool {
	switch s {
	case SpecialManageUsers, SpecialApproveContent, SpecialManageSettings, SpecialViewAuditLogs, SpecialBulkOperations:
		return true
	default:
		return false
	}
}

// ImplicitRole is the coarse built-in role derived from the user record.
type ImplicitRole string

const (
	RoleSystemAdmin ImplicitRole = "system_admin"
	RoleTenantAdmin ImplicitRole = "tenant_admin"
	RoleMember      ImplicitRole = "member"
	RoleGuest       ImplicitRole = "guest"
)

// ValidImplicitRole reports whether the value is a recognized implicit role.
func ValidImplicitRole(r ImplicitRole) bool {
	switch r {
	case RoleSystemAdmin, RoleTenantAdmin, RoleMember, RoleGuest:
		return true
	default:
		return false
	}
}

// PrivilegeMatrix maps entity types to per-privilege access levels.
type PrivilegeMatrix map[EntityType]map[PrivilegeType]AccessLevel

// SpecialGrants maps special permission names to booleans.
type SpecialGrants map[SpecialPermission]bool

// PermissionKey builds the override key for an entity privilege, e.g. "news:write".
func PermissionKey(entity EntityType, privilege PrivilegeType) string {
	return string(entity) + ":" + string(privilege)
}

// SpecialKey builds the override key for a special permission, e.g. "special:manage_users".
func SpecialKey(name SpecialPermission) string {
	return "special:" + string(name)
}

// ValidOverrideKey reports whether the key is either a valid
// "<entity>:<privilege>" pair or a valid "special:<name>".
func ValidOverrideKey(key string) bool {
	for _, name := range SpecialPermissions() {
		if key == SpecialKey(name) {
			return true
		}
	}
	for _, entity := range EntityTypes() {
		for _, priv := range []PrivilegeType{PrivilegeCreate, PrivilegeRead, PrivilegeWrite, PrivilegeDelete, PrivilegeApprove} {
			if key == PermissionKey(entity, priv) {
				return true
			}
		}
	}
	return false
}

// Principal is the resolved authorization context for one actor on one
// request. It is assembled fresh per request and never cached beyond a
// single resolution call.
type Principal struct {
	UserID       int64
	TenantID     *int64
	ImplicitRole ImplicitRole
	RoleID       *int64
	Overrides    map[string]bool
}

// InTenant reports whether the principal belongs to the given tenant.
func (p Principal) InTenant(tenantID int64) bool {
	return p.TenantID != nil && *p.TenantID == tenantID
}

// Ownership carries the target record metadata needed by the resolver.
type Ownership struct {
	OwnerID  *int64
	TenantID *int64
}

// Decision is the outcome of a privilege resolution.
type Decision struct {
	Allowed bool        `json:"allowed"`
	Reason  string      `json:"reason"`
	Level   AccessLevel `json:"access_level,omitempty"`
}

func allow(reason string, level AccessLevel) Decision {
	return Decision{Allowed: true, Reason: reason, Level: level}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// String implements fmt.Stringer for log readability.
func (d Decision) String() string {
	verdict := "deny"
	if d.Allowed {
		verdict = "allow"
	}
	return fmt.Sprintf("%s (%s)", verdict, d.Reason)
}
