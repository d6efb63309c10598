package roles

import "github.com/hearthbook/hearthbook/internal/authz"

func allEntities(level map[authz.PrivilegeType]authz.AccessLevel) []EntityPrivilege {
	entities := authz.EntityTypes()
	out := make([]EntityPrivilege, 0, len(entities))
	for _, entity := range entities {
		privileges := make(map[authz.PrivilegeType]authz.AccessLevel, len(level))
		for priv, lvl := range level {
			privileges[priv] = lvl
		}
		out = append(out, EntityPrivilege{Entity: entity, Privileges: privileges})
	}
	return out
}

// SystemRoles returns the platform-defined role seeds. They are inserted once
// at startup and never modified afterwards except by a platform administrator.
func SystemRoles() []Role {
	return []Role{
		{
			Name:        "Platform Administrator",
			Description: "Full access across all tenants.",
			IsSystem:    true,
			Privileges: allEntities(map[authz.PrivilegeType]authz.AccessLevel{
				authz.PrivilegeCreate:  authz.AccessGlobal,
				authz.PrivilegeRead:    authz.AccessGlobal,
				authz.PrivilegeWrite:   authz.AccessGlobal,
				authz.PrivilegeDelete:  authz.AccessGlobal,
				authz.PrivilegeApprove: authz.AccessGlobal,
			}),
			Specials: authz.SpecialGrants{
				authz.SpecialManageUsers:    true,
				authz.SpecialApproveContent: true,
				authz.SpecialManageSettings: true,
				authz.SpecialViewAuditLogs:  true,
				authz.SpecialBulkOperations: true,
			},
		},
		{
			Name:        "Family Administrator",
			Description: "Manages one family community: its members, roles and content approvals.",
			IsSystem:    true,
			Privileges: allEntities(map[authz.PrivilegeType]authz.AccessLevel{
				authz.PrivilegeCreate:  authz.AccessTenant,
				authz.PrivilegeRead:    authz.AccessTenant,
				authz.PrivilegeWrite:   authz.AccessTenant,
				authz.PrivilegeDelete:  authz.AccessTenant,
				authz.PrivilegeApprove: authz.AccessTenant,
			}),
			Specials: authz.SpecialGrants{
				authz.SpecialManageUsers:    true,
				authz.SpecialApproveContent: true,
				authz.SpecialManageSettings: true,
				authz.SpecialViewAuditLogs:  true,
			},
		},
		{
			Name:        "Contributor",
			Description: "Creates and maintains own content inside the family.",
			IsSystem:    true,
			Privileges: allEntities(map[authz.PrivilegeType]authz.AccessLevel{
				authz.PrivilegeCreate: authz.AccessTenant,
				authz.PrivilegeRead:   authz.AccessTenant,
				authz.PrivilegeWrite:  authz.AccessOwner,
				authz.PrivilegeDelete: authz.AccessOwner,
			}),
			Specials: authz.SpecialGrants{},
		},
		{
			Name:        "Viewer",
			Description: "Read-only access to the family's content.",
			IsSystem:    true,
			Privileges: allEntities(map[authz.PrivilegeType]authz.AccessLevel{
				authz.PrivilegeRead: authz.AccessTenant,
			}),
			Specials: authz.SpecialGrants{},
		},
	}
}
