package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthbook/hearthbook/internal/shared"
)

type stubRoleSource struct {
	matrix   PrivilegeMatrix
	specials SpecialGrants
	err      error
	calls    int
}

func (s *stubRoleSource) Grants(ctx context.Context, roleID int64) (PrivilegeMatrix, SpecialGrants, error) {
	s.calls++
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.matrix, s.specials, nil
}

func ptr(v int64) *int64 { return &v }

func memberPrincipal(roleID *int64) Principal {
	return Principal{
		UserID:       7,
		TenantID:     ptr(3),
		ImplicitRole: RoleMember,
		RoleID:       roleID,
	}
}

func TestResolveSuperuserBypass(t *testing.T) {
	roles := &stubRoleSource{}
	r := NewResolver(roles)

	p := Principal{
		UserID:       1,
		ImplicitRole: RoleSystemAdmin,
		Overrides:    map[string]bool{PermissionKey(EntityDocument, PrivilegeWrite): false},
	}

	d, err := r.Resolve(context.Background(), p, EntityDocument, PrivilegeWrite, Ownership{OwnerID: ptr(99), TenantID: ptr(42)})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, "system administrator", d.Reason)
	assert.Equal(t, AccessGlobal, d.Level)
	// Bypass is checked before overrides, so the role source is never hit.
	assert.Zero(t, roles.calls)
}

func TestResolveCustomOverrideWinsOverRole(t *testing.T) {
	roles := &stubRoleSource{
		matrix: PrivilegeMatrix{
			EntityDocument: {PrivilegeWrite: AccessNone},
		},
	}
	r := NewResolver(roles)

	p := memberPrincipal(ptr(5))
	p.Overrides = map[string]bool{PermissionKey(EntityDocument, PrivilegeWrite): true}

	d, err := r.Resolve(context.Background(), p, EntityDocument, PrivilegeWrite, Ownership{TenantID: ptr(3)})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, "custom permission grant", d.Reason)
	assert.Zero(t, roles.calls, "override short-circuits before role lookup")
}

func TestResolveCustomDenialWinsOverRole(t *testing.T) {
	roles := &stubRoleSource{
		matrix: PrivilegeMatrix{
			EntityDocument: {PrivilegeWrite: AccessGlobal},
		},
	}
	r := NewResolver(roles)

	p := memberPrincipal(ptr(5))
	p.Overrides = map[string]bool{PermissionKey(EntityDocument, PrivilegeWrite): false}

	d, err := r.Resolve(context.Background(), p, EntityDocument, PrivilegeWrite, Ownership{TenantID: ptr(3)})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "custom permission denial", d.Reason)
}

func TestResolveNoRoleFallback(t *testing.T) {
	r := NewResolver(&stubRoleSource{})

	t.Run("tenant admin gets tenant scope", func(t *testing.T) {
		p := Principal{UserID: 2, TenantID: ptr(3), ImplicitRole: RoleTenantAdmin}
		d, err := r.Resolve(context.Background(), p, EntityNews, PrivilegeDelete, Ownership{TenantID: ptr(3)})
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, AccessTenant, d.Level)
	})

	t.Run("tenant admin denied outside own tenant", func(t *testing.T) {
		p := Principal{UserID: 2, TenantID: ptr(3), ImplicitRole: RoleTenantAdmin}
		d, err := r.Resolve(context.Background(), p, EntityNews, PrivilegeDelete, Ownership{TenantID: ptr(4)})
		require.NoError(t, err)
		assert.False(t, d.Allowed)
	})

	t.Run("member denied", func(t *testing.T) {
		p := memberPrincipal(nil)
		d, err := r.Resolve(context.Background(), p, EntityNews, PrivilegeRead, Ownership{TenantID: ptr(3)})
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, "no security role assigned", d.Reason)
	})
}

func TestResolveAccessLevels(t *testing.T) {
	matrix := PrivilegeMatrix{
		EntityRecipe: {
			PrivilegeRead:   AccessGlobal,
			PrivilegeWrite:  AccessTenant,
			PrivilegeDelete: AccessOwner,
			PrivilegeCreate: AccessNone,
		},
	}
	r := NewResolver(&stubRoleSource{matrix: matrix})
	p := memberPrincipal(ptr(5))

	cases := []struct {
		name      string
		privilege PrivilegeType
		target    Ownership
		allowed   bool
		reason    string
	}{
		{"global allows foreign tenant and owner", PrivilegeRead, Ownership{OwnerID: ptr(99), TenantID: ptr(42)}, true, "global access"},
		{"tenant allows same tenant regardless of owner", PrivilegeWrite, Ownership{OwnerID: ptr(99), TenantID: ptr(3)}, true, "tenant access"},
		{"tenant allows owned record outside tenant", PrivilegeWrite, Ownership{OwnerID: ptr(7), TenantID: ptr(42)}, true, "tenant access"},
		{"tenant denies foreign record", PrivilegeWrite, Ownership{OwnerID: ptr(99), TenantID: ptr(42)}, false, "record outside tenant"},
		{"owner allows own record", PrivilegeDelete, Ownership{OwnerID: ptr(7), TenantID: ptr(3)}, true, "owner access"},
		{"owner denies same tenant non-owner", PrivilegeDelete, Ownership{OwnerID: ptr(99), TenantID: ptr(3)}, false, "owner access only: not owner of record"},
		{"none denies everything", PrivilegeCreate, Ownership{OwnerID: ptr(7), TenantID: ptr(3)}, false, "role denies create on recipe"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := r.Resolve(context.Background(), p, EntityRecipe, tc.privilege, tc.target)
			require.NoError(t, err)
			assert.Equal(t, tc.allowed, d.Allowed)
			assert.Equal(t, tc.reason, d.Reason)
		})
	}
}

func TestResolveEntityMissingFromMatrix(t *testing.T) {
	r := NewResolver(&stubRoleSource{matrix: PrivilegeMatrix{EntityNews: {PrivilegeRead: AccessTenant}}})
	p := memberPrincipal(ptr(5))

	d, err := r.Resolve(context.Background(), p, EntityPoll, PrivilegeRead, Ownership{TenantID: ptr(3)})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, `no privileges defined for entity type "poll"`, d.Reason)
}

func TestResolveUnknownVocabulary(t *testing.T) {
	r := NewResolver(&stubRoleSource{})
	p := memberPrincipal(nil)

	_, err := r.Resolve(context.Background(), p, EntityType("blog"), PrivilegeRead, Ownership{})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = r.Resolve(context.Background(), p, EntityNews, PrivilegeType("annotate"), Ownership{})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestResolveMissingRoleRecordDenies(t *testing.T) {
	r := NewResolver(&stubRoleSource{err: shared.ErrNotFound})
	p := memberPrincipal(ptr(404))

	d, err := r.Resolve(context.Background(), p, EntityNews, PrivilegeRead, Ownership{TenantID: ptr(3)})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "assigned security role not found", d.Reason)
}

func TestResolvePropagatesStoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	r := NewResolver(&stubRoleSource{err: boom})
	p := memberPrincipal(ptr(5))

	_, err := r.Resolve(context.Background(), p, EntityNews, PrivilegeRead, Ownership{TenantID: ptr(3)})
	require.ErrorIs(t, err, boom)
}

func TestCheckSpecial(t *testing.T) {
	roles := &stubRoleSource{specials: SpecialGrants{SpecialBulkOperations: true}}
	r := NewResolver(roles)

	t.Run("superuser always granted", func(t *testing.T) {
		granted, err := r.CheckSpecial(context.Background(), Principal{ImplicitRole: RoleSystemAdmin}, SpecialManageSettings)
		require.NoError(t, err)
		assert.True(t, granted)
	})

	t.Run("override wins over role", func(t *testing.T) {
		p := memberPrincipal(ptr(5))
		p.Overrides = map[string]bool{SpecialKey(SpecialBulkOperations): false}
		granted, err := r.CheckSpecial(context.Background(), p, SpecialBulkOperations)
		require.NoError(t, err)
		assert.False(t, granted)
	})

	t.Run("role special map consulted", func(t *testing.T) {
		granted, err := r.CheckSpecial(context.Background(), memberPrincipal(ptr(5)), SpecialBulkOperations)
		require.NoError(t, err)
		assert.True(t, granted)
	})

	t.Run("unset key defaults to false", func(t *testing.T) {
		granted, err := r.CheckSpecial(context.Background(), memberPrincipal(ptr(5)), SpecialManageUsers)
		require.NoError(t, err)
		assert.False(t, granted)
	})

	t.Run("no role falls back to implicit table", func(t *testing.T) {
		admin := Principal{UserID: 2, TenantID: ptr(3), ImplicitRole: RoleTenantAdmin}
		granted, err := r.CheckSpecial(context.Background(), admin, SpecialApproveContent)
		require.NoError(t, err)
		assert.True(t, granted)

		granted, err = r.CheckSpecial(context.Background(), admin, SpecialBulkOperations)
		require.NoError(t, err)
		assert.False(t, granted)

		granted, err = r.CheckSpecial(context.Background(), memberPrincipal(nil), SpecialApproveContent)
		require.NoError(t, err)
		assert.False(t, granted)
	})

	t.Run("unknown name rejected", func(t *testing.T) {
		_, err := r.CheckSpecial(context.Background(), memberPrincipal(nil), SpecialPermission("launch_rockets"))
		require.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestValidOverrideKey(t *testing.T) {
	assert.True(t, ValidOverrideKey("document:write"))
	assert.True(t, ValidOverrideKey("special:manage_users"))
	assert.False(t, ValidOverrideKey("document:annotate"))
	assert.False(t, ValidOverrideKey("blog:write"))
	assert.False(t, ValidOverrideKey("special:launch_rockets"))
	assert.False(t, ValidOverrideKey(""))
}
