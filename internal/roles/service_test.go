package roles

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthbook/hearthbook/internal/authz"
	"github.com/hearthbook/hearthbook/internal/shared"
)

type mockRepo struct {
	roles       map[int64]Role
	nextID      int64
	counts      map[int64]int64
	insertCalls int
	deleteCalls int
}

func newMockRepo(seed ...Role) *mockRepo {
	m := &mockRepo{roles: make(map[int64]Role), counts: make(map[int64]int64), nextID: 1}
	for _, r := range seed {
		if r.ID == 0 {
			r.ID = m.nextID
		}
		if r.ID >= m.nextID {
			m.nextID = r.ID + 1
		}
		m.roles[r.ID] = r
	}
	return m
}

func (m *mockRepo) Get(_ context.Context, id int64) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	return role, nil
}

func (m *mockRepo) FindByName(_ context.Context, name string) (Role, error) {
	for _, r := range m.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return Role{}, ErrRoleNotFound
}

func (m *mockRepo) List(_ context.Context, tenantID *int64) ([]Role, error) {
	var out []Role
	for _, r := range m.roles {
		if tenantID == nil || r.IsSystem || (r.TenantID != nil && *r.TenantID == *tenantID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRepo) Insert(_ context.Context, role Role) (Role, error) {
	m.insertCalls++
	for _, existing := range m.roles {
		if existing.Name == role.Name {
			return Role{}, ErrDuplicateName
		}
	}
	role.ID = m.nextID
	m.nextID++
	m.roles[role.ID] = role
	return role, nil
}

func (m *mockRepo) Update(_ context.Context, role Role) (Role, error) {
	if _, ok := m.roles[role.ID]; !ok {
		return Role{}, ErrRoleNotFound
	}
	m.roles[role.ID] = role
	return role, nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	m.deleteCalls++
	if _, ok := m.roles[id]; !ok {
		return ErrRoleNotFound
	}
	delete(m.roles, id)
	return nil
}

func (m *mockRepo) CountAssignedUsers(_ context.Context, roleID int64) (int64, error) {
	return m.counts[roleID], nil
}

func int64ptr(v int64) *int64 { return &v }

func systemAdmin() authz.Principal {
	return authz.Principal{UserID: 1, ImplicitRole: authz.RoleSystemAdmin}
}

func tenantAdmin(tenant int64) authz.Principal {
	return authz.Principal{UserID: 2, TenantID: &tenant, ImplicitRole: authz.RoleTenantAdmin}
}

func customRole(tenant int64) Role {
	return Role{
		Name:     "Event Planner",
		TenantID: int64ptr(tenant),
		Privileges: []EntityPrivilege{
			{Entity: authz.EntityEvent, Privileges: map[authz.PrivilegeType]authz.AccessLevel{
				authz.PrivilegeCreate: authz.AccessTenant,
				authz.PrivilegeWrite:  authz.AccessOwner,
			}},
		},
		Specials: authz.SpecialGrants{},
	}
}

func newTestService(repo *mockRepo) *Service {
	return NewService(repo, NewCache(nil, 0), slog.Default())
}

func TestCreateValidatesVocabulary(t *testing.T) {
	svc := newTestService(newMockRepo())

	role := customRole(3)
	role.Privileges = append(role.Privileges, EntityPrivilege{
		Entity:     authz.EntityType("blog"),
		Privileges: map[authz.PrivilegeType]authz.AccessLevel{authz.PrivilegeRead: authz.AccessTenant},
	})

	_, err := svc.Create(context.Background(), tenantAdmin(3), role)
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, err.Error(), `"blog"`)
}

func TestCreateRejectsUnknownAccessLevel(t *testing.T) {
	svc := newTestService(newMockRepo())

	role := customRole(3)
	role.Privileges[0].Privileges[authz.PrivilegeDelete] = authz.AccessLevel("unlimited")

	_, err := svc.Create(context.Background(), tenantAdmin(3), role)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateCrossTenantRejected(t *testing.T) {
	svc := newTestService(newMockRepo())

	_, err := svc.Create(context.Background(), tenantAdmin(4), customRole(3))
	require.ErrorIs(t, err, ErrCrossTenant)
}

func TestCreateSystemRoleRequiresPlatformAdmin(t *testing.T) {
	svc := newTestService(newMockRepo())

	role := Role{Name: "Curator", IsSystem: true}
	_, err := svc.Create(context.Background(), tenantAdmin(3), role)
	require.ErrorIs(t, err, ErrSystemRoleImmutable)

	_, err = svc.Create(context.Background(), systemAdmin(), role)
	require.NoError(t, err)
}

func TestUpdatePreservesSystemFlagAndTenant(t *testing.T) {
	repo := newMockRepo(Role{ID: 10, Name: "Viewer", IsSystem: true, Specials: authz.SpecialGrants{}})
	svc := newTestService(repo)

	// A tenant admin cannot touch a system role at all.
	update := Role{ID: 10, Name: "Viewer", Description: "tweaked"}
	_, err := svc.Update(context.Background(), tenantAdmin(3), update)
	require.ErrorIs(t, err, ErrSystemRoleImmutable)

	// A platform admin can, but the role stays a system role even if the
	// payload claims otherwise.
	update.IsSystem = false
	update.TenantID = int64ptr(3)
	got, err := svc.Update(context.Background(), systemAdmin(), update)
	require.NoError(t, err)
	assert.True(t, got.IsSystem)
	assert.Nil(t, got.TenantID)
}

func TestDeleteSystemRoleAlwaysProtected(t *testing.T) {
	repo := newMockRepo(Role{ID: 10, Name: "Viewer", IsSystem: true, Specials: authz.SpecialGrants{}})
	svc := newTestService(repo)

	err := svc.Delete(context.Background(), systemAdmin(), 10)
	require.ErrorIs(t, err, ErrSystemRoleProtected)
	assert.Zero(t, repo.deleteCalls)
}

func TestDeleteGuardsAssignedUsers(t *testing.T) {
	role := customRole(3)
	role.ID = 20
	repo := newMockRepo(role)
	repo.counts[20] = 4
	svc := newTestService(repo)

	err := svc.Delete(context.Background(), tenantAdmin(3), 20)
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Contains(t, err.Error(), "assigned to 4 user(s)")
	assert.Zero(t, repo.deleteCalls)

	// Once the last user is reassigned the deletion proceeds.
	repo.counts[20] = 0
	require.NoError(t, svc.Delete(context.Background(), tenantAdmin(3), 20))
	assert.Equal(t, 1, repo.deleteCalls)
}

func TestDeleteCrossTenantRejected(t *testing.T) {
	role := customRole(3)
	role.ID = 20
	repo := newMockRepo(role)
	svc := newTestService(repo)

	err := svc.Delete(context.Background(), tenantAdmin(4), 20)
	require.ErrorIs(t, err, ErrCrossTenant)
}

func TestGrantsServesResolverShape(t *testing.T) {
	role := customRole(3)
	role.ID = 20
	role.Specials = authz.SpecialGrants{authz.SpecialBulkOperations: true}
	repo := newMockRepo(role)
	svc := newTestService(repo)

	matrix, specials, err := svc.Grants(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, authz.AccessTenant, matrix[authz.EntityEvent][authz.PrivilegeCreate])
	assert.Equal(t, authz.AccessOwner, matrix[authz.EntityEvent][authz.PrivilegeWrite])
	assert.True(t, specials[authz.SpecialBulkOperations])

	_, _, err = svc.Grants(context.Background(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestEnsureSystemRolesIdempotent(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	require.NoError(t, svc.EnsureSystemRoles(context.Background()))
	seeded := repo.insertCalls
	assert.Equal(t, len(SystemRoles()), seeded)

	require.NoError(t, svc.EnsureSystemRoles(context.Background()))
	assert.Equal(t, seeded, repo.insertCalls, "second run inserts nothing")
}

func TestSystemRoleSeedsValidate(t *testing.T) {
	for _, seed := range SystemRoles() {
		require.NoError(t, seed.Validate(), seed.Name)
	}
}
