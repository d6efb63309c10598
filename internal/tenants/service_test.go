package tenants

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthbook/hearthbook/internal/authz"
	"github.com/hearthbook/hearthbook/internal/moderation"
	"github.com/hearthbook/hearthbook/internal/shared"
)

type mockTenantRepo struct {
	tenants map[int64]Tenant
	members map[int64]Member
	nextID  int64
}

func newMockTenantRepo(seed ...Tenant) *mockTenantRepo {
	m := &mockTenantRepo{tenants: make(map[int64]Tenant), members: make(map[int64]Member), nextID: 1}
	for _, t := range seed {
		if t.ID >= m.nextID {
			m.nextID = t.ID + 1
		}
		m.tenants[t.ID] = t
	}
	return m
}

func (m *mockTenantRepo) Get(_ context.Context, id int64) (Tenant, error) {
	t, ok := m.tenants[id]
	if !ok {
		return Tenant{}, ErrTenantNotFound
	}
	return t, nil
}

func (m *mockTenantRepo) List(_ context.Context) ([]Tenant, error) {
	var out []Tenant
	for _, t := range m.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockTenantRepo) Insert(_ context.Context, tenant Tenant) (Tenant, error) {
	tenant.ID = m.nextID
	m.nextID++
	m.tenants[tenant.ID] = tenant
	return tenant, nil
}

func (m *mockTenantRepo) AdjustCounters(_ context.Context, tenantID int64, delta CounterDelta) error {
	t, ok := m.tenants[tenantID]
	if !ok {
		return ErrTenantNotFound
	}
	t.MemberCount += delta.Members
	t.ContentCount += delta.Content
	t.PendingApprovals += delta.PendingApprovals
	m.tenants[tenantID] = t
	return nil
}

func (m *mockTenantRepo) SetStatus(_ context.Context, tenantID int64, status Status) error {
	t, ok := m.tenants[tenantID]
	if !ok {
		return ErrTenantNotFound
	}
	t.Status = status
	m.tenants[tenantID] = t
	return nil
}

func (m *mockTenantRepo) GetMember(_ context.Context, id int64) (Member, error) {
	member, ok := m.members[id]
	if !ok {
		return Member{}, ErrMemberNotFound
	}
	return member, nil
}

func (m *mockTenantRepo) InsertMember(_ context.Context, member Member) (Member, error) {
	member.ID = m.nextID
	m.nextID++
	m.members[member.ID] = member
	return member, nil
}

type stubWorkflow struct {
	submitted []moderation.Submission
}

func (s *stubWorkflow) Submit(_ context.Context, _ authz.Principal, sub moderation.Submission) (moderation.Ticket, error) {
	s.submitted = append(s.submitted, sub)
	return moderation.Ticket{ID: uuid.New(), Kind: sub.Kind, TargetID: sub.TargetID, Status: moderation.StatusPending}, nil
}

func founder() authz.Principal {
	return authz.Principal{UserID: 7, ImplicitRole: authz.RoleMember}
}

func TestRegisterOpensTenantTicket(t *testing.T) {
	repo := newMockTenantRepo()
	workflow := &stubWorkflow{}
	svc := NewService(repo, workflow, slog.Default())

	result, err := svc.Register(context.Background(), founder(), "Smith Family", true)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, result.Tenant.Status)
	assert.True(t, result.Tenant.RequireApproval)
	require.Len(t, workflow.submitted, 1)
	assert.Equal(t, moderation.KindTenant, workflow.submitted[0].Kind)
	assert.Equal(t, result.Tenant.ID, workflow.submitted[0].TargetID)
}

func TestRegisterRequiresName(t *testing.T) {
	svc := NewService(newMockTenantRepo(), &stubWorkflow{}, slog.Default())

	_, err := svc.Register(context.Background(), founder(), "  ", false)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestJoinOpensMemberTicket(t *testing.T) {
	repo := newMockTenantRepo(Tenant{ID: 3, Name: "Smith Family", Status: StatusActive})
	workflow := &stubWorkflow{}
	svc := NewService(repo, workflow, slog.Default())

	result, err := svc.Join(context.Background(), founder(), 3)
	require.NoError(t, err)
	assert.Equal(t, MemberPending, result.Member.Status)
	require.Len(t, workflow.submitted, 1)
	assert.Equal(t, moderation.KindMember, workflow.submitted[0].Kind)
	assert.Equal(t, result.Member.ID, workflow.submitted[0].TargetID)
}

func TestJoinRejectedForInactiveTenant(t *testing.T) {
	repo := newMockTenantRepo(Tenant{ID: 3, Name: "Smith Family", Status: StatusSuspended})
	svc := NewService(repo, &stubWorkflow{}, slog.Default())

	_, err := svc.Join(context.Background(), founder(), 3)
	require.ErrorIs(t, err, shared.ErrPermission)

	_, err = svc.Join(context.Background(), founder(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListRestrictedToPlatformAdmins(t *testing.T) {
	repo := newMockTenantRepo(Tenant{ID: 3, Name: "Smith Family", Status: StatusActive})
	svc := NewService(repo, &stubWorkflow{}, slog.Default())

	_, err := svc.List(context.Background(), founder())
	require.ErrorIs(t, err, shared.ErrPermission)

	out, err := svc.List(context.Background(), authz.Principal{UserID: 1, ImplicitRole: authz.RoleSystemAdmin})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}
