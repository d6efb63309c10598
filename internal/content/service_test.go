package content

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthbook/hearthbook/internal/authz"
	"github.com/hearthbook/hearthbook/internal/moderation"
	"github.com/hearthbook/hearthbook/internal/shared"
	"github.com/hearthbook/hearthbook/internal/tenants"
)

type mockContentRepo struct {
	items  map[int64]Item
	nextID int64
}

func newMockContentRepo() *mockContentRepo {
	return &mockContentRepo{items: make(map[int64]Item), nextID: 1}
}

func (m *mockContentRepo) Get(_ context.Context, kind authz.EntityType, id int64) (Item, error) {
	item, ok := m.items[id]
	if !ok || item.Kind != kind {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (m *mockContentRepo) ListByTenant(_ context.Context, tenantID int64, kind authz.EntityType, statuses []Status) ([]Item, error) {
	var out []Item
	for _, item := range m.items {
		if item.TenantID != tenantID || item.Kind != kind {
			continue
		}
		for _, s := range statuses {
			if item.Status == s {
				out = append(out, item)
				break
			}
		}
	}
	return out, nil
}

func (m *mockContentRepo) Insert(_ context.Context, item Item) (Item, error) {
	item.ID = m.nextID
	m.nextID++
	m.items[item.ID] = item
	return item, nil
}

func (m *mockContentRepo) Update(_ context.Context, item Item) (Item, error) {
	if _, ok := m.items[item.ID]; !ok {
		return Item{}, ErrItemNotFound
	}
	m.items[item.ID] = item
	return item, nil
}

func (m *mockContentRepo) SetStatus(_ context.Context, kind authz.EntityType, id int64, status Status) error {
	item, ok := m.items[id]
	if !ok || item.Kind != kind {
		return ErrItemNotFound
	}
	item.Status = status
	m.items[id] = item
	return nil
}

func (m *mockContentRepo) Delete(_ context.Context, kind authz.EntityType, id int64) error {
	item, ok := m.items[id]
	if !ok || item.Kind != kind {
		return ErrItemNotFound
	}
	delete(m.items, id)
	return nil
}

// allowAllDecider grants every privilege; specials are configurable.
type allowAllDecider struct {
	approveContent bool
}

func (d *allowAllDecider) Resolve(_ context.Context, _ authz.Principal, _ authz.EntityType, _ authz.PrivilegeType, _ authz.Ownership) (authz.Decision, error) {
	return authz.Decision{Allowed: true, Reason: "tenant access", Level: authz.AccessTenant}, nil
}

func (d *allowAllDecider) CheckSpecial(_ context.Context, _ authz.Principal, name authz.SpecialPermission) (bool, error) {
	if name == authz.SpecialApproveContent {
		return d.approveContent, nil
	}
	return false, nil
}

type denyDecider struct{}

func (denyDecider) Resolve(_ context.Context, _ authz.Principal, _ authz.EntityType, _ authz.PrivilegeType, _ authz.Ownership) (authz.Decision, error) {
	return authz.Decision{Allowed: false, Reason: "no security role assigned"}, nil
}

func (denyDecider) CheckSpecial(_ context.Context, _ authz.Principal, _ authz.SpecialPermission) (bool, error) {
	return false, nil
}

type mockTenantSource struct {
	tenant  tenants.Tenant
	content int64
}

func (m *mockTenantSource) Get(_ context.Context, id int64) (tenants.Tenant, error) {
	if id != m.tenant.ID {
		return tenants.Tenant{}, tenants.ErrTenantNotFound
	}
	return m.tenant, nil
}

func (m *mockTenantSource) AdjustCounters(_ context.Context, _ int64, delta tenants.CounterDelta) error {
	m.content += delta.Content
	return nil
}

type mockWorkflow struct {
	submitted []moderation.Submission
	err       error
}

func (m *mockWorkflow) Submit(_ context.Context, _ authz.Principal, sub moderation.Submission) (moderation.Ticket, error) {
	if m.err != nil {
		return moderation.Ticket{}, m.err
	}
	m.submitted = append(m.submitted, sub)
	return moderation.Ticket{ID: uuid.New(), Kind: sub.Kind, TargetID: sub.TargetID, Status: moderation.StatusPending}, nil
}

func int64ptr(v int64) *int64 { return &v }

func author() authz.Principal {
	return authz.Principal{UserID: 7, TenantID: int64ptr(3), ImplicitRole: authz.RoleMember}
}

func activeTenant(requireApproval bool) *mockTenantSource {
	return &mockTenantSource{tenant: tenants.Tenant{ID: 3, Name: "Smith Family", Status: tenants.StatusActive, RequireApproval: requireApproval}}
}

func newsDraft() Draft {
	return Draft{Kind: authz.EntityNews, Title: "Reunion planned", Body: "Save the date."}
}

func TestCreateDirectPublishWhenApprovalOff(t *testing.T) {
	repo := newMockContentRepo()
	tenantSource := activeTenant(false)
	workflow := &mockWorkflow{}
	svc := NewService(repo, &allowAllDecider{}, tenantSource, workflow, slog.Default())

	result, err := svc.Create(context.Background(), author(), newsDraft())
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, result.Item.Status)
	assert.Nil(t, result.Ticket)
	assert.Empty(t, workflow.submitted)
	assert.Equal(t, int64(1), tenantSource.content, "direct publish counts immediately")
}

func TestCreateGuardedWhenApprovalRequired(t *testing.T) {
	repo := newMockContentRepo()
	tenantSource := activeTenant(true)
	workflow := &mockWorkflow{}
	svc := NewService(repo, &allowAllDecider{}, tenantSource, workflow, slog.Default())

	result, err := svc.Create(context.Background(), author(), newsDraft())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, result.Item.Status)
	require.NotNil(t, result.Ticket)
	require.Len(t, workflow.submitted, 1)
	assert.Equal(t, moderation.ContentKind(authz.EntityNews), workflow.submitted[0].Kind)
	assert.Equal(t, result.Item.ID, workflow.submitted[0].TargetID)
	assert.Zero(t, tenantSource.content, "pending items are not counted yet")
}

func TestCreateSelfApproverSkipsQueue(t *testing.T) {
	repo := newMockContentRepo()
	tenantSource := activeTenant(true)
	workflow := &mockWorkflow{}
	svc := NewService(repo, &allowAllDecider{approveContent: true}, tenantSource, workflow, slog.Default())

	result, err := svc.Create(context.Background(), author(), newsDraft())
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, result.Item.Status)
	assert.Empty(t, workflow.submitted)
	assert.Equal(t, int64(1), tenantSource.content)
}

func TestCreateDeniedWithoutPrivilege(t *testing.T) {
	svc := NewService(newMockContentRepo(), denyDecider{}, activeTenant(false), &mockWorkflow{}, slog.Default())

	_, err := svc.Create(context.Background(), author(), newsDraft())
	require.ErrorIs(t, err, shared.ErrPermission)
	assert.Contains(t, err.Error(), "no security role assigned")
}

func TestCreateRejectedInSuspendedTenant(t *testing.T) {
	tenantSource := activeTenant(false)
	tenantSource.tenant.Status = tenants.StatusSuspended
	svc := NewService(newMockContentRepo(), &allowAllDecider{}, tenantSource, &mockWorkflow{}, slog.Default())

	_, err := svc.Create(context.Background(), author(), newsDraft())
	require.ErrorIs(t, err, shared.ErrPermission)
	assert.Contains(t, err.Error(), "suspended")
}

func TestCreateUnknownKindRejected(t *testing.T) {
	svc := NewService(newMockContentRepo(), &allowAllDecider{}, activeTenant(false), &mockWorkflow{}, slog.Default())

	_, err := svc.Create(context.Background(), author(), Draft{Kind: authz.EntityType("blog"), Title: "x"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateUnwindsWhenTicketFails(t *testing.T) {
	repo := newMockContentRepo()
	workflow := &mockWorkflow{err: errors.New("queue unavailable")}
	svc := NewService(repo, &allowAllDecider{}, activeTenant(true), workflow, slog.Default())

	_, err := svc.Create(context.Background(), author(), newsDraft())
	require.Error(t, err)
	assert.Empty(t, repo.items, "stranded pending item removed")
}

func TestUpdateGuardedStagesEditForApproval(t *testing.T) {
	repo := newMockContentRepo()
	inserted, _ := repo.Insert(context.Background(), Item{Kind: authz.EntityNews, TenantID: 3, AuthorID: 7, Title: "Reunion planned", Body: "Save the date.", Status: StatusApproved})
	tenantSource := activeTenant(true)
	tenantSource.content = 1
	workflow := &mockWorkflow{}
	svc := NewService(repo, &allowAllDecider{}, tenantSource, workflow, slog.Default())

	result, err := svc.Update(context.Background(), author(), authz.EntityNews, inserted.ID,
		Draft{Title: "Reunion moved", Body: "New date soon."})
	require.NoError(t, err)
	require.NotNil(t, result.Ticket, "an edit in a guarded tenant opens a ticket")
	assert.Equal(t, StatusPending, result.Item.Status)
	assert.Equal(t, StatusPending, repo.items[inserted.ID].Status)
	assert.Equal(t, "Reunion moved", repo.items[inserted.ID].Title)
	assert.Zero(t, tenantSource.content, "staged item leaves the published set")

	require.Len(t, workflow.submitted, 1)
	sub := workflow.submitted[0]
	assert.Equal(t, inserted.ID, sub.TargetID)
	require.Len(t, sub.Changes, 2)
	assert.Equal(t, moderation.FieldChange{Field: "title", Old: "Reunion planned", New: "Reunion moved"}, sub.Changes[0])
	assert.Equal(t, moderation.FieldChange{Field: "body", Old: "Save the date.", New: "New date soon."}, sub.Changes[1])
}

func TestUpdateSelfApproverPublishesDirectly(t *testing.T) {
	repo := newMockContentRepo()
	inserted, _ := repo.Insert(context.Background(), Item{Kind: authz.EntityNews, TenantID: 3, AuthorID: 7, Title: "a", Body: "b", Status: StatusApproved})
	tenantSource := activeTenant(true)
	tenantSource.content = 1
	workflow := &mockWorkflow{}
	svc := NewService(repo, &allowAllDecider{approveContent: true}, tenantSource, workflow, slog.Default())

	result, err := svc.Update(context.Background(), author(), authz.EntityNews, inserted.ID, Draft{Title: "a2", Body: "b"})
	require.NoError(t, err)
	assert.Nil(t, result.Ticket)
	assert.Equal(t, StatusApproved, repo.items[inserted.ID].Status)
	assert.Equal(t, "a2", repo.items[inserted.ID].Title)
	assert.Empty(t, workflow.submitted)
	assert.Equal(t, int64(1), tenantSource.content, "direct edit keeps the item counted")
}

func TestUpdateWithoutChangesOpensNoTicket(t *testing.T) {
	repo := newMockContentRepo()
	inserted, _ := repo.Insert(context.Background(), Item{Kind: authz.EntityNews, TenantID: 3, AuthorID: 7, Title: "a", Body: "b", Status: StatusApproved})
	workflow := &mockWorkflow{}
	svc := NewService(repo, &allowAllDecider{}, activeTenant(true), workflow, slog.Default())

	result, err := svc.Update(context.Background(), author(), authz.EntityNews, inserted.ID, Draft{Title: "a", Body: "b"})
	require.NoError(t, err)
	assert.Nil(t, result.Ticket)
	assert.Equal(t, StatusApproved, result.Item.Status)
	assert.Empty(t, workflow.submitted)
}

func TestUpdateUnwindsWhenTicketFails(t *testing.T) {
	repo := newMockContentRepo()
	inserted, _ := repo.Insert(context.Background(), Item{Kind: authz.EntityNews, TenantID: 3, AuthorID: 7, Title: "a", Body: "b", Status: StatusApproved})
	tenantSource := activeTenant(true)
	tenantSource.content = 1
	workflow := &mockWorkflow{err: errors.New("queue unavailable")}
	svc := NewService(repo, &allowAllDecider{}, tenantSource, workflow, slog.Default())

	_, err := svc.Update(context.Background(), author(), authz.EntityNews, inserted.ID, Draft{Title: "a2", Body: "b"})
	require.Error(t, err)
	assert.Equal(t, "a", repo.items[inserted.ID].Title, "staged values rolled back")
	assert.Equal(t, StatusApproved, repo.items[inserted.ID].Status)
	assert.Equal(t, int64(1), tenantSource.content, "counter restored")
}

func TestUpdatePendingItemRejectedWhileTicketOutstanding(t *testing.T) {
	repo := newMockContentRepo()
	inserted, _ := repo.Insert(context.Background(), Item{Kind: authz.EntityNews, TenantID: 3, AuthorID: 7, Title: "a", Body: "b", Status: StatusPending})
	workflow := &mockWorkflow{err: moderation.ErrPendingExists}
	svc := NewService(repo, &allowAllDecider{}, activeTenant(true), workflow, slog.Default())

	_, err := svc.Update(context.Background(), author(), authz.EntityNews, inserted.ID, Draft{Title: "a2", Body: "b"})
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, "a", repo.items[inserted.ID].Title)
	assert.Equal(t, StatusPending, repo.items[inserted.ID].Status)
}

func TestListRevealsPendingToReviewersOnly(t *testing.T) {
	repo := newMockContentRepo()
	_, _ = repo.Insert(context.Background(), Item{Kind: authz.EntityNews, TenantID: 3, AuthorID: 7, Title: "a", Status: StatusApproved})
	_, _ = repo.Insert(context.Background(), Item{Kind: authz.EntityNews, TenantID: 3, AuthorID: 7, Title: "b", Status: StatusPending})

	member := NewService(repo, &allowAllDecider{}, activeTenant(true), &mockWorkflow{}, slog.Default())
	items, err := member.List(context.Background(), author(), 3, authz.EntityNews)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	moderator := NewService(repo, &allowAllDecider{approveContent: true}, activeTenant(true), &mockWorkflow{}, slog.Default())
	items, err = moderator.List(context.Background(), author(), 3, authz.EntityNews)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestArchiveReleasesCounter(t *testing.T) {
	repo := newMockContentRepo()
	inserted, _ := repo.Insert(context.Background(), Item{Kind: authz.EntityNews, TenantID: 3, AuthorID: 7, Title: "a", Status: StatusApproved})
	tenantSource := activeTenant(false)
	tenantSource.content = 1
	svc := NewService(repo, &allowAllDecider{}, tenantSource, &mockWorkflow{}, slog.Default())

	require.NoError(t, svc.Archive(context.Background(), author(), authz.EntityNews, inserted.ID))
	assert.Equal(t, StatusArchived, repo.items[inserted.ID].Status)
	assert.Zero(t, tenantSource.content)

	// A pending item cannot be archived.
	pending, _ := repo.Insert(context.Background(), Item{Kind: authz.EntityNews, TenantID: 3, AuthorID: 7, Title: "b", Status: StatusPending})
	err := svc.Archive(context.Background(), author(), authz.EntityNews, pending.ID)
	require.ErrorIs(t, err, shared.ErrConflict)
}
