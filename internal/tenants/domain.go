// Package tenants manages family communities, their membership records and
// denormalized activity counters.
package tenants

import (
	"fmt"
	"time"

	"github.com/hearthbook/hearthbook/internal/shared"
)

// Status is the lifecycle state of a tenant.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// ValidStatus reports whether s is a known tenant status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusActive, StatusSuspended:
		return true
	}
	return false
}

// Tenant is one family community. The counters are denormalized and adjusted
// atomically alongside the workflow transitions that change them.
type Tenant struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Status           Status    `json:"status"`
	RequireApproval  bool      `json:"require_approval"`
	MemberCount      int64     `json:"member_count"`
	ContentCount     int64     `json:"content_count"`
	PendingApprovals int64     `json:"pending_approvals"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MemberStatus is the lifecycle state of a membership record.
type MemberStatus string

const (
	MemberPending  MemberStatus = "pending"
	MemberApproved MemberStatus = "approved"
	MemberRejected MemberStatus = "rejected"
)

// Member is a join request or confirmed membership of a user in a tenant.
type Member struct {
	ID        int64        `json:"id"`
	TenantID  int64        `json:"tenant_id"`
	UserID    int64        `json:"user_id"`
	Status    MemberStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// CounterDelta names one counter adjustment on a tenant row.
type CounterDelta struct {
	Members          int64
	Content          int64
	PendingApprovals int64
}

// ErrTenantNotFound indicates the requested tenant does not exist.
var ErrTenantNotFound = fmt.Errorf("tenants: tenant %w", shared.ErrNotFound)

// ErrMemberNotFound indicates the requested membership record does not exist.
var ErrMemberNotFound = fmt.Errorf("tenants: member %w", shared.ErrNotFound)
