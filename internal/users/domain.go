// Package users manages member profiles and their security assignments.
package users

import (
	"fmt"
	"time"

	"github.com/hearthbook/hearthbook/internal/authz"
	"github.com/hearthbook/hearthbook/internal/shared"
)

// Profile is a platform member. A member belongs to at most one tenant and
// may carry a security role plus per-user permission overrides.
type Profile struct {
	ID           int64              `json:"id"`
	Email        string             `json:"email"`
	DisplayName  string             `json:"display_name"`
	PasswordHash string             `json:"-"`
	TenantID     *int64             `json:"tenant_id,omitempty"`
	ImplicitRole authz.ImplicitRole `json:"implicit_role"`
	RoleID       *int64             `json:"role_id,omitempty"`
	Overrides    map[string]bool    `json:"permission_overrides,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Principal projects the profile into the resolver's request-scoped identity.
// The projection is pure: it copies stored fields and derives nothing.
func (p Profile) Principal() authz.Principal {
	overrides := make(map[string]bool, len(p.Overrides))
	for k, v := range p.Overrides {
		overrides[k] = v
	}
	return authz.Principal{
		UserID:       p.ID,
		TenantID:     p.TenantID,
		ImplicitRole: p.ImplicitRole,
		RoleID:       p.RoleID,
		Overrides:    overrides,
	}
}

// ErrUserNotFound indicates the requested user does not exist.
var ErrUserNotFound = fmt.Errorf("users: user %w", shared.ErrNotFound)

// ErrDuplicateEmail indicates the email address is already registered.
var ErrDuplicateEmail = fmt.Errorf("users: email already registered: %w", shared.ErrConflict)
