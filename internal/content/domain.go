// Package content manages family-shared items: news, events, documents,
// recipes, polls, memorials and photos.
package content

import (
	"fmt"
	"strings"
	"time"

	"github.com/hearthbook/hearthbook/internal/authz"
	"github.com/hearthbook/hearthbook/internal/shared"
)

// Status is the publication state of an item.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusArchived Status = "archived"
)

// Item is one piece of content. Items are keyed by kind and id together so
// every entity type shares the workflow and counter machinery.
type Item struct {
	ID        int64            `json:"id"`
	Kind      authz.EntityType `json:"kind"`
	TenantID  int64            `json:"tenant_id"`
	AuthorID  int64            `json:"author_id"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Status    Status           `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Ownership projects the item into the resolver's target shape.
func (i Item) Ownership() authz.Ownership {
	owner := i.AuthorID
	tenant := i.TenantID
	return authz.Ownership{OwnerID: &owner, TenantID: &tenant}
}

// Draft is the input for creating an item.
type Draft struct {
	Kind  authz.EntityType `json:"kind"`
	Title string           `json:"title"`
	Body  string           `json:"body"`
}

// Validate checks the draft against the closed entity vocabulary.
func (d Draft) Validate() error {
	if !authz.ValidEntityType(d.Kind) {
		return fmt.Errorf("content: unknown kind %q: %w", d.Kind, shared.ErrValidation)
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("content: title required: %w", shared.ErrValidation)
	}
	return nil
}

// ErrItemNotFound indicates the requested item does not exist.
var ErrItemNotFound = fmt.Errorf("content: item %w", shared.ErrNotFound)
