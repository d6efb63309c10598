// Package auth handles credential verification and login session records.
package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hearthbook/hearthbook/internal/shared"
	"github.com/hearthbook/hearthbook/internal/users"
)

// UserSource looks up accounts for credential checks.
type UserSource interface {
	FindByEmail(ctx context.Context, email string) (users.Profile, error)
}

// SessionStore persists login session records for auditing.
type SessionStore interface {
	CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// Service wraps authentication business rules.
type Service struct {
	userSource UserSource
	sessions   SessionStore
}

// NewService constructs a Service.
func NewService(userSource UserSource, sessions SessionStore) *Service {
	return &Service{userSource: userSource, sessions: sessions}
}

// Authenticate validates email/password credentials. All failure modes
// collapse into ErrInvalidCredentials so responses never reveal whether the
// account exists.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.Profile, error) {
	profile, err := s.userSource.FindByEmail(ctx, email)
	if err != nil {
		return users.Profile{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return users.Profile{}, shared.ErrInvalidCredentials
	}
	return profile, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.sessions.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.sessions.DeleteSession(ctx, id)
}

// HashPassword derives a bcrypt hash for account provisioning.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
