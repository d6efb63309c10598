package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hearthbook/hearthbook/internal/shared"
)

type principalContextKey struct{}

// ContextWithPrincipal stores the resolved principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// PrincipalSource builds a Principal for an authenticated user id.
type PrincipalSource interface {
	PrincipalByUserID(ctx context.Context, userID int64) (Principal, error)
}

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Resolver   *Resolver
	Principals PrincipalSource
	Logger     *slog.Logger
}

// WithPrincipal resolves the session user into a Principal and stores it in
// the request context. Requests without an authenticated session pass
// through as guests with no grants.
func (m Middleware) WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.currentUserID(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		principal, err := m.Principals.PrincipalByUserID(r.Context(), userID)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("authz load principal", slog.Int64("user_id", userID), slog.Any("error", err))
			}
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequirePrivilege gates a route on a coarse privilege check. Handlers that
// know the target record re-resolve with full ownership metadata.
func (m Middleware) RequirePrivilege(entity EntityType, privilege PrivilegeType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			decision, err := m.Resolver.Resolve(r.Context(), principal, entity, privilege, Ownership{})
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz require privilege", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !decision.Allowed {
				http.Error(w, decision.Reason, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSpecial gates a route on a named special permission.
func (m Middleware) RequireSpecial(name SpecialPermission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			granted, err := m.Resolver.CheckSpecial(r.Context(), principal, name)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz require special", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !granted {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("authz parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}
