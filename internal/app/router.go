package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hearthbook/hearthbook/internal/audit"
	"github.com/hearthbook/hearthbook/internal/auth"
	"github.com/hearthbook/hearthbook/internal/authz"
	"github.com/hearthbook/hearthbook/internal/content"
	"github.com/hearthbook/hearthbook/internal/moderation"
	"github.com/hearthbook/hearthbook/internal/observability"
	"github.com/hearthbook/hearthbook/internal/roles"
	"github.com/hearthbook/hearthbook/internal/shared"
	"github.com/hearthbook/hearthbook/internal/tenants"
	"github.com/hearthbook/hearthbook/internal/users"
	"github.com/hearthbook/hearthbook/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler       *auth.Handler
	AuthzHandler      *authz.Handler
	RolesHandler      *roles.Handler
	UsersHandler      *users.Handler
	TenantsHandler    *tenants.Handler
	ContentHandler    *content.Handler
	ModerationHandler *moderation.Handler
	AuditHandler      *audit.Handler
	JobHandler        *jobs.Handler

	Authz   authz.Middleware
	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Hearthbook defaults. Everything
// under /api requires a resolved principal; the user management and audit
// groups additionally sit behind their special permissions.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/api", func(r chi.Router) {
		r.Use(params.Authz.WithPrincipal)

		if params.AuthzHandler != nil {
			r.Route("/authz", params.AuthzHandler.Mount)
		}
		if params.RolesHandler != nil {
			params.RolesHandler.Mount(r)
		}
		if params.TenantsHandler != nil {
			params.TenantsHandler.Mount(r)
		}
		if params.ContentHandler != nil {
			params.ContentHandler.Mount(r)
		}
		if params.ModerationHandler != nil {
			params.ModerationHandler.Mount(r)
		}
		if params.UsersHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(params.Authz.RequireSpecial(authz.SpecialManageUsers))
				params.UsersHandler.Mount(r)
			})
		}
		if params.AuditHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(params.Authz.RequireSpecial(authz.SpecialViewAuditLogs))
				params.AuditHandler.Mount(r)
			})
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
