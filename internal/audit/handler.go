package audit

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hearthbook/hearthbook/internal/authz"
	"github.com/hearthbook/hearthbook/internal/platform/httpx"
	"github.com/hearthbook/hearthbook/internal/shared"
)

// Handler exposes the audit viewer. Callers gate the route behind the
// view_audit_logs special permission.
type Handler struct {
	store *PGEmitter
}

// NewHandler constructs a Handler.
func NewHandler(store *PGEmitter) *Handler {
	return &Handler{store: store}
}

// Mount registers the audit routes.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/audit", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "authentication required")
		return
	}

	page, perPage := 1, 50
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httpx.RespondError(w, ErrInvalidQuery)
			return
		}
		page = n
	}
	if raw := r.URL.Query().Get("per_page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			httpx.RespondError(w, ErrInvalidQuery)
			return
		}
		perPage = n
	}

	q := Query{
		Action: r.URL.Query().Get("action"),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}

	// Non-platform actors only see their own tenant's trail.
	if actor.ImplicitRole != authz.RoleSystemAdmin {
		q.TenantID = actor.TenantID
	}

	total, err := h.store.Count(r.Context(), q)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	events, err := h.store.List(r.Context(), q)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"events":     events,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}
