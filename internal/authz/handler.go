package authz

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hearthbook/hearthbook/internal/platform/httpx"
	"github.com/hearthbook/hearthbook/internal/shared"
)

// Handler exposes the permission probe so clients can render UI affordances
// without attempting the guarded operation.
type Handler struct {
	resolver *Resolver
}

// NewHandler constructs a Handler.
func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

// Mount registers the probe routes.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/check", h.check)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	actor, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "authentication required")
		return
	}

	q := r.URL.Query()
	if name := q.Get("special"); name != "" {
		special := SpecialPermission(name)
		if !ValidSpecialPermission(special) {
			httpx.RespondError(w, fmt.Errorf("authz: unknown special permission %q: %w", name, shared.ErrValidation))
			return
		}
		granted, err := h.resolver.CheckSpecial(r.Context(), actor, special)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"special": special, "granted": granted})
		return
	}

	entity := EntityType(q.Get("entity"))
	privilege := PrivilegeType(q.Get("privilege"))
	if !ValidEntityType(entity) {
		httpx.RespondError(w, fmt.Errorf("authz: unknown entity type %q: %w", q.Get("entity"), shared.ErrValidation))
		return
	}
	if !ValidPrivilegeType(privilege) {
		httpx.RespondError(w, fmt.Errorf("authz: unknown privilege %q: %w", q.Get("privilege"), shared.ErrValidation))
		return
	}

	var target Ownership
	if raw := q.Get("owner_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("authz: bad owner_id: %w", shared.ErrValidation))
			return
		}
		target.OwnerID = &id
	}
	if raw := q.Get("tenant_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("authz: bad tenant_id: %w", shared.ErrValidation))
			return
		}
		target.TenantID = &id
	}

	decision, err := h.resolver.Resolve(r.Context(), actor, entity, privilege, target)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, decision)
}
