package tenants

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hearthbook/hearthbook/internal/authz"
	"github.com/hearthbook/hearthbook/internal/platform/httpx"
)

// Handler exposes tenant lifecycle operations as a JSON API.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// Mount registers the tenant routes.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/tenants", h.list)
	r.Post("/tenants", h.register)
	r.Get("/tenants/{tenantID}", h.get)
	r.Post("/tenants/{tenantID}/join", h.join)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "authentication required")
		return
	}
	out, err := h.service.List(r.Context(), actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tenants": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := tenantID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid tenant id")
		return
	}
	tenant, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tenant)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "authentication required")
		return
	}
	var payload struct {
		Name            string `json:"name" validate:"required,max=200"`
		RequireApproval bool   `json:"require_approval"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Register(r.Context(), actor, payload.Name, payload.RequireApproval)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, result)
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "authentication required")
		return
	}
	id, err := tenantID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid tenant id")
		return
	}
	result, err := h.service.Join(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, result)
}

func tenantID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
}
