package content

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hearthbook/hearthbook/internal/authz"
	"github.com/hearthbook/hearthbook/internal/platform/httpx"
)

// Handler exposes the content API. Kinds appear in the URL so every entity
// type shares one route tree.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// Mount registers the content routes.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/content/{kind}", h.list)
	r.Post("/content/{kind}", h.create)
	r.Get("/content/{kind}/{itemID}", h.get)
	r.Put("/content/{kind}/{itemID}", h.update)
	r.Post("/content/{kind}/{itemID}/archive", h.archive)
}

type draftPayload struct {
	Title string `json:"title" validate:"required,max=300"`
	Body  string `json:"body" validate:"max=100000"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.PrincipalFromContext(r.Context())
	if !ok || actor.TenantID == nil {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "tenant membership required")
		return
	}
	items, err := h.service.List(r.Context(), actor, *actor.TenantID, kindParam(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "authentication required")
		return
	}
	var payload draftPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Create(r.Context(), actor, Draft{Kind: kindParam(r), Title: payload.Title, Body: payload.Body})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusCreated
	if result.Ticket != nil {
		// Parked behind an approval ticket rather than published.
		status = http.StatusAccepted
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "authentication required")
		return
	}
	id, err := itemID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid item id")
		return
	}
	item, err := h.service.Get(r.Context(), actor, kindParam(r), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "authentication required")
		return
	}
	id, err := itemID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid item id")
		return
	}
	var payload draftPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Update(r.Context(), actor, kindParam(r), id, Draft{Kind: kindParam(r), Title: payload.Title, Body: payload.Body})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusOK
	if result.Ticket != nil {
		// Staged behind an edit-approval ticket rather than published.
		status = http.StatusAccepted
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "authentication required")
		return
	}
	id, err := itemID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid item id")
		return
	}
	if err := h.service.Archive(r.Context(), actor, kindParam(r), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func kindParam(r *http.Request) authz.EntityType {
	return authz.EntityType(chi.URLParam(r, "kind"))
}

func itemID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
}
