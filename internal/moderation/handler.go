package moderation

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hearthbook/hearthbook/internal/authz"
	"github.com/hearthbook/hearthbook/internal/platform/httpx"
)

// Handler exposes the approval queue as a JSON API.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// Mount registers the moderation routes.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/tickets", h.list)
	r.Get("/tickets/{ticketID}", h.get)
	r.Post("/tickets/{ticketID}/decision", h.decide)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "authentication required")
		return
	}
	var status *TicketStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := TicketStatus(raw)
		switch s {
		case StatusPending, StatusApproved, StatusRejected:
			status = &s
		default:
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown ticket status")
			return
		}
	}
	tickets, err := h.service.List(r.Context(), actor, status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := ticketID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid ticket id")
		return
	}
	ticket, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ticket)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "authentication required")
		return
	}
	id, err := ticketID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid ticket id")
		return
	}
	var payload struct {
		Approve bool   `json:"approve"`
		Reason  string `json:"reason" validate:"max=1000"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ticket, err := h.service.Decide(r.Context(), actor, id, Verdict{Approve: payload.Approve, Reason: payload.Reason})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ticket)
}

func ticketID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "ticketID"))
}
