package clients

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/terrabook/terrabook/internal/platform/httpx"
	"github.com/terrabook/terrabook/internal/rbac"
	"github.com/terrabook/terrabook/internal/shared"
)

// Handler wires HTTP endpoints for the client registry.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs the clients handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers client routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermClientsView))
		r.Get("/", h.listClients)
		r.Get("/{id}", h.getClient)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermClientsEdit))
		r.Post("/", h.createClient)
		r.Put("/{id}", h.updateClient)
		r.Delete("/{id}", h.deleteClient)
	})
}

type clientRequest struct {
	FullName   string `json:"full_name" validate:"required,min=2"`
	NationalID string `json:"national_id" validate:"required,min=4"`
	Phone      string `json:"phone" validate:"omitempty,min=6"`
	Email      string `json:"email" validate:"omitempty,email"`
	Address    string `json:"address"`
	Note       string `json:"note"`
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListClientsRequest{Search: q.Get("q")}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	list, pagination, err := h.service.ListClientsPage(r.Context(), req, page, perPage)
	if err != nil {
		h.respondError(w, "list clients", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"clients": list, "pagination": pagination})
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	client, err := h.service.GetClient(r.Context(), id)
	if err != nil {
		h.respondError(w, "get client", err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	client, err := h.service.CreateClient(r.Context(), ClientInput(req))
	if err != nil {
		h.respondError(w, "create client", err)
		return
	}
	h.logger.Info("client created", slog.Int64("client_id", client.ID))
	httpx.JSON(w, http.StatusCreated, client)
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	client, err := h.service.UpdateClient(r.Context(), id, ClientInput(req))
	if err != nil {
		h.respondError(w, "update client", err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *Handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	if err := h.service.DeleteClient(r.Context(), id); err != nil {
		h.respondError(w, "delete client", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (clientRequest, bool) {
	var req clientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return clientRequest{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fieldErrs[0].Error())
		} else {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid input")
		}
		return clientRequest{}, false
	}
	return req, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrIdentityLocked), errors.Is(err, ErrHasSales):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
