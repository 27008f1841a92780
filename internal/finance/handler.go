package finance

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terrabook/terrabook/internal/platform/httpx"
	"github.com/terrabook/terrabook/internal/rbac"
	"github.com/terrabook/terrabook/internal/shared"
)

// Handler serves the reconciliation report.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the finance handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermFinanceReportView))
		r.Get("/report", h.report)
	})
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rangeKind := q.Get("range")
	if rangeKind == "" {
		rangeKind = shared.RangeAll
	}
	var from, to time.Time
	if fromStr := q.Get("from"); fromStr != "" {
		parsed, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from, want YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if toStr := q.Get("to"); toStr != "" {
		parsed, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to, want YYYY-MM-DD")
			return
		}
		to = parsed
	}

	report, err := h.service.Report(r.Context(), rangeKind, from, to)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidRange) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("build reconciliation report", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
