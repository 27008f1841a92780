package land

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terrabook/terrabook/internal/platform/httpx"
	"github.com/terrabook/terrabook/internal/rbac"
	"github.com/terrabook/terrabook/internal/shared"
)

// Handler wires HTTP endpoints for land batches and parcels.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the land handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers land routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermLandView))
		r.Get("/batches", h.listBatches)
		r.Get("/batches/{id}", h.getBatch)
		r.Get("/parcels", h.listParcels)
		r.Get("/parcels/{id}", h.getParcel)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermLandEdit))
		r.Post("/batches", h.createBatch)
		r.Put("/batches/{id}", h.updateBatch)
		r.Delete("/batches/{id}", h.deleteBatch)
		r.Post("/parcels", h.createParcel)
		r.Put("/parcels/{id}", h.updateParcel)
	})
}

type batchRequest struct {
	Name         string  `json:"name"`
	Location     string  `json:"location"`
	TotalAreaSqm float64 `json:"total_area_sqm"`
	PurchaseCost float64 `json:"purchase_cost"`
	PurchasedAt  string  `json:"purchased_at"`
	Note         string  `json:"note"`
}

type parcelRequest struct {
	BatchID          int64   `json:"batch_id"`
	Number           string  `json:"number"`
	AreaSqm          float64 `json:"area_sqm"`
	CashPrice        float64 `json:"cash_price"`
	InstallmentPrice float64 `json:"installment_price"`
	PurchaseCost     float64 `json:"purchase_cost"`
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.ListBatches(r.Context())
	if err != nil {
		h.respondError(w, r, "list batches", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"batches": batches})
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	input, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	batch, err := h.service.CreateBatch(r.Context(), input)
	if err != nil {
		h.respondError(w, r, "create batch", err)
		return
	}
	h.logger.Info("batch created", slog.Int64("batch_id", batch.ID), slog.String("name", batch.Name))
	httpx.JSON(w, http.StatusCreated, batch)
}

func (h *Handler) updateBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req batchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	input, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	batch, err := h.service.UpdateBatch(r.Context(), id, input)
	if err != nil {
		h.respondError(w, r, "update batch", err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) deleteBatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteBatch(r.Context(), id); err != nil {
		h.respondError(w, r, "delete batch", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listParcels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListParcelsRequest{Status: ParcelStatus(q.Get("status")), Limit: 200}
	if batchStr := q.Get("batch_id"); batchStr != "" {
		if id, err := strconv.ParseInt(batchStr, 10, 64); err == nil {
			req.BatchID = id
		} else {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid batch_id")
			return
		}
	}
	parcels, err := h.service.ListParcels(r.Context(), req)
	if err != nil {
		h.respondError(w, r, "list parcels", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"parcels": parcels})
}

func (h *Handler) getParcel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	parcel, err := h.service.GetParcel(r.Context(), id)
	if err != nil {
		h.respondError(w, r, "get parcel", err)
		return
	}
	httpx.JSON(w, http.StatusOK, parcel)
}

func (h *Handler) createParcel(w http.ResponseWriter, r *http.Request) {
	var req parcelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	parcel, err := h.service.CreateParcel(r.Context(), ParcelInput(req))
	if err != nil {
		h.respondError(w, r, "create parcel", err)
		return
	}
	h.logger.Info("parcel created", slog.Int64("parcel_id", parcel.ID), slog.Int64("batch_id", parcel.BatchID))
	httpx.JSON(w, http.StatusCreated, parcel)
}

func (h *Handler) updateParcel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req parcelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	parcel, err := h.service.UpdateParcel(r.Context(), id, ParcelInput(req))
	if err != nil {
		h.respondError(w, r, "update parcel", err)
		return
	}
	httpx.JSON(w, http.StatusOK, parcel)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrBatchHasSales), errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (req batchRequest) toInput() (BatchInput, error) {
	input := BatchInput{
		Name:         req.Name,
		Location:     req.Location,
		TotalAreaSqm: req.TotalAreaSqm,
		PurchaseCost: req.PurchaseCost,
		Note:         req.Note,
	}
	if req.PurchasedAt != "" {
		t, err := time.Parse("2006-01-02", req.PurchasedAt)
		if err != nil {
			return BatchInput{}, errors.New("invalid purchased_at, want YYYY-MM-DD")
		}
		input.PurchasedAt = t
	}
	return input, nil
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}
