package sales

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

// Handler wires HTTP endpoints for the sale lifecycle.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	enricher DisplayEnricher
}

// NewHandler constructs the sales handler. The enricher may be nil; rows are
// then served without display names.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, enricher DisplayEnricher) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, enricher: enricher}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSalesView))
		r.Get("/", h.listRows)
		r.Get("/{id}", h.getSale)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermSalesCreate))
		r.Post("/", h.createSale)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermSalesConfirm))
		r.Post("/{id}/confirm-full", h.confirmFull)
		r.Post("/{id}/confirm-installment", h.confirmInstallment)
		r.Post("/{id}/payments", h.recordPayment)
		r.Post("/{id}/complete-promise", h.completePromise)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermSalesCancel))
		r.Post("/{id}/cancel", h.cancel)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermSalesReset))
		r.Post("/{id}/reset", h.reset)
	})
}

func (h *Handler) listRows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListSalesRequest{Status: SaleStatus(q.Get("status")), Limit: 200}
	if clientStr := q.Get("client_id"); clientStr != "" {
		if id, err := strconv.ParseInt(clientStr, 10, 64); err == nil {
			req.ClientID = id
		}
	}
	if rangeKind := q.Get("range"); rangeKind != "" {
		var from, to time.Time
		if fromStr := q.Get("from"); fromStr != "" {
			from, _ = time.Parse("2006-01-02", fromStr)
		}
		if toStr := q.Get("to"); toStr != "" {
			to, _ = time.Parse("2006-01-02", toStr)
		}
		dateRange, err := shared.ResolveRange(rangeKind, from, to, time.Now())
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		req.From = dateRange.From
		req.To = dateRange.To
	}

	rows, err := h.service.Rows(r.Context(), req, h.enricher)
	if err != nil {
		h.respondError(w, "list sale rows", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		h.respondError(w, "get sale", err)
		return
	}
	state, err := h.service.State(r.Context(), id)
	if err != nil {
		h.respondError(w, "resolve sale state", err)
		return
	}
	payments, err := h.service.repo.ListPaymentsBySale(r.Context(), id)
	if err != nil {
		h.respondError(w, "list payments", err)
		return
	}
	installments, err := h.service.repo.ListInstallmentsBySale(r.Context(), id)
	if err != nil {
		h.respondError(w, "list installments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"sale":         sale,
		"state":        state,
		"payments":     payments,
		"installments": installments,
	})
}

type createSaleRequest struct {
	ClientID    int64   `json:"client_id"`
	ParcelIDs   []int64 `json:"parcel_ids"`
	Kind        string  `json:"kind"`
	Reservation float64 `json:"reservation"`
	Deadline    string  `json:"deadline"`
	Method      string  `json:"method"`
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	input := CreateSaleInput{
		ClientID:    req.ClientID,
		ParcelIDs:   req.ParcelIDs,
		Kind:        SaleKind(req.Kind),
		Reservation: req.Reservation,
		Method:      req.Method,
		CreatedBy:   actorID(r),
	}
	if req.Deadline != "" {
		deadline, err := time.Parse("2006-01-02", req.Deadline)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid deadline, want YYYY-MM-DD")
			return
		}
		input.Deadline = &deadline
	}
	sale, err := h.service.CreateSale(r.Context(), input)
	if err != nil {
		h.respondError(w, "create sale", err)
		return
	}
	h.logger.Info("sale created",
		slog.Int64("sale_id", sale.ID),
		slog.Int64("client_id", sale.ClientID),
		slog.Int("parcels", sale.PieceCount()))
	httpx.JSON(w, http.StatusCreated, sale)
}

type confirmFullRequest struct {
	ParcelID      int64    `json:"parcel_id"`
	CompanyFeePct *float64 `json:"company_fee_pct"`
	PaidAt        string   `json:"paid_at"`
	Method        string   `json:"method"`
}

func (h *Handler) confirmFull(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req confirmFullRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	input := ConfirmFullInput{
		SaleID:         id,
		ParcelID:       req.ParcelID,
		CompanyFeePct:  req.CompanyFeePct,
		Method:         req.Method,
		ActorID:        actorID(r),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	if req.PaidAt != "" {
		paidAt, err := time.Parse("2006-01-02", req.PaidAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid paid_at, want YYYY-MM-DD")
			return
		}
		input.PaidAt = paidAt
	}
	sale, err := h.service.ConfirmFull(r.Context(), input)
	if err != nil {
		h.respondError(w, "confirm full", err)
		return
	}
	h.logger.Info("sale confirmed full", slog.Int64("sale_id", sale.ID), slog.Int64("parcel_id", req.ParcelID))
	httpx.JSON(w, http.StatusOK, sale)
}

type confirmInstallmentRequest struct {
	ParcelID      int64    `json:"parcel_id"`
	Term          int      `json:"term"`
	Start         string   `json:"start"`
	DownPayment   float64  `json:"down_payment"`
	CompanyFeePct *float64 `json:"company_fee_pct"`
	Method        string   `json:"method"`
}

func (h *Handler) confirmInstallment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req confirmInstallmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid start, want YYYY-MM-DD")
		return
	}
	sale, err := h.service.ConfirmInstallment(r.Context(), ConfirmInstallmentInput{
		SaleID:         id,
		ParcelID:       req.ParcelID,
		Term:           req.Term,
		Start:          start,
		DownPayment:    req.DownPayment,
		CompanyFeePct:  req.CompanyFeePct,
		Method:         req.Method,
		ActorID:        actorID(r),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, "confirm installment", err)
		return
	}
	h.logger.Info("sale confirmed installment",
		slog.Int64("sale_id", sale.ID),
		slog.Int64("parcel_id", req.ParcelID),
		slog.Int("term", req.Term))
	httpx.JSON(w, http.StatusOK, sale)
}

type recordPaymentRequest struct {
	Amount float64 `json:"amount"`
	PaidAt string  `json:"paid_at"`
	Method string  `json:"method"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req recordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	input := RecordInstallmentPaymentInput{
		SaleID:     id,
		Amount:     req.Amount,
		Method:     req.Method,
		RecordedBy: actorID(r),
	}
	if req.PaidAt != "" {
		paidAt, err := time.Parse("2006-01-02", req.PaidAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid paid_at, want YYYY-MM-DD")
			return
		}
		input.PaidAt = paidAt
	}
	if err := h.service.RecordInstallmentPayment(r.Context(), input); err != nil {
		h.respondError(w, "record installment payment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completePromiseRequest struct {
	Amount float64 `json:"amount"`
	Method string  `json:"method"`
}

func (h *Handler) completePromise(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req completePromiseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.service.CompletePromise(r.Context(), id, req.Amount, req.Method, actorID(r)); err != nil {
		h.respondError(w, "complete promise", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cancelRequest struct {
	ParcelID int64   `json:"parcel_id"`
	Refund   float64 `json:"refund"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	err := h.service.Cancel(r.Context(), CancelInput{
		SaleID:         id,
		ParcelID:       req.ParcelID,
		Refund:         req.Refund,
		ActorID:        actorID(r),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, "cancel sale", err)
		return
	}
	h.logger.Info("sale cancelled", slog.Int64("sale_id", id), slog.Int64("parcel_id", req.ParcelID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	err := h.service.Reset(r.Context(), ResetInput{
		SaleID:         id,
		ActorID:        actorID(r),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(w, "reset sale", err)
		return
	}
	h.logger.Info("sale reset", slog.Int64("sale_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, ErrInvalidTerm),
		errors.Is(err, ErrEmptyParcels),
		errors.Is(err, ErrNegativeBalance),
		errors.Is(err, ErrParcelNotInSale):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrParcelUnavailable),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrNothingToReset),
		errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func actorID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}
