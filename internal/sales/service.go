package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/terrabook/terrabook/internal/land"
	"github.com/terrabook/terrabook/internal/shared"
)

// RepositoryPort defines data access for the sales engine. Every method is a
// separate round-trip against the store; there is no cross-collection
// transaction, which is why mutations validate everything up front and why
// the resolver must tolerate intermediate states.
type RepositoryPort interface {
	GetSale(ctx context.Context, id int64) (*Sale, error)
	ListSales(ctx context.Context, req ListSalesRequest) ([]Sale, error)
	CreateSale(ctx context.Context, sale Sale) (int64, error)
	UpdateSale(ctx context.Context, id int64, patch map[string]any) error

	ListPaymentsBySale(ctx context.Context, saleID int64) ([]Payment, error)
	InsertPayment(ctx context.Context, payment Payment) (int64, error)
	UpdatePaymentAmount(ctx context.Context, id int64, amount float64) error
	DeletePayments(ctx context.Context, saleID int64, keep ...PaymentType) error

	ListInstallmentsBySale(ctx context.Context, saleID int64) ([]Installment, error)
	InsertInstallments(ctx context.Context, rows []Installment) error
	UpdateInstallmentAmounts(ctx context.Context, id int64, due, stacked, paid float64, status InstallmentStatus) error
	DeleteInstallments(ctx context.Context, saleID int64) error
}

// ParcelPort is the slice of the land module the sales engine needs.
type ParcelPort interface {
	GetParcel(ctx context.Context, id int64) (*land.Parcel, error)
	SetParcelStatus(ctx context.Context, id int64, status land.ParcelStatus) error
}

// Locker guards the window between availability check and commit.
type Locker interface {
	Acquire(ctx context.Context, key string) (string, error)
	Release(ctx context.Context, key, token string) error
}

// Auditor records who did what to which sale.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort rejects replayed submissions of multi-step mutations.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// ReportInvalidator is bumped after every successful mutation so cached
// financial reports get rebuilt from raw records.
type ReportInvalidator interface {
	Bump(ctx context.Context) error
}

const idempotencyModule = "sales"

// ListSalesRequest filters sale listings.
type ListSalesRequest struct {
	ClientID int64
	Status   SaleStatus
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// Service implements the sale lifecycle: reservation, staged confirmation,
// splitting, installment collection, cancellation and reset.
type Service struct {
	repo        RepositoryPort
	parcels     ParcelPort
	locker      Locker
	audit       Auditor
	idempotency IdempotencyPort
	invalidator ReportInvalidator
}

// NewService constructs the sales service. Locker, auditor, idempotency and
// invalidator may be nil; the corresponding concern is then skipped.
func NewService(repo RepositoryPort, parcels ParcelPort, locker Locker, audit Auditor, idem IdempotencyPort, invalidator ReportInvalidator) *Service {
	return &Service{repo: repo, parcels: parcels, locker: locker, audit: audit, idempotency: idem, invalidator: invalidator}
}

// GetSale retrieves a sale by ID.
func (s *Service) GetSale(ctx context.Context, id int64) (*Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// ListSales returns sales matching the filter.
func (s *Service) ListSales(ctx context.Context, req ListSalesRequest) ([]Sale, error) {
	return s.repo.ListSales(ctx, req)
}

// State resolves the lifecycle state of a sale from its raw records.
func (s *Service) State(ctx context.Context, saleID int64) (LifecycleState, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return "", err
	}
	payments, err := s.repo.ListPaymentsBySale(ctx, saleID)
	if err != nil {
		return "", err
	}
	installments, err := s.repo.ListInstallmentsBySale(ctx, saleID)
	if err != nil {
		return "", err
	}
	return Resolve(*sale, payments, installments), nil
}

// CreateSaleInput carries the fields for a new reservation.
type CreateSaleInput struct {
	ClientID    int64
	ParcelIDs   []int64
	Kind        SaleKind
	Reservation float64
	Deadline    *time.Time
	Method      string
	CreatedBy   int64
}

// CreateSale reserves the selected parcels under a new pending sale. The
// selling price is the sum of the parcels' list prices for the chosen payment
// kind. Availability is re-checked under a lock right before committing; the
// whole operation aborts if any parcel changed since selection.
func (s *Service) CreateSale(ctx context.Context, input CreateSaleInput) (*Sale, error) {
	if len(input.ParcelIDs) == 0 {
		return nil, ErrEmptyParcels
	}
	if input.ClientID == 0 {
		return nil, fmt.Errorf("%w: client required", shared.ErrValidation)
	}
	if input.Reservation < 0 {
		return nil, fmt.Errorf("%w: reservation cannot be negative", shared.ErrValidation)
	}
	switch input.Kind {
	case SaleKindFull, SaleKindInstallment, SaleKindPromise:
	default:
		return nil, fmt.Errorf("%w: unknown payment kind", shared.ErrValidation)
	}

	release, err := s.lockParcels(ctx, input.ParcelIDs)
	if err != nil {
		return nil, err
	}
	defer release()

	var price, cost float64
	for _, parcelID := range input.ParcelIDs {
		parcel, err := s.parcels.GetParcel(ctx, parcelID)
		if err != nil {
			return nil, fmt.Errorf("load parcel %d: %w", parcelID, err)
		}
		if parcel.Status != land.ParcelAvailable {
			return nil, fmt.Errorf("%w: parcel %d", ErrParcelUnavailable, parcelID)
		}
		if input.Kind == SaleKindFull {
			price += parcel.CashPrice
		} else {
			price += parcel.InstallmentPrice
		}
		cost += parcel.PurchaseCost
	}

	now := time.Now()
	sale := Sale{
		ClientID:     input.ClientID,
		ParcelIDs:    append([]int64(nil), input.ParcelIDs...),
		Kind:         input.Kind,
		TotalPrice:   price,
		TotalCost:    cost,
		ProfitMargin: price - cost,
		Reservation:  input.Reservation,
		Deadline:     input.Deadline,
		Status:       SaleStatusPending,
		CreatedBy:    input.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}
	sale.ID = id

	for _, parcelID := range input.ParcelIDs {
		if err := s.parcels.SetParcelStatus(ctx, parcelID, land.ParcelReserved); err != nil {
			return nil, fmt.Errorf("reserve parcel %d: %w", parcelID, err)
		}
	}

	if input.Reservation > 0 {
		_, err := s.repo.InsertPayment(ctx, Payment{
			SaleID:     id,
			ClientID:   input.ClientID,
			Amount:     input.Reservation,
			Type:       PaymentSmallAdvance,
			PaidAt:     now,
			Method:     input.Method,
			RecordedBy: input.CreatedBy,
		})
		if err != nil {
			return nil, fmt.Errorf("record reservation: %w", err)
		}
	}

	s.recordAudit(ctx, input.CreatedBy, shared.AuditActionSaleCreate, id, map[string]any{
		"parcels": input.ParcelIDs,
		"kind":    string(input.Kind),
	})
	s.bump(ctx)
	return &sale, nil
}

// ConfirmFullInput confirms a parcel as fully paid in cash.
type ConfirmFullInput struct {
	SaleID         int64
	ParcelID       int64
	CompanyFeePct  *float64
	PaidAt         time.Time
	Method         string
	ActorID        int64
	IdempotencyKey string
}

// ConfirmFull settles one parcel with a single cash payment. On a
// multi-parcel sale the parcel is first peeled into its own sale; the
// completion then applies to that child.
func (s *Service) ConfirmFull(ctx context.Context, input ConfirmFullInput) (*Sale, error) {
	if err := s.checkIdempotency(ctx, input.IdempotencyKey); err != nil {
		return nil, err
	}
	sale, err := s.loadActionable(ctx, input.SaleID, input.ParcelID)
	if err != nil {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return nil, err
	}

	release, err := s.lockParcels(ctx, []int64{input.ParcelID})
	if err != nil {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return nil, err
	}
	defer release()

	if err := s.requireParcelStatus(ctx, input.ParcelID, land.ParcelReserved); err != nil {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return nil, err
	}

	working, err := s.isolateParcel(ctx, sale, input.ParcelID, input.ActorID)
	if err != nil {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return nil, err
	}

	fee := 0.0
	if input.CompanyFeePct != nil {
		fee = working.TotalPrice * *input.CompanyFeePct / 100
	}
	due := RemainingBalance(working.TotalPrice, fee, working.Reservation, 0)
	if due < 0 {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return nil, ErrNegativeBalance
	}

	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	if due > 0 {
		_, err = s.repo.InsertPayment(ctx, Payment{
			SaleID:     working.ID,
			ClientID:   working.ClientID,
			Amount:     due,
			Type:       PaymentFull,
			PaidAt:     paidAt,
			Method:     input.Method,
			RecordedBy: input.ActorID,
		})
		if err != nil {
			return nil, fmt.Errorf("record full payment: %w", err)
		}
	}

	patch := map[string]any{
		"status":             SaleStatusCompleted,
		"confirmed":          true,
		"confirmed_by":       input.ActorID,
		"company_fee_amount": fee,
	}
	if input.CompanyFeePct != nil {
		patch["company_fee_pct"] = *input.CompanyFeePct
	}
	if err := s.repo.UpdateSale(ctx, working.ID, patch); err != nil {
		return nil, fmt.Errorf("complete sale: %w", err)
	}
	if err := s.parcels.SetParcelStatus(ctx, input.ParcelID, land.ParcelSold); err != nil {
		return nil, fmt.Errorf("mark parcel sold: %w", err)
	}

	s.recordAudit(ctx, input.ActorID, shared.AuditActionSaleConfirm, working.ID, map[string]any{
		"mode":   "full",
		"parcel": input.ParcelID,
		"amount": due,
	})
	s.bump(ctx)
	return s.repo.GetSale(ctx, working.ID)
}

// ConfirmInstallmentInput confirms a parcel with a down payment and a
// generated schedule.
type ConfirmInstallmentInput struct {
	SaleID         int64
	ParcelID       int64
	Term           int
	Start          time.Time
	DownPayment    float64
	CompanyFeePct  *float64
	Method         string
	ActorID        int64
	IdempotencyKey string
}

// ConfirmInstallment attaches a down payment and an installment schedule to
// the parcel's sale, splitting first when the sale covers several parcels.
// The schedule is generated exactly once; later corrections go through Reset.
func (s *Service) ConfirmInstallment(ctx context.Context, input ConfirmInstallmentInput) (*Sale, error) {
	if input.Term < MinTerm || input.Term > MaxTerm {
		return nil, ErrInvalidTerm
	}
	if input.DownPayment < 0 {
		return nil, fmt.Errorf("%w: down payment cannot be negative", shared.ErrValidation)
	}
	if input.Start.IsZero() {
		return nil, fmt.Errorf("%w: start date required", shared.ErrValidation)
	}
	if err := s.checkIdempotency(ctx, input.IdempotencyKey); err != nil {
		return nil, err
	}
	sale, err := s.loadActionable(ctx, input.SaleID, input.ParcelID)
	if err != nil {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return nil, err
	}
	if sale.Kind == SaleKindFull {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return nil, fmt.Errorf("%w: cash sale cannot take installments", ErrInvalidStatus)
	}
	if sale.InstallmentCount > 0 {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return nil, fmt.Errorf("%w: schedule already generated", ErrInvalidStatus)
	}

	release, err := s.lockParcels(ctx, []int64{input.ParcelID})
	if err != nil {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return nil, err
	}
	defer release()

	if err := s.requireParcelStatus(ctx, input.ParcelID, land.ParcelReserved); err != nil {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return nil, err
	}

	working, err := s.isolateParcel(ctx, sale, input.ParcelID, input.ActorID)
	if err != nil {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return nil, err
	}

	fee := 0.0
	if input.CompanyFeePct != nil {
		fee = working.TotalPrice * *input.CompanyFeePct / 100
	}
	remaining := RemainingBalance(working.TotalPrice, fee, working.Reservation, input.DownPayment)
	if remaining < 0 {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return nil, ErrNegativeBalance
	}

	rows, err := GenerateSchedule(working.ID, remaining, input.Term, input.Start)
	if err != nil {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return nil, err
	}

	patch := map[string]any{
		"down_payment":       input.DownPayment,
		"company_fee_amount": fee,
		"installment_count":  input.Term,
		"monthly_amount":     remaining / float64(input.Term),
		"installment_start":  input.Start,
		"status":             SaleStatusAwaitingPayment,
		"confirmed":          true,
		"confirmed_by":       input.ActorID,
	}
	if input.CompanyFeePct != nil {
		patch["company_fee_pct"] = *input.CompanyFeePct
	}
	if err := s.repo.UpdateSale(ctx, working.ID, patch); err != nil {
		return nil, fmt.Errorf("confirm sale: %w", err)
	}
	if err := s.parcels.SetParcelStatus(ctx, input.ParcelID, land.ParcelSold); err != nil {
		return nil, fmt.Errorf("mark parcel sold: %w", err)
	}

	if input.DownPayment > 0 {
		paymentType := PaymentBigAdvance
		if working.Kind == SaleKindPromise {
			paymentType = PaymentInitial
		}
		_, err = s.repo.InsertPayment(ctx, Payment{
			SaleID:     working.ID,
			ClientID:   working.ClientID,
			Amount:     input.DownPayment,
			Type:       paymentType,
			PaidAt:     time.Now(),
			Method:     input.Method,
			RecordedBy: input.ActorID,
		})
		if err != nil {
			return nil, fmt.Errorf("record down payment: %w", err)
		}
	}
	if err := s.repo.InsertInstallments(ctx, rows); err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}

	s.recordAudit(ctx, input.ActorID, shared.AuditActionSaleConfirm, working.ID, map[string]any{
		"mode":         "installment",
		"parcel":       input.ParcelID,
		"term":         input.Term,
		"down_payment": input.DownPayment,
	})
	s.bump(ctx)
	return s.repo.GetSale(ctx, working.ID)
}

// RecordInstallmentPaymentInput applies cash to the schedule.
type RecordInstallmentPaymentInput struct {
	SaleID     int64
	Amount     float64
	PaidAt     time.Time
	Method     string
	RecordedBy int64
}

// RecordInstallmentPayment applies a payment to the oldest open installments
// and appends the ledger entry. When the last row is settled the sale is
// marked completed.
func (s *Service) RecordInstallmentPayment(ctx context.Context, input RecordInstallmentPaymentInput) error {
	if input.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	sale, err := s.repo.GetSale(ctx, input.SaleID)
	if err != nil {
		return err
	}
	if sale.Status == SaleStatusCancelled {
		return ErrInvalidStatus
	}
	rows, err := s.repo.ListInstallmentsBySale(ctx, input.SaleID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: sale has no schedule", ErrInvalidStatus)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Number < rows[j].Number })

	left := input.Amount
	allPaid := true
	for i := range rows {
		row := &rows[i]
		if left > 0 && row.Status != InstallmentPaid {
			applied := row.Outstanding()
			if applied > left {
				applied = left
			}
			if applied > 0 {
				row.AmountPaid += applied
				left -= applied
				if row.Outstanding() <= 0.005 {
					row.Status = InstallmentPaid
				} else {
					row.Status = InstallmentPartial
				}
				if err := s.repo.UpdateInstallmentAmounts(ctx, row.ID, row.AmountDue, row.StackedAmount, row.AmountPaid, row.Status); err != nil {
					return fmt.Errorf("update installment %d: %w", row.Number, err)
				}
			}
		}
		if row.Status != InstallmentPaid {
			allPaid = false
		}
	}

	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	_, err = s.repo.InsertPayment(ctx, Payment{
		SaleID:     input.SaleID,
		ClientID:   sale.ClientID,
		Amount:     input.Amount,
		Type:       PaymentInstallment,
		PaidAt:     paidAt,
		Method:     input.Method,
		RecordedBy: input.RecordedBy,
	})
	if err != nil {
		return fmt.Errorf("record installment payment: %w", err)
	}

	if allPaid {
		if err := s.repo.UpdateSale(ctx, input.SaleID, map[string]any{"status": SaleStatusCompleted}); err != nil {
			return fmt.Errorf("complete sale: %w", err)
		}
	}
	s.bump(ctx)
	return nil
}

// CompletePromise records the deferred completion payment of a
// promise-of-sale and marks the sale completed.
func (s *Service) CompletePromise(ctx context.Context, saleID int64, amount float64, method string, actorID int64) error {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return err
	}
	if sale.Kind != SaleKindPromise {
		return fmt.Errorf("%w: not a promise of sale", ErrInvalidStatus)
	}
	if sale.Status == SaleStatusCancelled || sale.PromiseCompleted {
		return ErrInvalidStatus
	}
	if amount > 0 {
		_, err = s.repo.InsertPayment(ctx, Payment{
			SaleID:     saleID,
			ClientID:   sale.ClientID,
			Amount:     amount,
			Type:       PaymentFull,
			PaidAt:     time.Now(),
			Method:     method,
			RecordedBy: actorID,
		})
		if err != nil {
			return fmt.Errorf("record completion payment: %w", err)
		}
	}
	if err := s.repo.UpdateSale(ctx, saleID, map[string]any{
		"promise_completed": true,
		"status":            SaleStatusCompleted,
	}); err != nil {
		return fmt.Errorf("complete promise: %w", err)
	}
	s.bump(ctx)
	return nil
}

// CancelInput cancels one parcel out of a sale.
type CancelInput struct {
	SaleID         int64
	ParcelID       int64
	Refund         float64
	ActorID        int64
	IdempotencyKey string
}

// Cancel frees the parcel back to available. On a single-parcel sale the
// whole financial trail is deleted and the sale marked cancelled; on a
// multi-parcel sale the parcel is removed and the ledger and installments are
// proportionally decremented instead.
func (s *Service) Cancel(ctx context.Context, input CancelInput) error {
	if input.Refund < 0 {
		return fmt.Errorf("%w: refund cannot be negative", shared.ErrValidation)
	}
	if err := s.checkIdempotency(ctx, input.IdempotencyKey); err != nil {
		return err
	}
	sale, err := s.repo.GetSale(ctx, input.SaleID)
	if err != nil {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return err
	}
	if sale.Status == SaleStatusCancelled {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return ErrInvalidStatus
	}
	if !sale.HasParcel(input.ParcelID) {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return ErrParcelNotInSale
	}

	n := sale.PieceCount()
	if n > 1 {
		if err := s.cancelPiece(ctx, sale, input); err != nil {
			return err
		}
	} else {
		if err := s.cancelWhole(ctx, sale, input); err != nil {
			return err
		}
	}

	s.recordAudit(ctx, input.ActorID, shared.AuditActionSaleCancel, sale.ID, map[string]any{
		"parcel": input.ParcelID,
		"refund": input.Refund,
	})
	s.bump(ctx)
	return nil
}

// cancelWhole deletes the full financial trail of a single-parcel sale.
func (s *Service) cancelWhole(ctx context.Context, sale *Sale, input CancelInput) error {
	if err := s.repo.DeleteInstallments(ctx, sale.ID); err != nil {
		return fmt.Errorf("delete installments: %w", err)
	}
	if err := s.repo.DeletePayments(ctx, sale.ID); err != nil {
		return fmt.Errorf("delete payments: %w", err)
	}
	if input.Refund > 0 {
		_, err := s.repo.InsertPayment(ctx, Payment{
			SaleID:     sale.ID,
			ClientID:   sale.ClientID,
			Amount:     input.Refund,
			Type:       PaymentRefund,
			PaidAt:     time.Now(),
			RecordedBy: input.ActorID,
		})
		if err != nil {
			return fmt.Errorf("record refund: %w", err)
		}
	}
	if err := s.parcels.SetParcelStatus(ctx, input.ParcelID, land.ParcelAvailable); err != nil {
		return fmt.Errorf("free parcel: %w", err)
	}
	return s.repo.UpdateSale(ctx, sale.ID, map[string]any{"status": SaleStatusCancelled})
}

// cancelPiece removes one parcel from a multi-parcel sale and decrements the
// ledger and installments by 1/pieceCount.
func (s *Service) cancelPiece(ctx context.Context, sale *Sale, input CancelInput) error {
	n := sale.PieceCount()
	ratio := float64(n-1) / float64(n)

	payments, err := s.repo.ListPaymentsBySale(ctx, sale.ID)
	if err != nil {
		return err
	}
	for _, p := range payments {
		if p.Type == PaymentRefund {
			continue
		}
		if err := s.repo.UpdatePaymentAmount(ctx, p.ID, p.Amount*ratio); err != nil {
			return fmt.Errorf("decrement payment %d: %w", p.ID, err)
		}
	}

	rows, err := s.repo.ListInstallmentsBySale(ctx, sale.ID)
	if err != nil {
		return err
	}
	for _, row := range RescaleInstallments(rows, ratio) {
		if err := s.repo.UpdateInstallmentAmounts(ctx, row.ID, row.AmountDue, row.StackedAmount, row.AmountPaid, row.Status); err != nil {
			return fmt.Errorf("rescale installment %d: %w", row.Number, err)
		}
	}

	shrunk := *sale
	remaining := make([]int64, 0, n-1)
	for _, id := range sale.ParcelIDs {
		if id != input.ParcelID {
			remaining = append(remaining, id)
		}
	}
	shrunk.ParcelIDs = remaining
	scaleFinancials(&shrunk, ratio)
	if err := s.repo.UpdateSale(ctx, sale.ID, map[string]any{
		"parcel_ids":         shrunk.ParcelIDs,
		"total_price":        shrunk.TotalPrice,
		"total_cost":         shrunk.TotalCost,
		"profit_margin":      shrunk.ProfitMargin,
		"reservation":        shrunk.Reservation,
		"down_payment":       shrunk.DownPayment,
		"monthly_amount":     shrunk.MonthlyAmount,
		"company_fee_amount": shrunk.CompanyFeeAmount,
	}); err != nil {
		return fmt.Errorf("shrink sale: %w", err)
	}

	if input.Refund > 0 {
		_, err := s.repo.InsertPayment(ctx, Payment{
			SaleID:     sale.ID,
			ClientID:   sale.ClientID,
			Amount:     input.Refund,
			Type:       PaymentRefund,
			PaidAt:     time.Now(),
			RecordedBy: input.ActorID,
		})
		if err != nil {
			return fmt.Errorf("record refund: %w", err)
		}
	}
	return s.parcels.SetParcelStatus(ctx, input.ParcelID, land.ParcelAvailable)
}

// ResetInput reverts a confirmed sale to its pre-confirmation state.
type ResetInput struct {
	SaleID         int64
	ActorID        int64
	IdempotencyKey string
}

// Reset deletes everything downstream of confirmation (down payment, fee,
// schedule) while preserving the reservation deposit, and returns the sale
// to pending with its parcels reserved again.
func (s *Service) Reset(ctx context.Context, input ResetInput) error {
	if err := s.checkIdempotency(ctx, input.IdempotencyKey); err != nil {
		return err
	}
	sale, err := s.repo.GetSale(ctx, input.SaleID)
	if err != nil {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return err
	}
	if sale.Status == SaleStatusCancelled {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return ErrInvalidStatus
	}
	if sale.DownPayment == 0 && sale.CompanyFeeAmount == nil {
		s.releaseIdempotency(ctx, input.IdempotencyKey)
		return ErrNothingToReset
	}

	if err := s.repo.DeletePayments(ctx, sale.ID, PaymentSmallAdvance); err != nil {
		return fmt.Errorf("trim ledger: %w", err)
	}
	if err := s.repo.DeleteInstallments(ctx, sale.ID); err != nil {
		return fmt.Errorf("delete installments: %w", err)
	}
	if err := s.repo.UpdateSale(ctx, sale.ID, map[string]any{
		"down_payment":       0.0,
		"company_fee_pct":    nil,
		"company_fee_amount": nil,
		"installment_count":  0,
		"monthly_amount":     0.0,
		"installment_start":  nil,
		"status":             SaleStatusPending,
		"confirmed":          false,
		"confirmed_by":       nil,
		"promise_completed":  false,
	}); err != nil {
		return fmt.Errorf("reset sale: %w", err)
	}
	for _, parcelID := range sale.ParcelIDs {
		if err := s.parcels.SetParcelStatus(ctx, parcelID, land.ParcelReserved); err != nil {
			return fmt.Errorf("re-reserve parcel %d: %w", parcelID, err)
		}
	}

	s.recordAudit(ctx, input.ActorID, shared.AuditActionSaleReset, sale.ID, nil)
	s.bump(ctx)
	return nil
}

// isolateParcel returns the sale the parcel-scoped action should apply to.
// Multi-parcel sales are split first: a child sale is created for the parcel
// with its share of every financial field and of the ledger, and the original
// is shrunk by (pieceCount-1)/pieceCount.
func (s *Service) isolateParcel(ctx context.Context, sale *Sale, parcelID int64, actorID int64) (*Sale, error) {
	if sale.PieceCount() == 1 {
		return sale, nil
	}
	child, remainder, err := SplitShares(*sale, parcelID)
	if err != nil {
		return nil, err
	}
	n := sale.PieceCount()

	childID, err := s.repo.CreateSale(ctx, child)
	if err != nil {
		return nil, fmt.Errorf("create split sale: %w", err)
	}
	child.ID = childID

	payments, err := s.repo.ListPaymentsBySale(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range ChildLedger(payments, n) {
		p.SaleID = childID
		if _, err := s.repo.InsertPayment(ctx, p); err != nil {
			return nil, fmt.Errorf("clone payment: %w", err)
		}
	}
	ratio := float64(n-1) / float64(n)
	for _, p := range payments {
		if err := s.repo.UpdatePaymentAmount(ctx, p.ID, p.Amount*ratio); err != nil {
			return nil, fmt.Errorf("rescale payment %d: %w", p.ID, err)
		}
	}

	rows, err := s.repo.ListInstallmentsBySale(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	for _, row := range RescaleInstallments(rows, ratio) {
		if err := s.repo.UpdateInstallmentAmounts(ctx, row.ID, row.AmountDue, row.StackedAmount, row.AmountPaid, row.Status); err != nil {
			return nil, fmt.Errorf("rescale installment %d: %w", row.Number, err)
		}
	}

	if err := s.repo.UpdateSale(ctx, sale.ID, map[string]any{
		"parcel_ids":         remainder.ParcelIDs,
		"total_price":        remainder.TotalPrice,
		"total_cost":         remainder.TotalCost,
		"profit_margin":      remainder.ProfitMargin,
		"reservation":        remainder.Reservation,
		"down_payment":       remainder.DownPayment,
		"monthly_amount":     remainder.MonthlyAmount,
		"company_fee_amount": remainder.CompanyFeeAmount,
	}); err != nil {
		return nil, fmt.Errorf("shrink original sale: %w", err)
	}

	s.recordAudit(ctx, actorID, shared.AuditActionSaleSplit, sale.ID, map[string]any{
		"parcel": parcelID,
		"child":  childID,
	})
	return &child, nil
}

// loadActionable fetches the sale and verifies the parcel action may proceed.
func (s *Service) loadActionable(ctx context.Context, saleID, parcelID int64) (*Sale, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status == SaleStatusCancelled || sale.Status == SaleStatusCompleted {
		return nil, ErrInvalidStatus
	}
	if !sale.HasParcel(parcelID) {
		return nil, ErrParcelNotInSale
	}
	return sale, nil
}

func (s *Service) requireParcelStatus(ctx context.Context, parcelID int64, want land.ParcelStatus) error {
	parcel, err := s.parcels.GetParcel(ctx, parcelID)
	if err != nil {
		return fmt.Errorf("load parcel %d: %w", parcelID, err)
	}
	if parcel.Status != want {
		return fmt.Errorf("%w: parcel %d is %s", ErrParcelUnavailable, parcelID, parcel.Status)
	}
	return nil
}

// lockParcels acquires parcel locks in ID order and returns a combined
// release function.
func (s *Service) lockParcels(ctx context.Context, parcelIDs []int64) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	ids := append([]int64(nil), parcelIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	type held struct {
		key, token string
	}
	var acquired []held
	releaseAll := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			_ = s.locker.Release(context.WithoutCancel(ctx), acquired[i].key, acquired[i].token)
		}
	}
	for _, id := range ids {
		key := shared.ParcelLockKey(id)
		token, err := s.locker.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			if errors.Is(err, shared.ErrLockHeld) {
				return nil, fmt.Errorf("%w: parcel %d", ErrParcelUnavailable, id)
			}
			return nil, err
		}
		acquired = append(acquired, held{key: key, token: token})
	}
	return releaseAll, nil
}

func (s *Service) checkIdempotency(ctx context.Context, key string) error {
	if s.idempotency == nil || key == "" {
		return nil
	}
	return s.idempotency.CheckAndInsert(ctx, key, idempotencyModule)
}

// releaseIdempotency frees the key after a rejected operation so the user can
// correct the request and resubmit.
func (s *Service) releaseIdempotency(ctx context.Context, key string) {
	if s.idempotency == nil || key == "" {
		return
	}
	_ = s.idempotency.Delete(ctx, key)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, saleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sale",
		EntityID: strconv.FormatInt(saleID, 10),
		Meta:     meta,
	})
}

func (s *Service) bump(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	_ = s.invalidator.Bump(ctx)
}
