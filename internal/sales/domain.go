package sales

import (
	"errors"
	"time"
)

// SaleStatus is the coarse stored status. Apart from the terminal
// Completed/Cancelled markers it is treated as a hint only; display state is
// re-derived by Resolve from the sale, its payments and its installments.
type SaleStatus string

const (
	SaleStatusPending         SaleStatus = "PENDING"
	SaleStatusAwaitingPayment SaleStatus = "AWAITING_PAYMENT"
	SaleStatusCompleted       SaleStatus = "COMPLETED"
	SaleStatusCancelled       SaleStatus = "CANCELLED"
)

// SaleKind enumerates how a sale is meant to be paid off.
type SaleKind string

const (
	SaleKindFull        SaleKind = "FULL"
	SaleKindInstallment SaleKind = "INSTALLMENT"
	SaleKindPromise     SaleKind = "PROMISE_OF_SALE"
)

// LifecycleState is the derived per-sale state shown to users.
type LifecycleState string

const (
	StatePending             LifecycleState = "PENDING"
	StateAwaitingPayment     LifecycleState = "AWAITING_PAYMENT"
	StateInstallmentsOngoing LifecycleState = "INSTALLMENTS_ONGOING"
	StateCompleted           LifecycleState = "COMPLETED"
	StateCancelled           LifecycleState = "CANCELLED"
)

// PaymentType classifies ledger entries.
type PaymentType string

const (
	// PaymentSmallAdvance is the reservation deposit.
	PaymentSmallAdvance PaymentType = "SMALL_ADVANCE"
	// PaymentBigAdvance is the down payment confirming an installment sale.
	PaymentBigAdvance PaymentType = "BIG_ADVANCE"
	// PaymentFull settles a cash sale in one entry.
	PaymentFull PaymentType = "FULL"
	// PaymentPartial is a partial settlement outside the schedule.
	PaymentPartial PaymentType = "PARTIAL"
	// PaymentInitial is the promise-of-sale initial payment.
	PaymentInitial PaymentType = "INITIAL"
	// PaymentInstallment settles one or more schedule rows.
	PaymentInstallment PaymentType = "INSTALLMENT"
	// PaymentField is a company-fee collection recorded as cash.
	PaymentField PaymentType = "FIELD"
	// PaymentRefund is money returned on cancellation; never revenue.
	PaymentRefund PaymentType = "REFUND"
)

// InstallmentStatus tracks a single schedule row.
type InstallmentStatus string

const (
	InstallmentUnpaid  InstallmentStatus = "UNPAID"
	InstallmentPartial InstallmentStatus = "PARTIAL"
	InstallmentPaid    InstallmentStatus = "PAID"
	InstallmentLate    InstallmentStatus = "LATE"
)

// Sale is the aggregate root. One sale may cover several parcels until a
// parcel-scoped confirmation or cancellation splits it.
type Sale struct {
	ID            int64      `json:"id"`
	ClientID      int64      `json:"client_id"`
	ParcelIDs     []int64    `json:"parcel_ids"`
	Kind          SaleKind   `json:"kind"`
	TotalPrice    float64    `json:"total_price"`
	TotalCost     float64    `json:"total_cost"`
	ProfitMargin  float64    `json:"profit_margin"`
	Reservation   float64    `json:"reservation"`
	DownPayment   float64    `json:"down_payment"`
	CompanyFeePct *float64   `json:"company_fee_pct,omitempty"`
	// CompanyFeeAmount doubles as confirmation evidence: non-nil (even zero)
	// means a confirmation happened.
	CompanyFeeAmount *float64   `json:"company_fee_amount,omitempty"`
	InstallmentCount int        `json:"installment_count"`
	MonthlyAmount    float64    `json:"monthly_amount"`
	InstallmentStart *time.Time `json:"installment_start,omitempty"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	Status           SaleStatus `json:"status"`
	Confirmed        bool       `json:"confirmed"`
	PromiseCompleted bool       `json:"promise_completed"`
	CreatedBy        int64      `json:"created_by"`
	ConfirmedBy      *int64     `json:"confirmed_by,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// PieceCount returns the number of parcels the sale still covers.
func (s Sale) PieceCount() int {
	return len(s.ParcelIDs)
}

// HasParcel reports whether the sale covers the given parcel.
func (s Sale) HasParcel(parcelID int64) bool {
	for _, id := range s.ParcelIDs {
		if id == parcelID {
			return true
		}
	}
	return false
}

// FeeAmount returns the company fee, zero when never set.
func (s Sale) FeeAmount() float64 {
	if s.CompanyFeeAmount == nil {
		return 0
	}
	return *s.CompanyFeeAmount
}

// Payment is an append-only ledger entry. A sale's financial state is the
// aggregate of its payments plus its installments, never a cached balance.
type Payment struct {
	ID         int64       `json:"id"`
	SaleID     int64       `json:"sale_id"`
	ClientID   int64       `json:"client_id"`
	Amount     float64     `json:"amount"`
	Type       PaymentType `json:"type"`
	PaidAt     time.Time   `json:"paid_at"`
	Method     string      `json:"method,omitempty"`
	RecordedBy int64       `json:"recorded_by"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Installment is one row of a generated schedule.
type Installment struct {
	ID            int64             `json:"id"`
	SaleID        int64             `json:"sale_id"`
	Number        int               `json:"number"`
	AmountDue     float64           `json:"amount_due"`
	StackedAmount float64           `json:"stacked_amount"`
	AmountPaid    float64           `json:"amount_paid"`
	DueDate       time.Time         `json:"due_date"`
	Status        InstallmentStatus `json:"status"`
}

// Outstanding returns what is still owed on the row.
func (i Installment) Outstanding() float64 {
	return i.AmountDue + i.StackedAmount - i.AmountPaid
}

// Errors returned by the sales engine.
var (
	ErrNotFound          = errors.New("sales: not found")
	ErrInvalidStatus     = errors.New("sales: operation not allowed in current status")
	ErrParcelUnavailable = errors.New("sales: parcel no longer available")
	ErrParcelNotInSale   = errors.New("sales: parcel does not belong to sale")
	ErrNothingToReset    = errors.New("sales: sale has no confirmation to reset")
	ErrNegativeBalance   = errors.New("sales: remaining balance is negative")
	ErrInvalidTerm       = errors.New("sales: installment term out of range")
	ErrEmptyParcels      = errors.New("sales: sale requires at least one parcel")
)
