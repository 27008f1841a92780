package land

import (
	"errors"
	"time"
)

// ParcelStatus tracks where a parcel sits in the sales pipeline.
type ParcelStatus string

const (
	ParcelAvailable ParcelStatus = "AVAILABLE"
	ParcelReserved  ParcelStatus = "RESERVED"
	ParcelSold      ParcelStatus = "SOLD"
)

// Errors returned by the land module.
var (
	ErrNotFound      = errors.New("land: not found")
	ErrBatchHasSales = errors.New("land: batch has referenced parcels")
	ErrInvalidStatus = errors.New("land: invalid parcel status")
	ErrInvalidInput  = errors.New("land: invalid input")
)

// Batch is a tract of land purchased as one lot and subdivided into parcels.
// Reconciliation reports group by batch.
type Batch struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Location     string    `json:"location"`
	TotalAreaSqm float64   `json:"total_area_sqm"`
	PurchaseCost float64   `json:"purchase_cost"`
	PurchasedAt  time.Time `json:"purchased_at"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Parcel is an individually sellable subdivision of a batch. It carries two
// list prices: cash sales use CashPrice, installment and promise sales use
// InstallmentPrice.
type Parcel struct {
	ID               int64        `json:"id"`
	BatchID          int64        `json:"batch_id"`
	Number           string       `json:"number"`
	AreaSqm          float64      `json:"area_sqm"`
	CashPrice        float64      `json:"cash_price"`
	InstallmentPrice float64      `json:"installment_price"`
	PurchaseCost     float64      `json:"purchase_cost"`
	Status           ParcelStatus `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// ValidTransition reports whether a parcel may move between the two statuses.
// Every legal move is driven by a sale action: reserve on creation, sell on
// confirmation, release on cancellation, back to reserved on reset.
func ValidTransition(from, to ParcelStatus) bool {
	switch from {
	case ParcelAvailable:
		return to == ParcelReserved
	case ParcelReserved:
		return to == ParcelSold || to == ParcelAvailable
	case ParcelSold:
		return to == ParcelReserved || to == ParcelAvailable
	}
	return false
}
