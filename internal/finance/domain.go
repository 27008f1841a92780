package finance

import (
	"github.com/terrabook/terrabook/internal/sales"
	"github.com/terrabook/terrabook/internal/shared"
)

// Bucket is one of the six reporting categories every reconciled amount
// lands in.
type Bucket string

const (
	BucketInstallment  Bucket = "INSTALLMENT"
	BucketSmallAdvance Bucket = "SMALL_ADVANCE"
	BucketBigAdvance   Bucket = "BIG_ADVANCE"
	BucketFull         Bucket = "FULL"
	BucketPromise      Bucket = "PROMISE_OF_SALE"
	BucketCompanyFee   Bucket = "COMPANY_FEE"
)

// bucketOrder fixes the display and serialization order of the buckets so
// identical snapshots serialize identically.
var bucketOrder = []Bucket{
	BucketInstallment,
	BucketSmallAdvance,
	BucketBigAdvance,
	BucketFull,
	BucketPromise,
	BucketCompanyFee,
}

// ParcelRef is the slice of parcel data reconciliation needs for grouping.
type ParcelRef struct {
	ID       int64  `json:"id"`
	Number   string `json:"number"`
	BatchID  int64  `json:"batch_id"`
	Location string `json:"location"`
}

// Snapshot is the raw material of one report run: full collections, fetched
// once, reconciled purely in memory.
type Snapshot struct {
	Sales        []sales.Sale
	Payments     []sales.Payment
	Installments []sales.Installment
	Parcels      []ParcelRef
}

// ParcelAmount is the per-parcel detail nested under a location.
type ParcelAmount struct {
	ParcelID     int64   `json:"parcel_id"`
	ParcelNumber string  `json:"parcel_number"`
	Amount       float64 `json:"amount"`
}

// LocationBreakdown groups one bucket's cash by land batch.
type LocationBreakdown struct {
	BatchID  int64          `json:"batch_id"`
	Location string         `json:"location"`
	Amount   float64        `json:"amount"`
	Parcels  []ParcelAmount `json:"parcels"`
}

// TypeGroup is one bucket with its per-location breakdown.
type TypeGroup struct {
	Bucket    Bucket              `json:"bucket"`
	Total     float64             `json:"total"`
	Locations []LocationBreakdown `json:"locations"`
}

// SummaryRow combines all six buckets for one location.
type SummaryRow struct {
	BatchID  int64              `json:"batch_id"`
	Location string             `json:"location"`
	Amounts  map[Bucket]float64 `json:"amounts"`
	Total    float64            `json:"total"`
}

// Report is the reconciliation output: flat per-bucket totals, per-bucket
// per-location groups with parcel detail, a location summary and a grand
// total. Every figure is recomputed from the snapshot; nothing is carried
// over between runs.
type Report struct {
	Range      shared.DateRange   `json:"range"`
	Totals     map[Bucket]float64 `json:"totals"`
	Groups     []TypeGroup        `json:"groups"`
	Summary    []SummaryRow       `json:"summary"`
	GrandTotal float64            `json:"grand_total"`
}
