package sales

import "time"

// Installment term bounds accepted at confirmation time.
const (
	MinTerm = 1
	MaxTerm = 120
)

// RemainingBalance is what an installment schedule must amortize: parcel
// price plus company fee minus reservation and down payment.
func RemainingBalance(price, fee, reservation, downPayment float64) float64 {
	return price + fee - reservation - downPayment
}

// GenerateSchedule produces term equal monthly obligations starting at start.
// The schedule is produced exactly once per confirmation event; corrections go
// through reset, never regeneration. Validating remaining >= 0 is the
// caller's job.
func GenerateSchedule(saleID int64, remaining float64, term int, start time.Time) ([]Installment, error) {
	if term < MinTerm || term > MaxTerm {
		return nil, ErrInvalidTerm
	}
	monthly := remaining / float64(term)
	rows := make([]Installment, 0, term)
	for i := 0; i < term; i++ {
		rows = append(rows, Installment{
			SaleID:    saleID,
			Number:    i + 1,
			AmountDue: monthly,
			DueDate:   start.AddDate(0, i, 0),
			Status:    InstallmentUnpaid,
		})
	}
	return rows, nil
}
