package sales

import (
	"context"
	"sort"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SaleRow is the per-parcel listing view: one row per parcel of every sale,
// rebuilt from raw records on each request. Amounts are carried both raw and
// formatted for display.
type SaleRow struct {
	SaleID       int64          `json:"sale_id"`
	ParcelID     int64          `json:"parcel_id"`
	ParcelNumber string         `json:"parcel_number,omitempty"`
	BatchID      int64          `json:"batch_id,omitempty"`
	ClientID     int64          `json:"client_id"`
	ClientName   string         `json:"client_name,omitempty"`
	Kind         SaleKind       `json:"kind"`
	State        LifecycleState `json:"state"`

	Price       float64 `json:"price"`
	Reservation float64 `json:"reservation"`
	DownPayment float64 `json:"down_payment"`
	Received    float64 `json:"received"`
	Remaining   float64 `json:"remaining"`

	PriceDisplay     string `json:"price_display"`
	RemainingDisplay string `json:"remaining_display"`

	CreatedBy     int64     `json:"created_by"`
	CreatedByName string    `json:"created_by_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// DisplayEnricher resolves client and user IDs to display names. Lookups are
// best-effort: a missing name leaves the field empty, never fails the row.
type DisplayEnricher interface {
	ClientName(ctx context.Context, id int64) string
	UserName(ctx context.Context, id int64) string
	ParcelLabel(ctx context.Context, id int64) (number string, batchID int64)
}

var moneyPrinter = message.NewPrinter(language.English)

// FormatAmount renders a money amount with thousands separators.
func FormatAmount(v float64) string {
	return moneyPrinter.Sprintf("%.2f", v)
}

// BuildRows expands each sale into one row per parcel with its equal share of
// the sale's money fields and the resolved lifecycle state. Rows are ordered
// newest sale first, then by parcel ID, so output is stable for identical
// input.
func BuildRows(ctx context.Context, salesList []Sale, payments []Payment, installments []Installment, enricher DisplayEnricher) []SaleRow {
	paymentsBySale := make(map[int64][]Payment)
	for _, p := range payments {
		paymentsBySale[p.SaleID] = append(paymentsBySale[p.SaleID], p)
	}
	installmentsBySale := make(map[int64][]Installment)
	for _, ins := range installments {
		installmentsBySale[ins.SaleID] = append(installmentsBySale[ins.SaleID], ins)
	}

	var rows []SaleRow
	for _, sale := range salesList {
		n := sale.PieceCount()
		if n == 0 {
			continue
		}
		salePayments := paymentsBySale[sale.ID]
		state := Resolve(sale, salePayments, installmentsBySale[sale.ID])
		received := TotalReceived(sale, salePayments)
		share := 1 / float64(n)

		for _, parcelID := range sale.ParcelIDs {
			row := SaleRow{
				SaleID:      sale.ID,
				ParcelID:    parcelID,
				ClientID:    sale.ClientID,
				Kind:        sale.Kind,
				State:       state,
				Price:       sale.TotalPrice * share,
				Reservation: sale.Reservation * share,
				DownPayment: sale.DownPayment * share,
				Received:    received * share,
				Remaining:   (sale.TotalPrice + sale.FeeAmount() - received) * share,
				CreatedBy:   sale.CreatedBy,
				CreatedAt:   sale.CreatedAt,
			}
			if enricher != nil {
				row.ClientName = enricher.ClientName(ctx, sale.ClientID)
				row.CreatedByName = enricher.UserName(ctx, sale.CreatedBy)
				row.ParcelNumber, row.BatchID = enricher.ParcelLabel(ctx, parcelID)
			}
			row.PriceDisplay = FormatAmount(row.Price)
			row.RemainingDisplay = FormatAmount(row.Remaining)
			rows = append(rows, row)
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SaleID != rows[j].SaleID {
			return rows[i].SaleID > rows[j].SaleID
		}
		return rows[i].ParcelID < rows[j].ParcelID
	})
	return rows
}

// Rows lists the per-parcel rows for sales matching the filter.
func (s *Service) Rows(ctx context.Context, req ListSalesRequest, enricher DisplayEnricher) ([]SaleRow, error) {
	salesList, err := s.repo.ListSales(ctx, req)
	if err != nil {
		return nil, err
	}
	var allPayments []Payment
	var allInstallments []Installment
	for _, sale := range salesList {
		payments, err := s.repo.ListPaymentsBySale(ctx, sale.ID)
		if err != nil {
			return nil, err
		}
		allPayments = append(allPayments, payments...)
		installments, err := s.repo.ListInstallmentsBySale(ctx, sale.ID)
		if err != nil {
			return nil, err
		}
		allInstallments = append(allInstallments, installments...)
	}
	return BuildRows(ctx, salesList, allPayments, allInstallments, enricher), nil
}
