package finance

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terrabook/terrabook/internal/sales"
)

// Repository fetches the raw collections a report run reconciles. The report
// itself is computed in memory; SQL only moves rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FetchSnapshot reads the full sale/payment/installment/parcel collections.
// Filtering happens in BuildReport, not here: the range rules (reset
// exclusion, confirmed-only down payments) need whole sales in view, not
// pre-filtered rows.
func (r *Repository) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	var snapshot Snapshot

	salesRows, err := r.pool.Query(ctx, `
		SELECT id, client_id, parcel_ids, kind, total_price, reservation, down_payment,
			company_fee_amount, status, confirmed, promise_completed, created_at
		FROM sales`)
	if err != nil {
		return Snapshot{}, err
	}
	defer salesRows.Close()
	for salesRows.Next() {
		var s sales.Sale
		var kind, status string
		var feeAmount pgtype.Float8
		if err := salesRows.Scan(
			&s.ID, &s.ClientID, &s.ParcelIDs, &kind, &s.TotalPrice, &s.Reservation, &s.DownPayment,
			&feeAmount, &status, &s.Confirmed, &s.PromiseCompleted, &s.CreatedAt,
		); err != nil {
			return Snapshot{}, err
		}
		s.Kind = sales.SaleKind(kind)
		s.Status = sales.SaleStatus(status)
		if feeAmount.Valid {
			s.CompanyFeeAmount = &feeAmount.Float64
		}
		snapshot.Sales = append(snapshot.Sales, s)
	}
	if err := salesRows.Err(); err != nil {
		return Snapshot{}, err
	}

	paymentRows, err := r.pool.Query(ctx, `
		SELECT id, sale_id, client_id, amount, type, paid_at
		FROM payments`)
	if err != nil {
		return Snapshot{}, err
	}
	defer paymentRows.Close()
	for paymentRows.Next() {
		var p sales.Payment
		var typ string
		if err := paymentRows.Scan(&p.ID, &p.SaleID, &p.ClientID, &p.Amount, &typ, &p.PaidAt); err != nil {
			return Snapshot{}, err
		}
		p.Type = sales.PaymentType(typ)
		snapshot.Payments = append(snapshot.Payments, p)
	}
	if err := paymentRows.Err(); err != nil {
		return Snapshot{}, err
	}

	installmentRows, err := r.pool.Query(ctx, `
		SELECT id, sale_id, number, amount_due, stacked_amount, amount_paid, due_date, status
		FROM installments`)
	if err != nil {
		return Snapshot{}, err
	}
	defer installmentRows.Close()
	for installmentRows.Next() {
		var ins sales.Installment
		var status string
		if err := installmentRows.Scan(&ins.ID, &ins.SaleID, &ins.Number, &ins.AmountDue, &ins.StackedAmount, &ins.AmountPaid, &ins.DueDate, &status); err != nil {
			return Snapshot{}, err
		}
		ins.Status = sales.InstallmentStatus(status)
		snapshot.Installments = append(snapshot.Installments, ins)
	}
	if err := installmentRows.Err(); err != nil {
		return Snapshot{}, err
	}

	parcelRows, err := r.pool.Query(ctx, `
		SELECT p.id, p.number, p.batch_id, b.name
		FROM land_parcels p
		JOIN land_batches b ON b.id = p.batch_id`)
	if err != nil {
		return Snapshot{}, err
	}
	defer parcelRows.Close()
	for parcelRows.Next() {
		var ref ParcelRef
		if err := parcelRows.Scan(&ref.ID, &ref.Number, &ref.BatchID, &ref.Location); err != nil {
			return Snapshot{}, err
		}
		snapshot.Parcels = append(snapshot.Parcels, ref)
	}
	return snapshot, parcelRows.Err()
}
