package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for sales, payments and
// installments. Each method is one round-trip; the service layer sequences
// them.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const saleColumns = `
	id, client_id, parcel_ids, kind, total_price, total_cost, profit_margin,
	reservation, down_payment, company_fee_pct, company_fee_amount,
	installment_count, monthly_amount, installment_start, deadline,
	status, confirmed, promise_completed, created_by, confirmed_by,
	created_at, updated_at`

// GetSale retrieves a sale by ID.
func (r *Repository) GetSale(ctx context.Context, id int64) (*Sale, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+saleColumns+` FROM sales WHERE id = $1`, id)
	sale, err := scanSale(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// ListSales returns sales matching the filter, newest first.
func (r *Repository) ListSales(ctx context.Context, req ListSalesRequest) ([]Sale, error) {
	query := `SELECT` + saleColumns + ` FROM sales WHERE 1=1`

	args := []any{}
	argNum := 1

	if req.ClientID > 0 {
		query += fmt.Sprintf(" AND client_id = $%d", argNum)
		args = append(args, req.ClientID)
		argNum++
	}
	if req.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(req.Status))
		argNum++
	}
	if !req.From.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argNum)
		args = append(args, req.From)
		argNum++
	}
	if !req.To.IsZero() {
		query += fmt.Sprintf(" AND created_at < $%d", argNum)
		args = append(args, req.To)
		argNum++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, req.Limit)
		argNum++
	}
	if req.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, req.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sale)
	}
	return out, rows.Err()
}

// CreateSale inserts a sale and returns its ID.
func (r *Repository) CreateSale(ctx context.Context, sale Sale) (int64, error) {
	query := `
		INSERT INTO sales (
			client_id, parcel_ids, kind, total_price, total_cost, profit_margin,
			reservation, down_payment, company_fee_pct, company_fee_amount,
			installment_count, monthly_amount, installment_start, deadline,
			status, confirmed, promise_completed, created_by, confirmed_by,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NOW(), NOW())
		RETURNING id`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		sale.ClientID,
		sale.ParcelIDs,
		string(sale.Kind),
		sale.TotalPrice,
		sale.TotalCost,
		sale.ProfitMargin,
		sale.Reservation,
		sale.DownPayment,
		sale.CompanyFeePct,
		sale.CompanyFeeAmount,
		sale.InstallmentCount,
		sale.MonthlyAmount,
		sale.InstallmentStart,
		sale.Deadline,
		string(sale.Status),
		sale.Confirmed,
		sale.PromiseCompleted,
		sale.CreatedBy,
		sale.ConfirmedBy,
	).Scan(&id)
	return id, err
}

// saleColumnsByPatchKey whitelists the columns UpdateSale may touch.
var saleColumnsByPatchKey = map[string]string{
	"parcel_ids":         "parcel_ids",
	"total_price":        "total_price",
	"total_cost":         "total_cost",
	"profit_margin":      "profit_margin",
	"reservation":        "reservation",
	"down_payment":       "down_payment",
	"company_fee_pct":    "company_fee_pct",
	"company_fee_amount": "company_fee_amount",
	"installment_count":  "installment_count",
	"monthly_amount":     "monthly_amount",
	"installment_start":  "installment_start",
	"deadline":           "deadline",
	"status":             "status",
	"confirmed":          "confirmed",
	"promise_completed":  "promise_completed",
	"confirmed_by":       "confirmed_by",
}

// UpdateSale applies a partial update. Unknown patch keys are rejected so a
// typo cannot silently become a no-op.
func (r *Repository) UpdateSale(ctx context.Context, id int64, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	sets := make([]string, 0, len(patch)+1)
	args := []any{id}
	argNum := 2
	for key, value := range patch {
		column, ok := saleColumnsByPatchKey[key]
		if !ok {
			return fmt.Errorf("sales: unknown patch column %q", key)
		}
		if s, isStatus := value.(SaleStatus); isStatus {
			value = string(s)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argNum))
		args = append(args, value)
		argNum++
	}
	sets = append(sets, "updated_at = NOW()")

	query := "UPDATE sales SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPaymentsBySale returns the sale's ledger entries oldest first.
func (r *Repository) ListPaymentsBySale(ctx context.Context, saleID int64) ([]Payment, error) {
	query := `
		SELECT id, sale_id, client_id, amount, type, paid_at, method, recorded_by, created_at
		FROM payments
		WHERE sale_id = $1
		ORDER BY paid_at, id`

	rows, err := r.pool.Query(ctx, query, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		var method pgtype.Text
		if err := rows.Scan(&p.ID, &p.SaleID, &p.ClientID, &p.Amount, &p.Type, &p.PaidAt, &method, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Method = method.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertPayment appends a ledger entry.
func (r *Repository) InsertPayment(ctx context.Context, payment Payment) (int64, error) {
	query := `
		INSERT INTO payments (sale_id, client_id, amount, type, paid_at, method, recorded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id`

	paidAt := payment.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	var id int64
	err := r.pool.QueryRow(ctx, query,
		payment.SaleID, payment.ClientID, payment.Amount, string(payment.Type), paidAt, payment.Method, payment.RecordedBy,
	).Scan(&id)
	return id, err
}

// UpdatePaymentAmount rescales one ledger entry after a split or a parcel
// cancellation.
func (r *Repository) UpdatePaymentAmount(ctx context.Context, id int64, amount float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payments SET amount = $2 WHERE id = $1`, id, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePayments removes the sale's ledger, optionally keeping entries of the
// given types.
func (r *Repository) DeletePayments(ctx context.Context, saleID int64, keep ...PaymentType) error {
	if len(keep) == 0 {
		_, err := r.pool.Exec(ctx, `DELETE FROM payments WHERE sale_id = $1`, saleID)
		return err
	}
	kept := make([]string, 0, len(keep))
	for _, t := range keep {
		kept = append(kept, string(t))
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM payments WHERE sale_id = $1 AND type <> ALL($2)`, saleID, kept)
	return err
}

// ListInstallmentsBySale returns the sale's schedule ordered by number.
func (r *Repository) ListInstallmentsBySale(ctx context.Context, saleID int64) ([]Installment, error) {
	query := `
		SELECT id, sale_id, number, amount_due, stacked_amount, amount_paid, due_date, status
		FROM installments
		WHERE sale_id = $1
		ORDER BY number`

	rows, err := r.pool.Query(ctx, query, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Installment
	for rows.Next() {
		var ins Installment
		if err := rows.Scan(&ins.ID, &ins.SaleID, &ins.Number, &ins.AmountDue, &ins.StackedAmount, &ins.AmountPaid, &ins.DueDate, &ins.Status); err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}

// InsertInstallments writes a generated schedule in one batch.
func (r *Repository) InsertInstallments(ctx context.Context, rows []Installment) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	query := `
		INSERT INTO installments (sale_id, number, amount_due, stacked_amount, amount_paid, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, ins := range rows {
		batch.Queue(query, ins.SaleID, ins.Number, ins.AmountDue, ins.StackedAmount, ins.AmountPaid, ins.DueDate, string(ins.Status))
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpdateInstallmentAmounts rewrites one schedule row's money columns and
// status.
func (r *Repository) UpdateInstallmentAmounts(ctx context.Context, id int64, due, stacked, paid float64, status InstallmentStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE installments SET amount_due = $2, stacked_amount = $3, amount_paid = $4, status = $5 WHERE id = $1`,
		id, due, stacked, paid, string(status),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteInstallments removes the sale's schedule.
func (r *Repository) DeleteInstallments(ctx context.Context, saleID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM installments WHERE sale_id = $1`, saleID)
	return err
}

// ListOverdueInstallments returns unpaid rows due before the cutoff, for the
// nightly late-marking scan.
func (r *Repository) ListOverdueInstallments(ctx context.Context, cutoff time.Time) ([]Installment, error) {
	query := `
		SELECT id, sale_id, number, amount_due, stacked_amount, amount_paid, due_date, status
		FROM installments
		WHERE due_date < $1 AND status IN ($2, $3)
		ORDER BY due_date`

	rows, err := r.pool.Query(ctx, query, cutoff, string(InstallmentUnpaid), string(InstallmentPartial))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Installment
	for rows.Next() {
		var ins Installment
		if err := rows.Scan(&ins.ID, &ins.SaleID, &ins.Number, &ins.AmountDue, &ins.StackedAmount, &ins.AmountPaid, &ins.DueDate, &ins.Status); err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}

// MarkInstallmentLate flips a row's status to late.
func (r *Repository) MarkInstallmentLate(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE installments SET status = $2 WHERE id = $1`, id, string(InstallmentLate))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (*Sale, error) {
	var s Sale
	var kind, status string
	var feePct, feeAmount pgtype.Float8
	var installmentStart, deadline pgtype.Timestamptz
	var confirmedBy pgtype.Int8

	err := row.Scan(
		&s.ID, &s.ClientID, &s.ParcelIDs, &kind, &s.TotalPrice, &s.TotalCost, &s.ProfitMargin,
		&s.Reservation, &s.DownPayment, &feePct, &feeAmount,
		&s.InstallmentCount, &s.MonthlyAmount, &installmentStart, &deadline,
		&status, &s.Confirmed, &s.PromiseCompleted, &s.CreatedBy, &confirmedBy,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Kind = SaleKind(kind)
	s.Status = SaleStatus(status)
	if feePct.Valid {
		s.CompanyFeePct = &feePct.Float64
	}
	if feeAmount.Valid {
		s.CompanyFeeAmount = &feeAmount.Float64
	}
	if installmentStart.Valid {
		s.InstallmentStart = &installmentStart.Time
	}
	if deadline.Valid {
		s.Deadline = &deadline.Time
	}
	if confirmedBy.Valid {
		s.ConfirmedBy = &confirmedBy.Int64
	}
	return &s, nil
}
