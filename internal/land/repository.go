package land

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terrabook/terrabook/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for land data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// --- Batch operations ---

// CreateBatch inserts a new land batch.
func (r *Repository) CreateBatch(ctx context.Context, batch Batch) (int64, error) {
	query := `
		INSERT INTO land_batches (name, location, total_area_sqm, purchase_cost, purchased_at, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		batch.Name, batch.Location, batch.TotalAreaSqm, batch.PurchaseCost, batch.PurchasedAt, batch.Note,
	).Scan(&id)
	return id, err
}

// GetBatch retrieves a batch by ID.
func (r *Repository) GetBatch(ctx context.Context, id int64) (*Batch, error) {
	query := `
		SELECT id, name, location, total_area_sqm, purchase_cost, purchased_at, note, created_at, updated_at
		FROM land_batches
		WHERE id = $1`

	var b Batch
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.Name, &b.Location, &b.TotalAreaSqm, &b.PurchaseCost, &b.PurchasedAt, &b.Note, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBatches returns every batch ordered by purchase date.
func (r *Repository) ListBatches(ctx context.Context) ([]Batch, error) {
	query := `
		SELECT id, name, location, total_area_sqm, purchase_cost, purchased_at, note, created_at, updated_at
		FROM land_batches
		ORDER BY purchased_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.Name, &b.Location, &b.TotalAreaSqm, &b.PurchaseCost, &b.PurchasedAt, &b.Note, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// UpdateBatch updates the editable batch fields.
func (r *Repository) UpdateBatch(ctx context.Context, batch Batch) error {
	query := `
		UPDATE land_batches
		SET name = $2, location = $3, total_area_sqm = $4, purchase_cost = $5, purchased_at = $6, note = $7, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		batch.ID, batch.Name, batch.Location, batch.TotalAreaSqm, batch.PurchaseCost, batch.PurchasedAt, batch.Note,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountNonAvailableParcels counts parcels of the batch that a sale touched.
func (r *Repository) CountNonAvailableParcels(ctx context.Context, batchID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM land_parcels WHERE batch_id = $1 AND status <> $2`,
		batchID, ParcelAvailable,
	).Scan(&count)
	return count, err
}

// DeleteBatch removes a batch and its parcels.
func (r *Repository) DeleteBatch(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM land_parcels WHERE batch_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM land_batches WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// --- Parcel operations ---

// CreateParcel inserts a new parcel under a batch.
func (r *Repository) CreateParcel(ctx context.Context, parcel Parcel) (int64, error) {
	query := `
		INSERT INTO land_parcels (batch_id, number, area_sqm, cash_price, installment_price, purchase_cost, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id`

	status := parcel.Status
	if status == "" {
		status = ParcelAvailable
	}
	var id int64
	err := r.pool.QueryRow(ctx, query,
		parcel.BatchID, parcel.Number, parcel.AreaSqm, parcel.CashPrice, parcel.InstallmentPrice, parcel.PurchaseCost, status,
	).Scan(&id)
	return id, err
}

// GetParcel retrieves a parcel by ID.
func (r *Repository) GetParcel(ctx context.Context, id int64) (*Parcel, error) {
	query := `
		SELECT id, batch_id, number, area_sqm, cash_price, installment_price, purchase_cost, status, created_at, updated_at
		FROM land_parcels
		WHERE id = $1`

	var p Parcel
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.BatchID, &p.Number, &p.AreaSqm, &p.CashPrice, &p.InstallmentPrice, &p.PurchaseCost, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListParcelsRequest filters parcel listings.
type ListParcelsRequest struct {
	BatchID int64
	Status  ParcelStatus
	Limit   int
	Offset  int
}

// ListParcels returns parcels matching the filter.
func (r *Repository) ListParcels(ctx context.Context, req ListParcelsRequest) ([]Parcel, error) {
	query := `
		SELECT id, batch_id, number, area_sqm, cash_price, installment_price, purchase_cost, status, created_at, updated_at
		FROM land_parcels
		WHERE 1=1`

	args := []any{}
	argNum := 1

	if req.BatchID > 0 {
		query += fmt.Sprintf(" AND batch_id = $%d", argNum)
		args = append(args, req.BatchID)
		argNum++
	}
	if req.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(req.Status))
		argNum++
	}

	query += " ORDER BY batch_id, number"

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

	var parcels []Parcel
	for rows.Next() {
		var p Parcel
		if err := rows.Scan(&p.ID, &p.BatchID, &p.Number, &p.AreaSqm, &p.CashPrice, &p.InstallmentPrice, &p.PurchaseCost, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		parcels = append(parcels, p)
	}
	return parcels, rows.Err()
}

// UpdateParcel updates the editable parcel fields. Status changes go through
// SetParcelStatus, not here.
func (r *Repository) UpdateParcel(ctx context.Context, parcel Parcel) error {
	query := `
		UPDATE land_parcels
		SET number = $2, area_sqm = $3, cash_price = $4, installment_price = $5, purchase_cost = $6, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		parcel.ID, parcel.Number, parcel.AreaSqm, parcel.CashPrice, parcel.InstallmentPrice, parcel.PurchaseCost,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetParcelStatus updates only the status column.
func (r *Repository) SetParcelStatus(ctx context.Context, id int64, status ParcelStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE land_parcels SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
