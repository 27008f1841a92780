package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for clients.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateClient inserts a new client.
func (r *Repository) CreateClient(ctx context.Context, c Client) (int64, error) {
	query := `
		INSERT INTO clients (full_name, national_id, phone, email, address, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id`

	var id int64
	err := r.pool.QueryRow(ctx, query, c.FullName, c.NationalID, c.Phone, c.Email, c.Address, c.Note).Scan(&id)
	return id, err
}

// GetClient retrieves a client by ID.
func (r *Repository) GetClient(ctx context.Context, id int64) (*Client, error) {
	query := `
		SELECT id, full_name, national_id, phone, email, address, note, created_at, updated_at
		FROM clients
		WHERE id = $1`

	var c Client
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.FullName, &c.NationalID, &c.Phone, &c.Email, &c.Address, &c.Note, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListClientsRequest filters client listings.
type ListClientsRequest struct {
	Search string
	Limit  int
	Offset int
}

// ListClients returns clients matching the filter, newest first.
func (r *Repository) ListClients(ctx context.Context, req ListClientsRequest) ([]Client, error) {
	query := `
		SELECT id, full_name, national_id, phone, email, address, note, created_at, updated_at
		FROM clients
		WHERE 1=1`

	args := []any{}
	argNum := 1

	if req.Search != "" {
		query += fmt.Sprintf(" AND (full_name ILIKE $%d OR national_id ILIKE $%d OR phone ILIKE $%d)", argNum, argNum, argNum)
		args = append(args, "%"+req.Search+"%")
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

	var out []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.FullName, &c.NationalID, &c.Phone, &c.Email, &c.Address, &c.Note, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountClients counts clients matching the filter.
func (r *Repository) CountClients(ctx context.Context, req ListClientsRequest) (int, error) {
	query := `SELECT COUNT(*) FROM clients WHERE 1=1`
	args := []any{}
	if req.Search != "" {
		query += " AND (full_name ILIKE $1 OR national_id ILIKE $1 OR phone ILIKE $1)"
		args = append(args, "%"+req.Search+"%")
	}
	var count int
	err := r.pool.QueryRow(ctx, query, args...).Scan(&count)
	return count, err
}

// UpdateClient updates all editable columns.
func (r *Repository) UpdateClient(ctx context.Context, c Client) error {
	query := `
		UPDATE clients
		SET full_name = $2, national_id = $3, phone = $4, email = $5, address = $6, note = $7, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, c.ID, c.FullName, c.NationalID, c.Phone, c.Email, c.Address, c.Note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteClient removes a client.
func (r *Repository) DeleteClient(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountSales counts sales that reference the client.
func (r *Repository) CountSales(ctx context.Context, clientID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales WHERE client_id = $1`, clientID).Scan(&count)
	return count, err
}
