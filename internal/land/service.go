package land

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RepositoryPort defines data access used by the land service.
type RepositoryPort interface {
	CreateBatch(ctx context.Context, batch Batch) (int64, error)
	GetBatch(ctx context.Context, id int64) (*Batch, error)
	ListBatches(ctx context.Context) ([]Batch, error)
	UpdateBatch(ctx context.Context, batch Batch) error
	CountNonAvailableParcels(ctx context.Context, batchID int64) (int, error)
	DeleteBatch(ctx context.Context, id int64) error

	CreateParcel(ctx context.Context, parcel Parcel) (int64, error)
	GetParcel(ctx context.Context, id int64) (*Parcel, error)
	ListParcels(ctx context.Context, req ListParcelsRequest) ([]Parcel, error)
	UpdateParcel(ctx context.Context, parcel Parcel) error
	SetParcelStatus(ctx context.Context, id int64, status ParcelStatus) error
}

// Service manages land batches and their parcels.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the land service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// BatchInput carries the editable batch fields.
type BatchInput struct {
	Name         string
	Location     string
	TotalAreaSqm float64
	PurchaseCost float64
	PurchasedAt  time.Time
	Note         string
}

func (in BatchInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: batch name required", ErrInvalidInput)
	}
	if in.TotalAreaSqm < 0 || in.PurchaseCost < 0 {
		return fmt.Errorf("%w: area and cost cannot be negative", ErrInvalidInput)
	}
	return nil
}

// CreateBatch registers a new land batch.
func (s *Service) CreateBatch(ctx context.Context, input BatchInput) (*Batch, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	purchasedAt := input.PurchasedAt
	if purchasedAt.IsZero() {
		purchasedAt = time.Now()
	}
	batch := Batch{
		Name:         strings.TrimSpace(input.Name),
		Location:     strings.TrimSpace(input.Location),
		TotalAreaSqm: input.TotalAreaSqm,
		PurchaseCost: input.PurchaseCost,
		PurchasedAt:  purchasedAt,
		Note:         input.Note,
	}
	id, err := s.repo.CreateBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	return s.repo.GetBatch(ctx, id)
}

// GetBatch retrieves a batch.
func (s *Service) GetBatch(ctx context.Context, id int64) (*Batch, error) {
	return s.repo.GetBatch(ctx, id)
}

// ListBatches returns every batch.
func (s *Service) ListBatches(ctx context.Context) ([]Batch, error) {
	return s.repo.ListBatches(ctx)
}

// UpdateBatch edits an existing batch.
func (s *Service) UpdateBatch(ctx context.Context, id int64, input BatchInput) (*Batch, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	batch, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	batch.Name = strings.TrimSpace(input.Name)
	batch.Location = strings.TrimSpace(input.Location)
	batch.TotalAreaSqm = input.TotalAreaSqm
	batch.PurchaseCost = input.PurchaseCost
	if !input.PurchasedAt.IsZero() {
		batch.PurchasedAt = input.PurchasedAt
	}
	batch.Note = input.Note
	if err := s.repo.UpdateBatch(ctx, *batch); err != nil {
		return nil, err
	}
	return s.repo.GetBatch(ctx, id)
}

// DeleteBatch removes a batch. A batch with reserved or sold parcels is
// referenced by sales and cannot be deleted.
func (s *Service) DeleteBatch(ctx context.Context, id int64) error {
	count, err := s.repo.CountNonAvailableParcels(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrBatchHasSales
	}
	return s.repo.DeleteBatch(ctx, id)
}

// ParcelInput carries the editable parcel fields.
type ParcelInput struct {
	BatchID          int64
	Number           string
	AreaSqm          float64
	CashPrice        float64
	InstallmentPrice float64
	PurchaseCost     float64
}

func (in ParcelInput) validate() error {
	if strings.TrimSpace(in.Number) == "" {
		return fmt.Errorf("%w: parcel number required", ErrInvalidInput)
	}
	if in.AreaSqm < 0 || in.CashPrice < 0 || in.InstallmentPrice < 0 || in.PurchaseCost < 0 {
		return fmt.Errorf("%w: amounts cannot be negative", ErrInvalidInput)
	}
	return nil
}

// CreateParcel registers a new parcel under a batch, initially available.
func (s *Service) CreateParcel(ctx context.Context, input ParcelInput) (*Parcel, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetBatch(ctx, input.BatchID); err != nil {
		return nil, fmt.Errorf("load batch %d: %w", input.BatchID, err)
	}
	id, err := s.repo.CreateParcel(ctx, Parcel{
		BatchID:          input.BatchID,
		Number:           strings.TrimSpace(input.Number),
		AreaSqm:          input.AreaSqm,
		CashPrice:        input.CashPrice,
		InstallmentPrice: input.InstallmentPrice,
		PurchaseCost:     input.PurchaseCost,
		Status:           ParcelAvailable,
	})
	if err != nil {
		return nil, fmt.Errorf("create parcel: %w", err)
	}
	return s.repo.GetParcel(ctx, id)
}

// GetParcel retrieves a parcel.
func (s *Service) GetParcel(ctx context.Context, id int64) (*Parcel, error) {
	return s.repo.GetParcel(ctx, id)
}

// ListParcels returns parcels matching the filter.
func (s *Service) ListParcels(ctx context.Context, req ListParcelsRequest) ([]Parcel, error) {
	return s.repo.ListParcels(ctx, req)
}

// UpdateParcel edits parcel attributes. Prices of a reserved or sold parcel
// stay frozen because the sale already captured them.
func (s *Service) UpdateParcel(ctx context.Context, id int64, input ParcelInput) (*Parcel, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	parcel, err := s.repo.GetParcel(ctx, id)
	if err != nil {
		return nil, err
	}
	if parcel.Status != ParcelAvailable &&
		(parcel.CashPrice != input.CashPrice || parcel.InstallmentPrice != input.InstallmentPrice) {
		return nil, fmt.Errorf("%w: cannot reprice a %s parcel", ErrInvalidStatus, parcel.Status)
	}
	parcel.Number = strings.TrimSpace(input.Number)
	parcel.AreaSqm = input.AreaSqm
	parcel.CashPrice = input.CashPrice
	parcel.InstallmentPrice = input.InstallmentPrice
	parcel.PurchaseCost = input.PurchaseCost
	if err := s.repo.UpdateParcel(ctx, *parcel); err != nil {
		return nil, err
	}
	return s.repo.GetParcel(ctx, id)
}

// SetParcelStatus moves a parcel through the pipeline, rejecting transitions
// the sale lifecycle never produces.
func (s *Service) SetParcelStatus(ctx context.Context, id int64, status ParcelStatus) error {
	parcel, err := s.repo.GetParcel(ctx, id)
	if err != nil {
		return err
	}
	if parcel.Status == status {
		return nil
	}
	if !ValidTransition(parcel.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, parcel.Status, status)
	}
	return s.repo.SetParcelStatus(ctx, id, status)
}
