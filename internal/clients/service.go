package clients

import (
	"context"
	"fmt"
	"strings"

	"github.com/terrabook/terrabook/internal/shared"
)

// RepositoryPort defines data access used by the client service.
type RepositoryPort interface {
	CreateClient(ctx context.Context, c Client) (int64, error)
	GetClient(ctx context.Context, id int64) (*Client, error)
	ListClients(ctx context.Context, req ListClientsRequest) ([]Client, error)
	CountClients(ctx context.Context, req ListClientsRequest) (int, error)
	UpdateClient(ctx context.Context, c Client) error
	DeleteClient(ctx context.Context, id int64) error
	CountSales(ctx context.Context, clientID int64) (int, error)
}

// Service manages the client registry.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the client service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ClientInput carries the editable client fields.
type ClientInput struct {
	FullName   string
	NationalID string
	Phone      string
	Email      string
	Address    string
	Note       string
}

func (in ClientInput) validate() error {
	if strings.TrimSpace(in.FullName) == "" {
		return fmt.Errorf("%w: full name required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.NationalID) == "" {
		return fmt.Errorf("%w: national id required", ErrInvalidInput)
	}
	return nil
}

// CreateClient registers a new client.
func (s *Service) CreateClient(ctx context.Context, input ClientInput) (*Client, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	id, err := s.repo.CreateClient(ctx, Client{
		FullName:   strings.TrimSpace(input.FullName),
		NationalID: strings.TrimSpace(input.NationalID),
		Phone:      strings.TrimSpace(input.Phone),
		Email:      strings.TrimSpace(input.Email),
		Address:    input.Address,
		Note:       input.Note,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return s.repo.GetClient(ctx, id)
}

// GetClient retrieves a client.
func (s *Service) GetClient(ctx context.Context, id int64) (*Client, error) {
	return s.repo.GetClient(ctx, id)
}

// ListClients returns clients matching the filter.
func (s *Service) ListClients(ctx context.Context, req ListClientsRequest) ([]Client, error) {
	return s.repo.ListClients(ctx, req)
}

// ListClientsPage returns one page of clients plus pagination metadata.
func (s *Service) ListClientsPage(ctx context.Context, req ListClientsRequest, page, perPage int) ([]Client, shared.Pagination, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	total, err := s.repo.CountClients(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	req.Limit = perPage
	req.Offset = (page - 1) * perPage
	list, err := s.repo.ListClients(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(page, perPage, total), nil
}

// UpdateClient edits a client. Once any sale references the client the
// identity fields are frozen; contact fields stay editable.
func (s *Service) UpdateClient(ctx context.Context, id int64, input ClientInput) (*Client, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	client, err := s.repo.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	saleCount, err := s.repo.CountSales(ctx, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.FullName)
	nationalID := strings.TrimSpace(input.NationalID)
	if saleCount > 0 && (name != client.FullName || nationalID != client.NationalID) {
		return nil, ErrIdentityLocked
	}
	client.FullName = name
	client.NationalID = nationalID
	client.Phone = strings.TrimSpace(input.Phone)
	client.Email = strings.TrimSpace(input.Email)
	client.Address = input.Address
	client.Note = input.Note
	if err := s.repo.UpdateClient(ctx, *client); err != nil {
		return nil, err
	}
	return s.repo.GetClient(ctx, id)
}

// DeleteClient removes a client that no sale references.
func (s *Service) DeleteClient(ctx context.Context, id int64) error {
	saleCount, err := s.repo.CountSales(ctx, id)
	if err != nil {
		return err
	}
	if saleCount > 0 {
		return ErrHasSales
	}
	return s.repo.DeleteClient(ctx, id)
}
