package clients

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	clients map[int64]Client
	sales   map[int64]int
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{clients: make(map[int64]Client), sales: make(map[int64]int)}
}

func (m *memoryRepo) CreateClient(_ context.Context, c Client) (int64, error) {
	m.nextID++
	c.ID = m.nextID
	m.clients[c.ID] = c
	return c.ID, nil
}

func (m *memoryRepo) GetClient(_ context.Context, id int64) (*Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *memoryRepo) ListClients(_ context.Context, _ ListClientsRequest) ([]Client, error) {
	out := make([]Client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryRepo) UpdateClient(_ context.Context, c Client) error {
	if _, ok := m.clients[c.ID]; !ok {
		return ErrNotFound
	}
	m.clients[c.ID] = c
	return nil
}

func (m *memoryRepo) DeleteClient(_ context.Context, id int64) error {
	if _, ok := m.clients[id]; !ok {
		return ErrNotFound
	}
	delete(m.clients, id)
	return nil
}

func (m *memoryRepo) CountClients(_ context.Context, _ ListClientsRequest) (int, error) {
	return len(m.clients), nil
}

func (m *memoryRepo) CountSales(_ context.Context, clientID int64) (int, error) {
	return m.sales[clientID], nil
}

func TestUpdateClientIdentityLockedBySales(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	client, err := svc.CreateClient(ctx, ClientInput{FullName: "Sara Amari", NationalID: "AB123456", Phone: "0600000001"})
	require.NoError(t, err)

	repo.sales[client.ID] = 1

	_, err = svc.UpdateClient(ctx, client.ID, ClientInput{
		FullName:   "Sara Amri",
		NationalID: client.NationalID,
		Phone:      client.Phone,
	})
	require.ErrorIs(t, err, ErrIdentityLocked)

	// contact fields remain editable
	updated, err := svc.UpdateClient(ctx, client.ID, ClientInput{
		FullName:   client.FullName,
		NationalID: client.NationalID,
		Phone:      "0611111111",
		Email:      "sara@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "0611111111", updated.Phone)
	require.Equal(t, "sara@example.com", updated.Email)
}

func TestUpdateClientIdentityEditableWithoutSales(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	client, err := svc.CreateClient(ctx, ClientInput{FullName: "Sara Amari", NationalID: "AB123456"})
	require.NoError(t, err)

	updated, err := svc.UpdateClient(ctx, client.ID, ClientInput{FullName: "Sara Amri", NationalID: "AB123457"})
	require.NoError(t, err)
	require.Equal(t, "Sara Amri", updated.FullName)
	require.Equal(t, "AB123457", updated.NationalID)
}

func TestDeleteClientBlockedBySales(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	client, err := svc.CreateClient(ctx, ClientInput{FullName: "Omar Tazi", NationalID: "CD654321"})
	require.NoError(t, err)

	repo.sales[client.ID] = 2
	require.ErrorIs(t, svc.DeleteClient(ctx, client.ID), ErrHasSales)

	repo.sales[client.ID] = 0
	require.NoError(t, svc.DeleteClient(ctx, client.ID))
}

func TestListClientsPageMetadata(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	for i := 0; i < 45; i++ {
		_, err := svc.CreateClient(ctx, ClientInput{
			FullName:   "Client",
			NationalID: "ID" + string(rune('A'+i%26)) + string(rune('0'+i/26)),
		})
		require.NoError(t, err)
	}

	_, pagination, err := svc.ListClientsPage(ctx, ListClientsRequest{}, 2, 20)
	require.NoError(t, err)
	require.Equal(t, 2, pagination.Page)
	require.Equal(t, 20, pagination.PerPage)
	require.Equal(t, 45, pagination.Total)
	require.Equal(t, 3, pagination.TotalPages)

	// Zero values fall back to the defaults.
	_, pagination, err = svc.ListClientsPage(ctx, ListClientsRequest{}, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, pagination.Page)
	require.Equal(t, 20, pagination.PerPage)
}
