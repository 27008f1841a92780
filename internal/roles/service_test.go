package roles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	nextID int64
	rows   map[int64]Role
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, rows: map[int64]Role{}}
}

func (m *memoryRepo) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	r, ok := m.rows[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (m *memoryRepo) CreateRole(ctx context.Context, name, description string) (Role, error) {
	for _, r := range m.rows {
		if r.Name == name {
			return Role{}, ErrNameTaken
		}
	}
	role := Role{ID: m.nextID, Name: name, Description: description, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.rows[role.ID] = role
	m.nextID++
	return role, nil
}

func (m *memoryRepo) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	r, ok := m.rows[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	r.Name = name
	r.Description = description
	m.rows[id] = r
	return r, nil
}

func (m *memoryRepo) DeleteRole(ctx context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func TestCreateRoleTrimsAndValidates(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "  cashier  ", " handles desk payments ")
	require.NoError(t, err)
	require.Equal(t, "cashier", role.Name)
	require.Equal(t, "handles desk payments", role.Description)

	_, err = svc.CreateRole(ctx, "   ", "")
	require.ErrorIs(t, err, ErrNameRequired)

	_, err = svc.CreateRole(ctx, "cashier", "")
	require.ErrorIs(t, err, ErrNameTaken)
}

func TestUpdateRoleMissing(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, err := svc.UpdateRole(context.Background(), 99, "manager", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRole(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "surveyor", "")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteRole(ctx, role.ID))
	require.ErrorIs(t, svc.DeleteRole(ctx, role.ID), ErrNotFound)
}
