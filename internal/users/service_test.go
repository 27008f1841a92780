package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryRepo struct {
	nextID int64
	rows   map[int64]User
	hashes map[int64]string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, rows: map[int64]User{}, hashes: map[int64]string{}}
}

func (m *memoryRepo) ListUsers(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(m.rows))
	for _, u := range m.rows {
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryRepo) GetUser(ctx context.Context, id int64) (User, error) {
	u, ok := m.rows[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memoryRepo) GetUsersByIDs(ctx context.Context, ids []int64) (map[int64]User, error) {
	out := map[int64]User{}
	for _, id := range ids {
		if u, ok := m.rows[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (m *memoryRepo) CreateUser(ctx context.Context, email, name, passwordHash string) (User, error) {
	for _, u := range m.rows {
		if u.Email == email {
			return User{}, ErrEmailTaken
		}
	}
	user := User{ID: m.nextID, Email: email, Name: name, IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.rows[user.ID] = user
	m.hashes[user.ID] = passwordHash
	m.nextID++
	return user, nil
}

func (m *memoryRepo) SetActive(ctx context.Context, id int64, active bool) error {
	u, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = active
	m.rows[id] = u
	return nil
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	user, err := svc.CreateUser(context.Background(), " Admin@Example.COM ", " Admin ", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, "admin@example.com", user.Email)
	require.Equal(t, "Admin", user.Name)
	require.True(t, user.IsActive)

	hash := repo.hashes[user.ID]
	require.NotEqual(t, "s3cret-pass", hash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret-pass")))
}

func TestCreateUserValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "", "name", "longenough")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CreateUser(ctx, "a@b.c", "", "longenough")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CreateUser(ctx, "a@b.c", "name", "short")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "a@b.c", "first", "longenough")
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, "A@B.C", "second", "longenough")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestNamesByID(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	alice, err := svc.CreateUser(ctx, "alice@example.com", "Alice", "longenough")
	require.NoError(t, err)

	names, err := svc.NamesByID(ctx, []int64{alice.ID, 42})
	require.NoError(t, err)
	require.Equal(t, map[int64]string{alice.ID: "Alice"}, names)
}
