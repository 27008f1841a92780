package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld indicates another actor holds the lock.
var ErrLockHeld = errors.New("resource is locked by another operation")

// ParcelLockKey builds redis keys guarding parcel-scoped critical sections.
func ParcelLockKey(parcelID int64) string {
	return fmt.Sprintf("land:parcel:%d:lock", parcelID)
}

// SaleLockKey builds redis keys guarding sale-scoped critical sections.
func SaleLockKey(saleID int64) string {
	return fmt.Sprintf("sales:sale:%d:lock", saleID)
}

// RedisLocker implements best-effort mutual exclusion with SET NX. The store
// offers no transactions, so this only narrows the race window between
// availability check and commit; it does not make multi-step writes atomic.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker constructs a locker with the given lease duration.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// Acquire takes the lock, returning a release token. ErrLockHeld when taken.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (string, error) {
	if l == nil || l.client == nil {
		return "", nil
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

// Release frees the lock when the token still owns it.
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
	return l.client.Eval(ctx, script, []string{key}, token).Err()
}
