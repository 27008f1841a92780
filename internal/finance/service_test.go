package finance

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/terrabook/terrabook/internal/sales"
	"github.com/terrabook/terrabook/internal/shared"
)

type fakeSnapshotPort struct {
	snapshot Snapshot
	fetches  int
}

func (f *fakeSnapshotPort) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	f.fetches++
	return f.snapshot, nil
}

func newTestService(t *testing.T, repo *fakeSnapshotPort) (*Service, *Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)
	return NewService(repo, cache), cache
}

func serviceSnapshot() Snapshot {
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return Snapshot{
		Parcels: testParcels(),
		Sales: []sales.Sale{
			{ID: 1, ParcelIDs: []int64{11}, Kind: sales.SaleKindFull,
				Status: sales.SaleStatusPending, Reservation: 5000, CreatedAt: created},
		},
		Payments: []sales.Payment{
			{ID: 1, SaleID: 1, Amount: 5000, Type: sales.PaymentSmallAdvance, PaidAt: created},
		},
	}
}

func TestServiceReportCachesByVersion(t *testing.T) {
	repo := &fakeSnapshotPort{snapshot: serviceSnapshot()}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	first, err := svc.Report(ctx, shared.RangeAll, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.InDelta(t, 5000, first.Totals[BucketSmallAdvance], 0.001)
	require.Equal(t, 1, repo.fetches)

	second, err := svc.Report(ctx, shared.RangeAll, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, repo.fetches, "second call must hit the cache")
	require.InDelta(t, first.GrandTotal, second.GrandTotal, 0.001)
}

func TestServiceReportBumpInvalidates(t *testing.T) {
	repo := &fakeSnapshotPort{snapshot: serviceSnapshot()}
	svc, cache := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.Report(ctx, shared.RangeAll, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, repo.fetches)

	// a mutation lands and bumps the version; next read must recompute
	repo.snapshot.Payments = append(repo.snapshot.Payments, sales.Payment{
		ID: 2, SaleID: 1, Amount: 2000, Type: sales.PaymentSmallAdvance,
		PaidAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, cache.Bump(ctx))

	report, err := svc.Report(ctx, shared.RangeAll, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 2, repo.fetches)
	require.InDelta(t, 7000, report.Totals[BucketSmallAdvance], 0.001)
}

func TestServiceReportRejectsBadRange(t *testing.T) {
	repo := &fakeSnapshotPort{snapshot: serviceSnapshot()}
	svc, _ := newTestService(t, repo)

	_, err := svc.Report(context.Background(), "quarter", time.Time{}, time.Time{})
	require.ErrorIs(t, err, shared.ErrInvalidRange)
	require.Zero(t, repo.fetches)
}

func TestServiceReportWithoutCache(t *testing.T) {
	repo := &fakeSnapshotPort{snapshot: serviceSnapshot()}
	svc := NewService(repo, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		report, err := svc.Report(ctx, shared.RangeAll, time.Time{}, time.Time{})
		require.NoError(t, err)
		require.InDelta(t, 5000, report.Totals[BucketSmallAdvance], 0.001)
	}
	require.Equal(t, 2, repo.fetches, "no cache means every call recomputes")
}

func TestServiceRebuildRefreshesCache(t *testing.T) {
	repo := &fakeSnapshotPort{snapshot: serviceSnapshot()}
	svc, _ := newTestService(t, repo)
	ctx := context.Background()

	report, err := svc.Rebuild(ctx, shared.RangeAll)
	require.NoError(t, err)
	require.InDelta(t, 5000, report.Totals[BucketSmallAdvance], 0.001)
	require.Equal(t, 1, repo.fetches)

	// warmed cache serves the next read without another fetch
	_, err = svc.Report(ctx, shared.RangeAll, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, repo.fetches)
}
