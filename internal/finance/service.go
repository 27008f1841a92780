package finance

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/terrabook/terrabook/internal/shared"
)

// SnapshotPort fetches the raw collections.
type SnapshotPort interface {
	FetchSnapshot(ctx context.Context) (Snapshot, error)
}

// Service builds reconciliation reports, caching by range and version and
// collapsing concurrent builds of the same report into one.
type Service struct {
	repo  SnapshotPort
	cache *Cache
	group singleflight.Group
}

// NewService constructs the finance service. Cache may be nil; every request
// then recomputes from a fresh snapshot.
func NewService(repo SnapshotPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Report returns the reconciliation report for the range. Cached copies are
// used while valid; any sale mutation bumps the cache version and the next
// call rebuilds from raw records.
func (s *Service) Report(ctx context.Context, rangeKind string, from, to time.Time) (*Report, error) {
	dateRange, err := shared.ResolveRange(rangeKind, from, to, time.Now())
	if err != nil {
		return nil, err
	}

	key, err := s.cacheKey(ctx, dateRange)
	if err != nil {
		return nil, err
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		var report Report
		err := s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (any, error) {
			return s.build(ctx, dateRange)
		})
		if err != nil {
			return nil, err
		}
		return &report, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Report), nil
}

// Rebuild recomputes the report for the range, bypassing any cached copy,
// and stores the fresh result. Used by the warmup job.
func (s *Service) Rebuild(ctx context.Context, rangeKind string) (*Report, error) {
	dateRange, err := shared.ResolveRange(rangeKind, time.Time{}, time.Time{}, time.Now())
	if err != nil {
		return nil, err
	}
	report, err := s.build(ctx, dateRange)
	if err != nil {
		return nil, err
	}
	key, err := s.cacheKey(ctx, dateRange)
	if err != nil {
		return nil, err
	}
	if err := s.cache.StoreJSON(ctx, key, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Service) build(ctx context.Context, dateRange shared.DateRange) (*Report, error) {
	snapshot, err := s.repo.FetchSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	return BuildReport(snapshot, dateRange), nil
}

func (s *Service) cacheKey(ctx context.Context, dateRange shared.DateRange) (string, error) {
	parts := []string{"finance", "report", dateRange.Kind}
	if dateRange.Kind == shared.RangeCustom {
		parts = append(parts, dateRange.From.Format("2006-01-02"), dateRange.To.Format("2006-01-02"))
	}
	return s.cache.BuildKey(ctx, parts...)
}
