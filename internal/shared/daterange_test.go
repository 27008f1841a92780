package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveRangeToday(t *testing.T) {
	now := time.Date(2024, 3, 14, 15, 30, 0, 0, time.UTC)
	r, err := ResolveRange(RangeToday, time.Time{}, time.Time{}, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), r.From)
	require.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), r.To)
	require.True(t, r.Contains(now))
	require.False(t, r.Contains(r.To))
}

func TestResolveRangeWeekStartsMonday(t *testing.T) {
	// 2024-03-14 is a Thursday.
	now := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	r, err := ResolveRange(RangeWeek, time.Time{}, time.Time{}, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), r.From)
	require.Equal(t, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), r.To)
}

func TestResolveRangeMonth(t *testing.T) {
	now := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	r, err := ResolveRange(RangeMonth, time.Time{}, time.Time{}, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), r.From)
	require.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), r.To)
}

func TestResolveRangeAllIsUnbounded(t *testing.T) {
	r, err := ResolveRange(RangeAll, time.Time{}, time.Time{}, time.Now())
	require.NoError(t, err)
	require.True(t, r.Contains(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.True(t, r.Contains(time.Date(2090, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestResolveRangeCustom(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	r, err := ResolveRange(RangeCustom, from, to, time.Now())
	require.NoError(t, err)
	require.True(t, r.Contains(from))
	require.False(t, r.Contains(to))

	// Missing from is rejected; reversed bounds are rejected.
	_, err = ResolveRange(RangeCustom, time.Time{}, to, time.Now())
	require.ErrorIs(t, err, ErrInvalidRange)
	_, err = ResolveRange(RangeCustom, to, from, time.Now())
	require.ErrorIs(t, err, ErrInvalidRange)

	// Single-day custom range defaults to one day.
	r, err = ResolveRange(RangeCustom, from, time.Time{}, time.Now())
	require.NoError(t, err)
	require.Equal(t, from.AddDate(0, 0, 1), r.To)
}

func TestResolveRangeUnknownKind(t *testing.T) {
	_, err := ResolveRange("quarter", time.Time{}, time.Time{}, time.Now())
	require.ErrorIs(t, err, ErrInvalidRange)
}
