package sales

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateScheduleTenByEightThousand(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows, err := GenerateSchedule(1, 80000, 10, start)
	require.NoError(t, err)
	require.Len(t, rows, 10)

	for i, row := range rows {
		require.Equal(t, i+1, row.Number)
		require.InDelta(t, 8000, row.AmountDue, 0.001)
		require.Zero(t, row.AmountPaid)
		require.Zero(t, row.StackedAmount)
		require.Equal(t, InstallmentUnpaid, row.Status)
		require.Equal(t, start.AddDate(0, i, 0), row.DueDate)
	}
	require.Equal(t, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), rows[9].DueDate)
}

func TestGenerateScheduleSumInvariant(t *testing.T) {
	start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	for _, term := range []int{1, 3, 7, 12, 36, 120} {
		remaining := 123456.78
		rows, err := GenerateSchedule(1, remaining, term, start)
		require.NoError(t, err)

		var sum float64
		for _, row := range rows {
			sum += row.AmountDue
		}
		require.InDelta(t, remaining, sum, 0.01, "term %d", term)
	}
}

func TestGenerateScheduleTermBounds(t *testing.T) {
	start := time.Now()
	_, err := GenerateSchedule(1, 1000, 0, start)
	require.ErrorIs(t, err, ErrInvalidTerm)

	_, err = GenerateSchedule(1, 1000, 121, start)
	require.ErrorIs(t, err, ErrInvalidTerm)

	rows, err := GenerateSchedule(1, 1000, MaxTerm, start)
	require.NoError(t, err)
	require.Len(t, rows, MaxTerm)
}

func TestGenerateScheduleMonthEndDates(t *testing.T) {
	// AddDate normalization: Jan 31 + 1 month lands on Mar 2/3, which is the
	// documented Go behavior the schedule inherits.
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	rows, err := GenerateSchedule(1, 3000, 3, start)
	require.NoError(t, err)
	require.Equal(t, start, rows[0].DueDate)
	require.Equal(t, start.AddDate(0, 1, 0), rows[1].DueDate)
	require.Equal(t, start.AddDate(0, 2, 0), rows[2].DueDate)
}

func TestRemainingBalance(t *testing.T) {
	require.InDelta(t, 80000, RemainingBalance(100000, 5000, 5000, 20000), 0.001)
	require.InDelta(t, -100, RemainingBalance(1000, 0, 600, 500), 0.001)
}
