package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/terrabook/terrabook/internal/sales"
)

type fakeScanPort struct {
	overdue []sales.Installment
	marked  []int64
	cutoff  time.Time
}

func (f *fakeScanPort) ListOverdueInstallments(ctx context.Context, cutoff time.Time) ([]sales.Installment, error) {
	f.cutoff = cutoff
	return f.overdue, nil
}

func (f *fakeScanPort) MarkInstallmentLate(ctx context.Context, id int64) error {
	f.marked = append(f.marked, id)
	return nil
}

func TestOverdueScanFlagsUnpaidRows(t *testing.T) {
	repo := &fakeScanPort{
		overdue: []sales.Installment{
			{ID: 1, Status: sales.InstallmentUnpaid},
			{ID: 2, Status: sales.InstallmentPartial},
			{ID: 3, Status: sales.InstallmentLate},
		},
	}
	job := NewOverdueScanJob(repo, nil, nil)

	task, err := NewOverdueScanTask(OverdueScanPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	// already-late rows are not re-flagged
	require.Equal(t, []int64{1, 2}, repo.marked)
}

func TestOverdueScanGracePeriod(t *testing.T) {
	repo := &fakeScanPort{}
	job := NewOverdueScanJob(repo, nil, nil)
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }

	task, err := NewOverdueScanTask(OverdueScanPayload{GraceDays: 3})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, now.AddDate(0, 0, -3), repo.cutoff)
}

func TestOverdueScanRejectsGarbagePayload(t *testing.T) {
	job := NewOverdueScanJob(&fakeScanPort{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskOverdueScan, []byte("{broken")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
