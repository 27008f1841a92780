package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/terrabook/terrabook/internal/jobs"
	"github.com/terrabook/terrabook/internal/sales"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// InstallmentScanPort is the slice of the sales repository the scan needs.
type InstallmentScanPort interface {
	ListOverdueInstallments(ctx context.Context, cutoff time.Time) ([]sales.Installment, error)
	MarkInstallmentLate(ctx context.Context, id int64) error
}

// OverdueScanJob flags unpaid and partially paid installments whose due date
// has passed. Flagging is advisory: a late installment still accepts payments
// and still counts toward completion.
type OverdueScanJob struct {
	Repo    InstallmentScanPort
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewOverdueScanJob wires dependencies for the scan handler.
func NewOverdueScanJob(repo InstallmentScanPort, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueScanJob {
	return &OverdueScanJob{
		Repo:    repo,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes overdue scan tasks.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Repo == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.GraceDays < 0 {
		payload.GraceDays = 0
	}

	tracker := j.metrics().Track(TaskOverdueScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	cutoff := j.now().AddDate(0, 0, -payload.GraceDays)
	logger := j.logger().With(slog.Time("cutoff", cutoff))
	logger.Info("starting overdue installment scan")

	overdue, err := j.Repo.ListOverdueInstallments(ctx, cutoff)
	if err != nil {
		resultErr = err
		logger.Error("list overdue installments", slog.Any("error", err))
		return resultErr
	}

	flagged := 0
	for _, row := range overdue {
		if row.Status == sales.InstallmentLate {
			continue
		}
		if err := j.Repo.MarkInstallmentLate(ctx, row.ID); err != nil {
			resultErr = err
			logger.Error("mark installment late", slog.Int64("installment_id", row.ID), slog.Any("error", err))
			return resultErr
		}
		flagged++
	}

	j.metrics().AddLateInstallments(flagged)
	logger.Info("completed overdue installment scan", slog.Int("flagged", flagged), slog.Int("scanned", len(overdue)))
	return resultErr
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOverdueScan))
	}
	return slog.Default().With(slog.String("job", TaskOverdueScan))
}

func (j *OverdueScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *OverdueScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
