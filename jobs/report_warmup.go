package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/terrabook/terrabook/internal/finance"
	jobmetrics "github.com/terrabook/terrabook/internal/jobs"
	"github.com/terrabook/terrabook/internal/shared"
)

// ReportWarmupJob pre-builds the reconciliation report for the standard
// ranges so the first dashboard hit after a cache bump is served warm.
type ReportWarmupJob struct {
	Finance *finance.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(financeSvc *finance.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{Finance: financeSvc, Logger: logger, Metrics: metrics}
}

// Handle processes report warmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Finance == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ReportWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	ranges := payload.Ranges
	if len(ranges) == 0 {
		ranges = []string{shared.RangeToday, shared.RangeWeek, shared.RangeMonth, shared.RangeAll}
	}

	tracker := j.metrics().Track(TaskReportWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting report warmup", slog.Int("ranges", len(ranges)))

	for _, rangeKind := range ranges {
		rangeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		_, err := j.Finance.Rebuild(rangeCtx, rangeKind)
		cancel()
		if err != nil {
			resultErr = err
			logger.Error("warm report range", slog.String("range", rangeKind), slog.Any("error", err))
			return resultErr
		}
	}

	logger.Info("completed report warmup")
	return resultErr
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}

func (j *ReportWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
