package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdueScan flags unpaid installments past their due date.
	TaskOverdueScan = "installments:overdue_scan"
	// TaskReportWarmup pre-builds the reconciliation report caches.
	TaskReportWarmup = "finance:report_warmup"
	// TaskIdempotencyCleanup prunes stale idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// OverdueScanPayload parameterises the overdue installment scan.
type OverdueScanPayload struct {
	// GraceDays pushes the cutoff back, so an installment due yesterday is
	// not flagged while payments posted at the desk are still being entered.
	GraceDays int `json:"grace_days"`
}

// NewOverdueScanTask constructs an overdue scan task.
func NewOverdueScanTask(payload OverdueScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueScan, data), nil
}

// ReportWarmupPayload lists the ranges to pre-build; empty means all standard
// ranges.
type ReportWarmupPayload struct {
	Ranges []string `json:"ranges,omitempty"`
}

// NewReportWarmupTask constructs a report warmup task.
func NewReportWarmupTask(payload ReportWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportWarmup, data), nil
}

// IdempotencyCleanupPayload bounds the key retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs a cleanup task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
