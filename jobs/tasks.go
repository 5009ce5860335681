package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeDelaySweep flags overdue warehouse tasks as delayed.
	TaskTypeDelaySweep = "fulfillment:delay_sweep"
	// TaskTypeIdempotencyCleanup prunes processed idempotency keys.
	TaskTypeIdempotencyCleanup = "fulfillment:idempotency_cleanup"
)

// DelaySweepPayload configures one sweep run.
type DelaySweepPayload struct {
	// GraceMinutes shifts the cutoff so tasks just past their estimate
	// are not flagged immediately.
	GraceMinutes int `json:"grace_minutes"`
}

// NewDelaySweepTask constructs an Asynq task.
func NewDelaySweepTask(payload DelaySweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDelaySweep, data), nil
}

// IdempotencyCleanupPayload configures retention for processed keys.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs an Asynq task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeIdempotencyCleanup, data), nil
}
