package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ostrovmarket/fulfillment/internal/tasks"
)

// DelaySweepJob marks warehouse tasks past their delivery estimate as
// delayed and lets status propagation pick the change up.
type DelaySweepJob struct {
	tasks  *tasks.Service
	logger *slog.Logger
}

// NewDelaySweepJob constructs the job.
func NewDelaySweepJob(service *tasks.Service, logger *slog.Logger) *DelaySweepJob {
	return &DelaySweepJob{tasks: service, logger: logger}
}

// Handle processes TaskTypeDelaySweep tasks.
func (j *DelaySweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload DelaySweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	cutoff := time.Now().UTC().Add(-time.Duration(payload.GraceMinutes) * time.Minute)
	flagged, err := j.tasks.SweepOverdue(ctx, cutoff)
	if err != nil {
		j.logger.Error("delay sweep", slog.Any("error", err))
		return err
	}
	j.logger.Info("delay sweep finished", slog.Int("flagged", flagged))
	return nil
}
