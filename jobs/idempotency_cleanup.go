package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ostrovmarket/fulfillment/internal/shared"
)

// IdempotencyCleanupJob prunes processed idempotency keys past the
// retention window.
type IdempotencyCleanupJob struct {
	store  *shared.IdempotencyStore
	logger *slog.Logger
}

// NewIdempotencyCleanupJob constructs the job.
func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{store: store, logger: logger}
}

// Handle processes TaskTypeIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	if err := j.store.Cleanup(ctx, retention); err != nil {
		j.logger.Error("idempotency cleanup", slog.Any("error", err))
		return err
	}
	j.logger.Info("idempotency cleanup finished", slog.Duration("retention", retention))
	return nil
}
