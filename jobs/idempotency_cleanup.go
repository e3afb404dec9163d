package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// DefaultKeyRetention bounds how long a processed idempotency key stays
// replayable. Clients retrying after this window are treated as new requests.
const DefaultKeyRetention = 30 * 24 * time.Hour

// KeySweeper removes idempotency keys older than the retention window.
type KeySweeper interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob runs the scheduled key sweep.
type IdempotencyCleanupJob struct {
	Logger  *slog.Logger
	Sweeper KeySweeper
}

// NewIdempotencyCleanupJob initialises the sweep handler.
func NewIdempotencyCleanupJob(sweeper KeySweeper, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Logger: logger, Sweeper: sweeper}
}

// Handle executes the sweep.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = DefaultKeyRetention
	}

	logger := j.logger()
	if err := j.Sweeper.Cleanup(ctx, retention); err != nil {
		logger.Error("idempotency key sweep failed", slog.Any("error", err))
		return err
	}
	logger.Info("completed idempotency key sweep", slog.Duration("retention", retention))
	return nil
}

func (j *IdempotencyCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
