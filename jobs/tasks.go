// Package jobs hosts background task definitions and the Asynq worker.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerAudit triggers the nightly ledger drift scan.
	TaskLedgerAudit = "ledger:audit"
	// TaskIdempotencyCleanup sweeps expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// LedgerAuditPayload carries scheduling metadata for the drift scan.
type LedgerAuditPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLedgerAuditTask constructs an Asynq task for the ledger audit scan.
func NewLedgerAuditTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LedgerAuditPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerAudit, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload carries the retention window for the key sweep.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask constructs an Asynq task for the key sweep.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
