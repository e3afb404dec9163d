package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubSweeper struct {
	olderThan time.Duration
	calls     int
	err       error
}

func (s *stubSweeper) Cleanup(ctx context.Context, olderThan time.Duration) error {
	s.calls++
	s.olderThan = olderThan
	return s.err
}

func cleanupTask(t *testing.T, retention time.Duration) *asynq.Task {
	t.Helper()
	task, err := NewIdempotencyCleanupTask(retention)
	require.NoError(t, err)
	return task
}

func TestIdempotencyCleanupSweepsWithRetention(t *testing.T) {
	sweeper := &stubSweeper{}
	job := NewIdempotencyCleanupJob(sweeper, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, job.Handle(context.Background(), cleanupTask(t, 48*time.Hour)))
	require.Equal(t, 1, sweeper.calls)
	require.Equal(t, 48*time.Hour, sweeper.olderThan)
}

func TestIdempotencyCleanupDefaultsRetention(t *testing.T) {
	sweeper := &stubSweeper{}
	job := NewIdempotencyCleanupJob(sweeper, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, job.Handle(context.Background(), cleanupTask(t, 0)))
	require.Equal(t, DefaultKeyRetention, sweeper.olderThan)
}

func TestIdempotencyCleanupPropagatesSweepError(t *testing.T) {
	sweeper := &stubSweeper{err: errors.New("connection reset")}
	job := NewIdempotencyCleanupJob(sweeper, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := job.Handle(context.Background(), cleanupTask(t, time.Hour))
	require.ErrorContains(t, err, "connection reset")
}

func TestIdempotencyCleanupSkipsMalformedPayload(t *testing.T) {
	sweeper := &stubSweeper{}
	job := NewIdempotencyCleanupJob(sweeper, slog.New(slog.NewTextHandler(io.Discard, nil)))

	task := asynq.NewTask(TaskIdempotencyCleanup, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, sweeper.calls)
}
