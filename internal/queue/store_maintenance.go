package queue

import (
	"context"
	"fmt"
	"time"
)

// Sweep deletes terminal tasks whose completion time is older than the
// retention window and returns the number of rows removed.
func (s *Store) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(timeFormat)
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM tasks
         WHERE status IN (?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		StatusCompleted,
		StatusFailed,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("sweep tasks: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all tasks regardless of status and reports how many rows
// were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks`)
	if err != nil {
		return 0, fmt.Errorf("clear tasks: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted removes completed tasks.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed tasks: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes failed tasks.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed tasks: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed requeues failed tasks as pending with a fresh retry budget.
func (s *Store) RetryFailed(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(timeFormat)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks
         SET status = ?, retry_count = 0, error_message = NULL, next_attempt_at = NULL,
             completed_at = NULL, updated_at = ?
         WHERE status = ?`,
		StatusPending,
		now,
		StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("retry failed tasks: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckProcessing returns tasks abandoned mid-processing to pending.
// Called once at daemon startup so a crash never strands work.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(timeFormat)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE tasks SET status = ?, started_at = NULL, updated_at = ? WHERE status = ?`,
		StatusPending,
		now,
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck tasks: %w", err)
	}
	return res.RowsAffected()
}
