package workflow

import (
	"context"
	"log/slog"
	"time"

	"stamper/internal/config"
	"stamper/internal/logging"
	"stamper/internal/queue"
)

// Reaper periodically deletes terminal tasks older than the retention window
// so the task database does not grow without bound.
type Reaper struct {
	store     *queue.Store
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
}

// NewReaper constructs a reaper from the configured schedule.
func NewReaper(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := time.Duration(cfg.Workflow.ReaperInterval) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	retention := time.Duration(cfg.Workflow.TaskRetentionHours) * time.Hour
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Reaper{
		store:     store,
		logger:    logging.NewComponentLogger(logger, "reaper"),
		interval:  interval,
		retention: retention,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
// Sweep failures are logged and the loop continues.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single retention sweep.
func (r *Reaper) SweepOnce(ctx context.Context) {
	removed, err := r.store.Sweep(ctx, r.retention)
	if err != nil {
		r.logger.Warn("retention sweep failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check task database access"),
		)
		return
	}
	if removed > 0 {
		r.logger.Info("retention sweep removed tasks", logging.Int64("removed", removed))
	}
}
