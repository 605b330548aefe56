package workflow

import (
	"context"
	"testing"

	"stamper/internal/logging"
	"stamper/internal/queue"
	"stamper/internal/testsupport"
)

func TestReaperSweepsTerminalTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.TaskRetentionHours = 1
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	done := testsupport.NewSingleTask(t, store, "/uploads/done.mp4", "a")
	done.Status = queue.StatusProcessing
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update: %v", err)
	}
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update: %v", err)
	}
	active := testsupport.NewSingleTask(t, store, "/uploads/active.mp4", "b")

	reaper := NewReaper(cfg, store, logging.NewNop())

	// Within the retention window nothing is removed.
	reaper.SweepOnce(ctx)
	if got, err := store.GetByID(ctx, done.ID); err != nil || got == nil {
		t.Fatalf("expected recent terminal task retained, got %#v err=%v", got, err)
	}

	// Shrink the window to zero and the terminal task is swept while the
	// pending one survives.
	reaper.retention = 0
	reaper.SweepOnce(ctx)
	if got, err := store.GetByID(ctx, done.ID); err != nil || got != nil {
		t.Fatalf("expected terminal task swept, got %#v err=%v", got, err)
	}
	if got, err := store.GetByID(ctx, active.ID); err != nil || got == nil {
		t.Fatalf("expected pending task retained, got %#v err=%v", got, err)
	}
}

func TestNewReaperDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.ReaperInterval = 0
	cfg.Workflow.TaskRetentionHours = 0
	store := testsupport.MustOpenStore(t, cfg)

	reaper := NewReaper(cfg, store, nil)
	if reaper.interval <= 0 || reaper.retention <= 0 {
		t.Fatalf("expected positive defaults, got %v %v", reaper.interval, reaper.retention)
	}
}
