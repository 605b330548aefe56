package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"stamper/internal/queue"
	"stamper/internal/testsupport"
)

func TestOpenAppliesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	task := testsupport.NewSingleTask(t, store, "/uploads/holiday_clip.mp4", "© stamper")
	if task.ID == "" {
		t.Fatal("expected task ID to be assigned")
	}
	if task.Status != queue.StatusPending {
		t.Fatalf("new task status = %s, want pending", task.Status)
	}
	if task.Label != "Holiday Clip" {
		t.Fatalf("unexpected derived label %q", task.Label)
	}

	fetched, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.Text != "© stamper" {
		t.Fatalf("unexpected fetched task: %#v", fetched)
	}
}

func TestGetByIDUnknownReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	task, err := store.GetByID(context.Background(), "5f0c3e3a-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if task != nil {
		t.Fatalf("expected nil for unknown id, got %#v", task)
	}
}

func TestUpdateEnforcesTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.NewSingleTask(t, store, "/uploads/a.mp4", "text")

	// pending -> completed skips processing and must be refused.
	task.Status = queue.StatusCompleted
	if err := store.Update(ctx, task); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	task.Status = queue.StatusProcessing
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("pending -> processing: %v", err)
	}
	if task.StartedAt == nil {
		t.Fatal("expected StartedAt to be derived on first processing entry")
	}
	firstStart := *task.StartedAt

	task.Status = queue.StatusCompleted
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("processing -> completed: %v", err)
	}
	if task.CompletedAt == nil {
		t.Fatal("expected CompletedAt on terminal entry")
	}

	// Terminal tasks admit no further transitions.
	task.Status = queue.StatusProcessing
	if err := store.Update(ctx, task); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected terminal task to refuse update, got %v", err)
	}

	fetched, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Status != queue.StatusCompleted {
		t.Fatalf("stored status = %s, want completed", fetched.Status)
	}
	if fetched.StartedAt == nil || !fetched.StartedAt.Equal(firstStart) {
		t.Fatalf("StartedAt changed across updates: %v vs %v", fetched.StartedAt, firstStart)
	}
}

func TestUpdateUnknownTask(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ghost := &queue.Task{ID: "missing", Status: queue.StatusProcessing, Kind: queue.KindSingle, InputPaths: []string{"x"}}
	if err := store.Update(context.Background(), ghost); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimNextOrdersByCreation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewSingleTask(t, store, "/uploads/first.mp4", "a")
	time.Sleep(5 * time.Millisecond)
	testsupport.NewSingleTask(t, store, "/uploads/second.mp4", "b")

	claimed, firstEntry, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected oldest pending task, got %#v", claimed)
	}
	if !firstEntry {
		t.Fatal("expected first processing entry for a pending task")
	}
	if claimed.Status != queue.StatusProcessing {
		t.Fatalf("claimed status = %s, want processing", claimed.Status)
	}
	if claimed.StartedAt == nil {
		t.Fatal("expected StartedAt set on claim")
	}
}

func TestClaimNextHonorsBackoffSchedule(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.NewSingleTask(t, store, "/uploads/retry_me.mp4", "a")
	claimed, _, err := store.ClaimNext(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("initial claim: %v %#v", err, claimed)
	}

	// Schedule the retry in the future; nothing should be runnable yet.
	future := time.Now().UTC().Add(time.Hour)
	claimed.Status = queue.StatusRetrying
	claimed.RetryCount = 1
	claimed.NextAttempt = &future
	if err := store.Update(ctx, claimed); err != nil {
		t.Fatalf("processing -> retrying: %v", err)
	}

	got, _, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext with future backoff: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no runnable task before next_attempt_at, got %#v", got)
	}

	// Move the schedule into the past and the task becomes claimable again.
	past := time.Now().UTC().Add(-time.Second)
	claimed.Status = queue.StatusRetrying
	claimed.NextAttempt = &past
	if err := store.Update(ctx, claimed); err != nil {
		t.Fatalf("reschedule retry: %v", err)
	}

	got, firstEntry, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext with due backoff: %v", err)
	}
	if got == nil || got.ID != task.ID {
		t.Fatalf("expected due retrying task, got %#v", got)
	}
	if firstEntry {
		t.Fatal("re-claim of a retrying task is not a first processing entry")
	}
	if got.NextAttempt != nil {
		t.Fatal("expected next_attempt_at cleared on claim")
	}
	if got.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", got.RetryCount)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewSingleTask(t, store, "/uploads/a.mp4", "a")
	second := testsupport.NewSingleTask(t, store, "/uploads/b.mp4", "b")

	second.Status = queue.StatusProcessing
	if err := store.Update(ctx, second); err != nil {
		t.Fatalf("Update: %v", err)
	}
	second.SetFailed("boom")
	if err := store.Update(ctx, second); err != nil {
		t.Fatalf("Update: %v", err)
	}

	failed, err := store.List(ctx, queue.StatusFailed)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != second.ID {
		t.Fatalf("unexpected failed list: %#v", failed)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(all))
	}
}

func TestSweepRemovesOldTerminalTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	old := testsupport.NewSingleTask(t, store, "/uploads/old.mp4", "a")
	old.Status = queue.StatusProcessing
	if err := store.Update(ctx, old); err != nil {
		t.Fatalf("Update: %v", err)
	}
	old.Status = queue.StatusCompleted
	if err := store.Update(ctx, old); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fresh := testsupport.NewSingleTask(t, store, "/uploads/fresh.mp4", "b")

	// Retention of zero treats every terminal task as expired. The fresh
	// pending task must survive regardless of age.
	removed, err := store.Sweep(ctx, 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("swept %d tasks, want 1", removed)
	}

	if got, err := store.GetByID(ctx, old.ID); err != nil || got != nil {
		t.Fatalf("expected completed task removed, got %#v err=%v", got, err)
	}
	if got, err := store.GetByID(ctx, fresh.ID); err != nil || got == nil {
		t.Fatalf("expected pending task retained, got %#v err=%v", got, err)
	}
}

func TestRetryFailedRequeues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.NewSingleTask(t, store, "/uploads/a.mp4", "a")
	task.Status = queue.StatusProcessing
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}
	task.RetryCount = 3
	task.SetFailed("exhausted")
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	count, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if count != 1 {
		t.Fatalf("requeued %d tasks, want 1", count)
	}

	fetched, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Status != queue.StatusPending || fetched.RetryCount != 0 {
		t.Fatalf("unexpected requeued task: %#v", fetched)
	}
	if fetched.CompletedAt != nil {
		t.Fatal("expected CompletedAt cleared on requeue")
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.NewSingleTask(t, store, "/uploads/a.mp4", "a")
	if _, _, err := store.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing: %v", err)
	}
	if count != 1 {
		t.Fatalf("reset %d tasks, want 1", count)
	}

	fetched, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Status != queue.StatusPending || fetched.StartedAt != nil {
		t.Fatalf("unexpected reset task: %#v", fetched)
	}
}

func TestHealthAggregatesCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewSingleTask(t, store, "/uploads/a.mp4", "a")
	b := testsupport.NewSingleTask(t, store, "/uploads/b.mp4", "b")
	b.Status = queue.StatusProcessing
	if err := store.Update(ctx, b); err != nil {
		t.Fatalf("Update: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.Processing != 1 {
		t.Fatalf("unexpected health summary: %+v", health)
	}
}
