package testsupport

import (
	"context"
	"testing"

	"stamper/internal/config"
	"stamper/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSingleTask creates a single-file watermark task for tests.
func NewSingleTask(t testing.TB, store *queue.Store, input, text string) *queue.Task {
	t.Helper()

	task, err := store.NewTask(context.Background(), queue.NewTaskParams{
		Kind:       queue.KindSingle,
		InputPaths: []string{input},
		Text:       text,
		MaxRetries: 3,
		RetryDelay: 5,
	})
	if err != nil {
		t.Fatalf("store.NewTask: %v", err)
	}
	return task
}

// NewBatchTask creates a batch watermark task for tests.
func NewBatchTask(t testing.TB, store *queue.Store, inputs []string, text string) *queue.Task {
	t.Helper()

	task, err := store.NewTask(context.Background(), queue.NewTaskParams{
		Kind:       queue.KindBatch,
		InputPaths: inputs,
		Text:       text,
		MaxRetries: 3,
		RetryDelay: 5,
	})
	if err != nil {
		t.Fatalf("store.NewTask: %v", err)
	}
	return task
}
