package api_test

import (
	"testing"
	"time"

	"stamper/internal/api"
	"stamper/internal/queue"
)

func TestFromTask(t *testing.T) {
	started := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	completed := started.Add(42 * time.Second)
	task := &queue.Task{
		ID:         "a4c135da-55aa-431c-9df3-3a1f2b4c5d6e",
		Kind:       queue.KindSingle,
		Label:      "Clip",
		Status:     queue.StatusCompleted,
		InputPaths: []string{"/uploads/clip.mp4"},
		Text:       "© 2026",
		Position:   "bottom-right",
		ResultJSON: `{"output_path":"/output/clip_watermarked.mp4","progress":100}`,
		RetryCount: 1,
		MaxRetries: 3,
		CreatedAt:  started.Add(-time.Minute),
		UpdatedAt:  completed,
	}
	task.StartedAt = &started
	task.CompletedAt = &completed

	dto := api.FromTask(task)
	if dto.ID != task.ID || dto.Status != "completed" || dto.Kind != "single" {
		t.Fatalf("unexpected dto identity fields: %+v", dto)
	}
	if len(dto.InputPaths) != 1 || dto.InputPaths[0] != "/uploads/clip.mp4" {
		t.Fatalf("unexpected input paths: %v", dto.InputPaths)
	}
	if string(dto.Result) != task.ResultJSON {
		t.Fatalf("expected raw result passthrough, got %s", dto.Result)
	}
	if dto.StartedAt == "" || dto.CompletedAt == "" {
		t.Fatalf("expected formatted timestamps, got %+v", dto)
	}
	if dto.NextAttempt != "" {
		t.Fatalf("expected empty next attempt, got %q", dto.NextAttempt)
	}
}

func TestFromTaskNil(t *testing.T) {
	dto := api.FromTask(nil)
	if dto.ID != "" || dto.Status != "" {
		t.Fatalf("expected zero dto for nil task, got %+v", dto)
	}
}

func TestStatsFromHealth(t *testing.T) {
	stats := api.StatsFromHealth(queue.HealthSummary{Total: 3, Pending: 1, Failed: 2})
	if stats.Counts["total"] != 3 || stats.Counts["pending"] != 1 || stats.Counts["failed"] != 2 {
		t.Fatalf("unexpected counts: %v", stats.Counts)
	}
	if stats.Counts["processing"] != 0 {
		t.Fatalf("expected zero processing count, got %v", stats.Counts)
	}
}
