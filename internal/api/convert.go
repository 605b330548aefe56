package api

import (
	"encoding/json"

	"stamper/internal/deps"
	"stamper/internal/queue"
)

// FromTask converts a queue record to its API representation.
func FromTask(task *queue.Task) Task {
	if task == nil {
		return Task{}
	}

	dto := Task{
		ID:           task.ID,
		Kind:         string(task.Kind),
		Label:        task.Label,
		Status:       string(task.Status),
		InputPaths:   append([]string(nil), task.InputPaths...),
		Text:         task.Text,
		Position:     task.Position,
		ErrorMessage: task.ErrorMessage,
		RetryCount:   task.RetryCount,
		MaxRetries:   task.MaxRetries,
	}
	if raw := task.StyleJSON; raw != "" {
		dto.Style = json.RawMessage(raw)
	}
	if raw := task.ResultJSON; raw != "" {
		dto.Result = json.RawMessage(raw)
	}
	if task.NextAttempt != nil {
		dto.NextAttempt = task.NextAttempt.UTC().Format(dateTimeFormat)
	}
	if !task.CreatedAt.IsZero() {
		dto.CreatedAt = task.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !task.UpdatedAt.IsZero() {
		dto.UpdatedAt = task.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	if task.StartedAt != nil {
		dto.StartedAt = task.StartedAt.UTC().Format(dateTimeFormat)
	}
	if task.CompletedAt != nil {
		dto.CompletedAt = task.CompletedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromTasks converts a slice of queue records into API DTOs.
func FromTasks(tasks []*queue.Task) []Task {
	if len(tasks) == 0 {
		return nil
	}
	out := make([]Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, FromTask(task))
	}
	return out
}

// FromDependencies converts dependency check results into API DTOs.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
		})
	}
	return out
}

// StatsFromHealth converts a queue health summary into the counts payload.
func StatsFromHealth(health queue.HealthSummary) TaskStats {
	return TaskStats{Counts: map[string]int{
		"total":      health.Total,
		"pending":    health.Pending,
		"processing": health.Processing,
		"retrying":   health.Retrying,
		"completed":  health.Completed,
		"failed":     health.Failed,
	}}
}
