package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Task describes a watermark task in a transport-friendly format. The same
// shape is posted to lifecycle hooks, served over HTTP, and returned through
// the daemon IPC socket.
type Task struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	Label        string          `json:"label,omitempty"`
	Status       string          `json:"status"`
	InputPaths   []string        `json:"inputPaths"`
	Text         string          `json:"text,omitempty"`
	Position     string          `json:"position,omitempty"`
	Style        json.RawMessage `json:"style,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	RetryCount   int             `json:"retryCount"`
	MaxRetries   int             `json:"maxRetries"`
	NextAttempt  string          `json:"nextAttemptAt,omitempty"`
	CreatedAt    string          `json:"createdAt,omitempty"`
	UpdatedAt    string          `json:"updatedAt,omitempty"`
	StartedAt    string          `json:"startedAt,omitempty"`
	CompletedAt  string          `json:"completedAt,omitempty"`
}

// TaskListResponse wraps a collection of tasks for API responses.
type TaskListResponse struct {
	Tasks []Task `json:"tasks"`
}

// TaskResponse wraps a single task.
type TaskResponse struct {
	Task Task `json:"task"`
}

// TaskStats provides a normalized per-status count payload.
type TaskStats struct {
	Counts map[string]int `json:"counts"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	TaskDBPath   string             `json:"taskDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	Workers      int                `json:"workers"`
	TaskStats    TaskStats          `json:"taskStats"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// HookEvent is the envelope posted to lifecycle hook targets.
type HookEvent struct {
	Event string `json:"event"`
	Task  Task   `json:"task"`
}
