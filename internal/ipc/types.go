package ipc

import (
	"stamper/internal/api"
	"stamper/internal/services/ffmpeg"
)

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon workflow.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// Task mirrors the HTTP API task DTO for internal IPC callers.
type Task = api.Task

// DependencyStatus describes availability of an external dependency.
type DependencyStatus = api.DependencyStatus

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running      bool               `json:"running"`
	TaskStats    map[string]int     `json:"task_stats"`
	LastError    string             `json:"last_error"`
	LastTask     *Task              `json:"last_task"`
	LockPath     string             `json:"lock_path"`
	TaskDBPath   string             `json:"task_db_path"`
	Workers      int                `json:"workers"`
	Dependencies []DependencyStatus `json:"dependencies"`
	PID          int                `json:"pid"`
}

// EnqueueRequest submits a watermark task. Kind selects single or batch
// semantics; single tasks use exactly one path.
type EnqueueRequest struct {
	Kind     string       `json:"kind"`
	Paths    []string     `json:"paths"`
	Text     string       `json:"text"`
	Position string       `json:"position"`
	Style    ffmpeg.Style `json:"style"`
}

// EnqueueResponse contains the created task.
type EnqueueResponse struct {
	Task Task `json:"task"`
}

// SampleRequest renders a watermark preview frame without queueing work.
type SampleRequest struct {
	Path     string       `json:"path"`
	Text     string       `json:"text"`
	Position string       `json:"position"`
	Style    ffmpeg.Style `json:"style"`
}

// SampleResponse reports the rendered preview location.
type SampleResponse struct {
	OutputPath string `json:"output_path"`
}

// TaskListRequest filters task listing by status.
type TaskListRequest struct {
	Statuses []string `json:"statuses"`
}

// TaskListResponse contains task entries.
type TaskListResponse struct {
	Tasks []Task `json:"tasks"`
}

// TaskDescribeRequest fetches a single task by id.
type TaskDescribeRequest struct {
	ID string `json:"id"`
}

// TaskDescribeResponse contains a single task entry.
type TaskDescribeResponse struct {
	Task Task `json:"task"`
}

// TaskClearRequest removes all tasks.
type TaskClearRequest struct{}

// TaskClearResponse reports number of removed entries.
type TaskClearResponse struct {
	Removed int64 `json:"removed"`
}

// TaskClearCompletedRequest removes completed tasks.
type TaskClearCompletedRequest struct{}

// TaskClearCompletedResponse reports number of removed entries.
type TaskClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// TaskClearFailedRequest removes failed tasks.
type TaskClearFailedRequest struct{}

// TaskClearFailedResponse reports number of removed entries.
type TaskClearFailedResponse struct {
	Removed int64 `json:"removed"`
}

// TaskResetRequest resets tasks stuck in processing.
type TaskResetRequest struct{}

// TaskResetResponse reports number of tasks reset.
type TaskResetResponse struct {
	Updated int64 `json:"updated"`
}

// TaskRetryRequest requeues all failed tasks.
type TaskRetryRequest struct{}

// TaskRetryResponse reports number of requeued tasks.
type TaskRetryResponse struct {
	Updated int64 `json:"updated"`
}

// TaskSweepRequest removes terminal tasks older than the retention window.
type TaskSweepRequest struct{}

// TaskSweepResponse reports number of removed entries.
type TaskSweepResponse struct {
	Removed int64 `json:"removed"`
}

// TaskHealthRequest fetches aggregate diagnostics.
type TaskHealthRequest struct{}

// TaskHealthResponse reports task database health information.
type TaskHealthResponse struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Retrying   int `json:"retrying"`
	Failed     int `json:"failed"`
	Completed  int `json:"completed"`
}

// TestHooksRequest triggers a hook delivery test.
type TestHooksRequest struct{}

// TestHooksResponse reports hook test outcome.
type TestHooksResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
