package queue

import (
	"encoding/json"
	"fmt"
)

// SingleResult is the result payload of a single-file task.
type SingleResult struct {
	OutputPath string `json:"output_path,omitempty"`
	Progress   int    `json:"progress"`
}

// BatchFile records one successfully watermarked input within a batch.
type BatchFile struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// BatchSkip records one input a batch skipped, with the failure reason.
type BatchSkip struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// BatchResult is the running aggregate payload of a batch task. Progress is
// floor(100 * attempted / total) and never decreases within one task.
type BatchResult struct {
	TotalFiles int         `json:"total_files"`
	Processed  []BatchFile `json:"processed"`
	Skipped    []BatchSkip `json:"skipped"`
	Progress   int         `json:"progress"`
}

// SetResult serializes the given payload into the task's result column.
func (t *Task) SetResult(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal task result: %w", err)
	}
	t.ResultJSON = string(data)
	return nil
}

// SingleResultPayload decodes the task result as a single-file payload.
func (t Task) SingleResultPayload() (SingleResult, error) {
	var result SingleResult
	if t.ResultJSON == "" {
		return result, nil
	}
	if err := json.Unmarshal([]byte(t.ResultJSON), &result); err != nil {
		return result, fmt.Errorf("decode single result: %w", err)
	}
	return result, nil
}

// BatchResultPayload decodes the task result as a batch aggregate.
func (t Task) BatchResultPayload() (BatchResult, error) {
	var result BatchResult
	if t.ResultJSON == "" {
		return result, nil
	}
	if err := json.Unmarshal([]byte(t.ResultJSON), &result); err != nil {
		return result, fmt.Errorf("decode batch result: %w", err)
	}
	return result, nil
}
