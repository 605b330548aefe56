package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"stamper/internal/logging"
	"stamper/internal/queue"
	"stamper/internal/retry"
	"stamper/internal/services"
	"stamper/internal/services/ffmpeg"
)

func (m *Manager) processTask(ctx context.Context, logger *slog.Logger, task *queue.Task, firstEntry bool) error {
	taskLogger := logger.With(logging.String(logging.FieldTaskID, task.ID))

	if firstEntry {
		m.notifier.NotifyTaskStarted(ctx, task)
		taskLogger.Info("task started",
			logging.String("kind", string(task.Kind)),
			logging.Int("inputs", len(task.InputPaths)),
		)
	} else {
		taskLogger.Info("task retry attempt",
			logging.Int("retry_count", task.RetryCount),
			logging.Int("max_retries", task.MaxRetries),
		)
	}

	switch task.Kind {
	case queue.KindBatch:
		return m.processBatch(ctx, taskLogger, task)
	default:
		return m.processSingle(ctx, taskLogger, task)
	}
}

// processSingle runs one watermark attempt. Failures either schedule another
// attempt through next_attempt_at or exhaust the retry budget and fail the
// task for good.
func (m *Manager) processSingle(ctx context.Context, logger *slog.Logger, task *queue.Task) error {
	outputPath, err := m.engine.Apply(ctx, m.engineRequest(task, task.InputPaths[0]))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return m.scheduleRetryOrFail(ctx, logger, task, err)
	}

	if err := task.SetResult(queue.SingleResult{OutputPath: outputPath, Progress: 100}); err != nil {
		return m.failTask(ctx, logger, task, err)
	}
	task.Status = queue.StatusCompleted
	task.ErrorMessage = ""
	if err := m.store.Update(ctx, task); err != nil {
		return fmt.Errorf("persist completed task: %w", err)
	}

	m.notifier.NotifyTaskCompleted(ctx, task)
	logger.Info("task completed", logging.String("output", outputPath))
	return nil
}

// processBatch watermarks every input with one attempt each, accumulating the
// aggregate as it goes. Per-file failures become skip entries; the batch
// itself fails only when persisting its state does.
func (m *Manager) processBatch(ctx context.Context, logger *slog.Logger, task *queue.Task) error {
	total := len(task.InputPaths)
	result, err := task.BatchResultPayload()
	if err != nil {
		// Unreadable prior aggregate; start over rather than abort.
		result = queue.BatchResult{}
	}
	result.TotalFiles = total

	attempted := len(result.Processed) + len(result.Skipped)
	for _, input := range task.InputPaths[attempted:] {
		if err := ctx.Err(); err != nil {
			return err
		}

		if reason := m.checkBatchInput(input); reason != "" {
			result.Skipped = append(result.Skipped, queue.BatchSkip{File: input, Reason: reason})
		} else if outputPath, applyErr := m.engine.Apply(ctx, m.engineRequest(task, input)); applyErr != nil {
			if errors.Is(applyErr, context.Canceled) {
				return applyErr
			}
			result.Skipped = append(result.Skipped, queue.BatchSkip{File: input, Reason: services.Message(applyErr)})
			logger.Warn("batch file skipped",
				logging.String("input", input),
				logging.Error(applyErr),
			)
		} else {
			result.Processed = append(result.Processed, queue.BatchFile{Input: input, Output: outputPath})
		}

		attempted++
		result.Progress = batchProgress(attempted, total)
		if err := task.SetResult(result); err != nil {
			return m.failTask(ctx, logger, task, err)
		}
		if err := m.store.Update(ctx, task); err != nil {
			return m.failTask(ctx, logger, task, fmt.Errorf("persist batch progress: %w", err))
		}
	}

	result.Progress = 100
	if err := task.SetResult(result); err != nil {
		return m.failTask(ctx, logger, task, err)
	}
	task.Status = queue.StatusCompleted
	task.ErrorMessage = ""
	if err := m.store.Update(ctx, task); err != nil {
		return fmt.Errorf("persist completed batch: %w", err)
	}

	m.notifier.NotifyTaskCompleted(ctx, task)
	logger.Info("batch completed",
		logging.Int("processed", len(result.Processed)),
		logging.Int("skipped", len(result.Skipped)),
	)
	return nil
}

func (m *Manager) checkBatchInput(input string) string {
	if info, err := os.Stat(input); err != nil || info.IsDir() {
		return "File not found"
	}
	if !ffmpeg.SupportedFile(input) {
		return "Unsupported file type"
	}
	if strings.Contains(input, ffmpeg.OutputSuffix) {
		return "Already watermarked"
	}
	return ""
}

// scheduleRetryOrFail consumes one unit of retry budget per engine failure.
// Every failure is retried until the budget runs out; the delay doubles with
// every retry already spent.
func (m *Manager) scheduleRetryOrFail(ctx context.Context, logger *slog.Logger, task *queue.Task, taskErr error) error {
	if retry.Retryable(task.RetryCount, task.MaxRetries) {
		delay := retry.Delay(time.Duration(task.RetryDelay)*time.Second, task.RetryCount)
		next := time.Now().UTC().Add(delay)
		task.RetryCount++
		task.Status = queue.StatusRetrying
		task.NextAttempt = &next
		task.ErrorMessage = services.Message(taskErr)
		if err := m.store.Update(ctx, task); err != nil {
			return fmt.Errorf("persist retry schedule: %w", err)
		}
		logger.Warn("task attempt failed, retry scheduled",
			logging.Error(taskErr),
			logging.Int("retry_count", task.RetryCount),
			logging.Duration("delay", delay),
		)
		return nil
	}
	return m.failTask(ctx, logger, task, taskErr)
}

func (m *Manager) failTask(ctx context.Context, logger *slog.Logger, task *queue.Task, taskErr error) error {
	task.SetFailed(services.Message(taskErr))
	if err := m.store.Update(ctx, task); err != nil {
		return fmt.Errorf("persist failed task: %w", err)
	}
	m.notifier.NotifyTaskFailed(ctx, task)
	logger.Error("task failed",
		logging.Error(taskErr),
		logging.Int("retry_count", task.RetryCount),
	)
	return nil
}

func (m *Manager) engineRequest(task *queue.Task, input string) ffmpeg.Request {
	req := ffmpeg.Request{
		InputPath: input,
		Text:      task.Text,
		Position:  task.Position,
	}
	if task.StyleJSON != "" {
		// Style overrides were validated at enqueue time; a decode failure
		// here just means defaults apply.
		_ = json.Unmarshal([]byte(task.StyleJSON), &req.Style)
	}
	return req
}

func batchProgress(attempted, total int) int {
	if total <= 0 {
		return 100
	}
	return attempted * 100 / total
}
