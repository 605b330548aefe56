package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"stamper/internal/api"
	"stamper/internal/config"
	"stamper/internal/logging"
	"stamper/internal/queue"
)

const userAgent = "Stamper/0.1.0"

// Event names carried in hook payloads.
const (
	EventStart    = "start"
	EventComplete = "complete"
	EventError    = "error"
)

var commandContext = exec.CommandContext

// Service defines the lifecycle notification surface exposed to the workflow.
// Hook failures never propagate to callers; a broken hook must not affect
// task processing.
type Service interface {
	NotifyTaskStarted(ctx context.Context, task *queue.Task)
	NotifyTaskCompleted(ctx context.Context, task *queue.Task)
	NotifyTaskFailed(ctx context.Context, task *queue.Task)
	TestNotification(ctx context.Context) error
}

// NewService builds a hook dispatcher from the configured targets. When no
// target is configured, a noop implementation is returned.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	start := strings.TrimSpace(cfg.Hooks.Start)
	complete := strings.TrimSpace(cfg.Hooks.Complete)
	errTarget := strings.TrimSpace(cfg.Hooks.Error)
	if start == "" && complete == "" && errTarget == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Hooks.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &dispatcher{
		targets: map[string]string{
			EventStart:    start,
			EventComplete: complete,
			EventError:    errTarget,
		},
		client: &http.Client{Timeout: timeout},
		logger: logging.NewComponentLogger(logger, "hooks"),
	}
}

type dispatcher struct {
	targets map[string]string
	client  *http.Client
	logger  *slog.Logger
}

func (d *dispatcher) NotifyTaskStarted(ctx context.Context, task *queue.Task) {
	d.dispatch(ctx, EventStart, task)
}

func (d *dispatcher) NotifyTaskCompleted(ctx context.Context, task *queue.Task) {
	d.dispatch(ctx, EventComplete, task)
}

func (d *dispatcher) NotifyTaskFailed(ctx context.Context, task *queue.Task) {
	d.dispatch(ctx, EventError, task)
}

// TestNotification fires every configured target with a synthetic payload and
// reports the first failure, so operators can verify wiring before relying
// on it.
func (d *dispatcher) TestNotification(ctx context.Context) error {
	probe := &queue.Task{
		ID:     "00000000-0000-0000-0000-000000000000",
		Kind:   queue.KindSingle,
		Label:  "Hook Test",
		Status: queue.StatusPending,
	}
	var firstErr error
	for _, event := range []string{EventStart, EventComplete, EventError} {
		target := d.targets[event]
		if target == "" {
			continue
		}
		if err := d.deliver(ctx, event, target, probe); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s hook: %w", event, err)
		}
	}
	return firstErr
}

func (d *dispatcher) dispatch(ctx context.Context, event string, task *queue.Task) {
	target := d.targets[event]
	if target == "" || task == nil {
		return
	}
	if err := d.deliver(ctx, event, target, task); err != nil {
		d.logger.Warn("hook delivery failed",
			logging.String(logging.FieldEvent, event),
			logging.String(logging.FieldTaskID, task.ID),
			logging.Error(err))
	}
}

func (d *dispatcher) deliver(ctx context.Context, event, target string, task *queue.Task) error {
	payload, err := json.Marshal(api.HookEvent{Event: event, Task: api.FromTask(task)})
	if err != nil {
		return fmt.Errorf("marshal hook payload: %w", err)
	}

	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return d.post(ctx, target, payload)
	}
	return d.execute(ctx, target, payload)
}

func (d *dispatcher) post(ctx context.Context, target string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build hook request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send hook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("hook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (d *dispatcher) execute(ctx context.Context, target string, payload []byte) error {
	cmd := commandContext(ctx, target, string(payload)) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("run hook program: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyTaskStarted(context.Context, *queue.Task)   {}
func (noopService) NotifyTaskCompleted(context.Context, *queue.Task) {}
func (noopService) NotifyTaskFailed(context.Context, *queue.Task)    {}
func (noopService) TestNotification(context.Context) error           { return nil }

var _ Service = (*dispatcher)(nil)
var _ Service = noopService{}
