package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"stamper/internal/config"
	"stamper/internal/deps"
	"stamper/internal/hooks"
	"stamper/internal/logging"
	"stamper/internal/queue"
	"stamper/internal/services/ffmpeg"
	"stamper/internal/workflow"
)

// Daemon coordinates the background processing services and enforces
// single-instance execution through a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	reaper   *workflow.Reaper
	notifier hooks.Service
	engine   ffmpeg.Client
	logPath  string

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	cancel   context.CancelFunc
	reaperWG sync.WaitGroup
	api      *apiServer
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	TaskDBPath   string
	LockFilePath string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, notifier hooks.Service, engine ffmpeg.Client) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}
	if notifier == nil {
		notifier = hooks.NewService(cfg, logger)
	}
	if engine == nil {
		engine = ffmpeg.NewCLI(cfg)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "stamperd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		reaper:   workflow.NewReaper(cfg, store, logger),
		notifier: notifier,
		engine:   engine,
		logPath:  filepath.Join(cfg.Paths.LogDir, "stamper.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, recovers abandoned work, and launches the
// workflow manager and retention reaper.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another stamper daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)

	if reset, err := d.store.ResetStuckProcessing(runCtx); err != nil {
		d.logger.Warn("failed to reset stuck tasks", logging.Error(err))
	} else if reset > 0 {
		d.logger.Info("recovered tasks abandoned mid-processing", logging.Int64("reset", reset))
	}

	if err := d.workflow.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start workflow: %w", err)
	}

	d.cancel = cancel
	d.reaperWG.Add(1)
	go func() {
		defer d.reaperWG.Done()
		d.reaper.Run(runCtx)
	}()

	if srv, srvErr := newAPIServer(d.cfg, d, d.logger); srvErr != nil {
		d.logger.Warn("api server setup failed", logging.Error(srvErr))
	} else if srv != nil {
		if startErr := srv.start(runCtx); startErr != nil {
			d.logger.Warn("api server start failed", logging.Error(startErr))
		} else {
			d.api = srv
		}
	}

	d.running.Store(true)
	d.logger.Info("stamper daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
		d.api = nil
	}
	d.workflow.Stop()
	d.reaperWG.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("stamper daemon stopped")
}

// APIAddr reports the bound address of the HTTP API listener, or an
// empty string when the API is disabled or not started.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// EnqueueParams describes a watermark request arriving over HTTP or IPC.
type EnqueueParams struct {
	Kind     queue.Kind
	Paths    []string
	Text     string
	Position string
	Style    ffmpeg.Style
}

// Enqueue validates a watermark request and creates a pending task. Retry
// parameters come from the workflow configuration and are fixed at creation.
func (d *Daemon) Enqueue(ctx context.Context, params EnqueueParams) (*queue.Task, error) {
	if d.store == nil {
		return nil, errors.New("task store unavailable")
	}

	paths := make([]string, 0, len(params.Paths))
	for _, path := range params.Paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		abs, err := filepath.Abs(trimmed)
		if err != nil {
			return nil, fmt.Errorf("resolve input path: %w", err)
		}
		paths = append(paths, abs)
	}
	if len(paths) == 0 {
		return nil, errors.New("at least one input path is required")
	}

	text := strings.TrimSpace(params.Text)
	if text == "" {
		text = "WATERMARK"
	}
	position := strings.TrimSpace(params.Position)
	if position == "" {
		position = "top-left"
	}
	if !ffmpeg.ValidPosition(position) {
		return nil, fmt.Errorf("invalid position %q, must be one of: %s", position, strings.Join(ffmpeg.Positions, ", "))
	}
	if err := validateStyle(params.Style); err != nil {
		return nil, err
	}

	if params.Kind == queue.KindSingle {
		// Batch inputs are checked per file during processing; single tasks
		// reject obvious mistakes up front.
		info, err := os.Stat(paths[0])
		if err != nil {
			return nil, fmt.Errorf("stat input file: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("input path %q is a directory", paths[0])
		}
		if !ffmpeg.SupportedFile(paths[0]) {
			return nil, fmt.Errorf("unsupported file extension %q", filepath.Ext(paths[0]))
		}
	}

	styleJSON := ""
	if params.Style != (ffmpeg.Style{}) {
		encoded, err := json.Marshal(params.Style)
		if err != nil {
			return nil, fmt.Errorf("encode style overrides: %w", err)
		}
		styleJSON = string(encoded)
	}

	task, err := d.store.NewTask(ctx, queue.NewTaskParams{
		Kind:       params.Kind,
		InputPaths: paths,
		Text:       text,
		Position:   position,
		StyleJSON:  styleJSON,
		MaxRetries: d.cfg.Workflow.MaxRetries,
		RetryDelay: d.cfg.Workflow.RetryDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue task: %w", err)
	}
	d.logger.Info("task queued",
		logging.String(logging.FieldTaskID, task.ID),
		logging.String("kind", string(task.Kind)),
		logging.Int("inputs", len(paths)),
	)
	return task, nil
}

func validateStyle(style ffmpeg.Style) error {
	if style.FontColor != "" && !config.IsValidHexColor(style.FontColor) {
		return fmt.Errorf("invalid font_color %q, must be a 6-digit hex code", style.FontColor)
	}
	if style.BorderColor != "" && !config.IsValidHexColor(style.BorderColor) {
		return fmt.Errorf("invalid border_color %q, must be a 6-digit hex code", style.BorderColor)
	}
	if style.FontSize < 0 || style.Padding < 0 || style.BorderThickness < 0 {
		return errors.New("style dimensions must not be negative")
	}
	return nil
}

// Sample extracts a frame from the midpoint of a video and watermarks it
// synchronously, returning the path of the rendered image.
func (d *Daemon) Sample(ctx context.Context, input, text, position string, style ffmpeg.Style) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", errors.New("input path is required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve input path: %w", err)
	}
	if text = strings.TrimSpace(text); text == "" {
		text = "WATERMARK"
	}
	if position = strings.TrimSpace(position); position == "" {
		position = "top-left"
	}
	if !ffmpeg.ValidPosition(position) {
		return "", fmt.Errorf("invalid position %q, must be one of: %s", position, strings.Join(ffmpeg.Positions, ", "))
	}
	if err := validateStyle(style); err != nil {
		return "", err
	}

	frame, err := d.engine.SampleFrame(ctx, abs)
	if err != nil {
		return "", err
	}
	defer os.Remove(frame)

	return d.engine.Apply(ctx, ffmpeg.Request{
		InputPath: frame,
		Text:      text,
		Position:  position,
		Style:     style,
	})
}

// ListTasks returns tasks filtered by optional statuses.
func (d *Daemon) ListTasks(ctx context.Context, statuses []queue.Status) ([]*queue.Task, error) {
	if d.store == nil {
		return nil, errors.New("task store unavailable")
	}
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.List(ctx, statuses...)
}

// GetTask returns a single task by id, or nil when it does not exist.
func (d *Daemon) GetTask(ctx context.Context, id string) (*queue.Task, error) {
	if d.store == nil {
		return nil, errors.New("task store unavailable")
	}
	return d.store.GetByID(ctx, id)
}

// ClearTasks removes all tasks.
func (d *Daemon) ClearTasks(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("task store unavailable")
	}
	return d.store.Clear(ctx)
}

// ClearCompleted removes only completed tasks.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("task store unavailable")
	}
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes only failed tasks.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("task store unavailable")
	}
	return d.store.ClearFailed(ctx)
}

// ResetStuck transitions in-flight tasks back to pending for re-claim.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("task store unavailable")
	}
	return d.store.ResetStuckProcessing(ctx)
}

// RetryFailed requeues failed tasks with a fresh retry budget.
func (d *Daemon) RetryFailed(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("task store unavailable")
	}
	return d.store.RetryFailed(ctx)
}

// Sweep removes terminal tasks past the retention window immediately.
func (d *Daemon) Sweep(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("task store unavailable")
	}
	retention := time.Duration(d.cfg.Workflow.TaskRetentionHours) * time.Hour
	return d.store.Sweep(ctx, retention)
}

// TaskHealth returns aggregate task diagnostics.
func (d *Daemon) TaskHealth(ctx context.Context) (queue.HealthSummary, error) {
	if d.store == nil {
		return queue.HealthSummary{}, errors.New("task store unavailable")
	}
	return d.store.Health(ctx)
}

// TestHooks fires every configured hook target with a synthetic payload.
func (d *Daemon) TestHooks(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Hooks.Start) == "" &&
		strings.TrimSpace(d.cfg.Hooks.Complete) == "" &&
		strings.TrimSpace(d.cfg.Hooks.Error) == "" {
		return false, "no hooks configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "hook delivery failed", err
	}
	return true, "test hooks delivered", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary := d.workflow.Status(ctx)
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     summary,
		TaskDBPath:   d.store.Path(),
		LockFilePath: d.lockPath,
		Dependencies: deps.CheckBinaries(deps.Required(d.cfg)),
	}
}
