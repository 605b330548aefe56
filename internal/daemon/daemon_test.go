package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"stamper/internal/config"
	"stamper/internal/daemon"
	"stamper/internal/logging"
	"stamper/internal/queue"
	"stamper/internal/services/ffmpeg"
	"stamper/internal/testsupport"
	"stamper/internal/workflow"
)

type stubEngine struct {
	mu      sync.Mutex
	applied []ffmpeg.Request
	frames  []string
}

func (s *stubEngine) Apply(ctx context.Context, req ffmpeg.Request) (string, error) {
	s.mu.Lock()
	s.applied = append(s.applied, req)
	s.mu.Unlock()
	output := req.OutputPath
	if output == "" {
		output = req.InputPath + ".out"
	}
	if err := os.WriteFile(output, []byte("stub"), 0o644); err != nil {
		return "", err
	}
	return output, nil
}

func (s *stubEngine) SampleFrame(ctx context.Context, inputPath string) (string, error) {
	frame := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "_frame.jpg"
	if err := os.WriteFile(frame, []byte("frame"), 0o644); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()
	return frame, nil
}

func (s *stubEngine) requests() []ffmpeg.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ffmpeg.Request(nil), s.applied...)
}

func newTestDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *stubEngine) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	engine := &stubEngine{}
	wf := workflow.NewManagerWith(cfg, store, logger, nil, engine)
	d, err := daemon.New(cfg, store, logger, wf, nil, engine)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})
	return d, engine
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("unexpected pid %d", status.PID)
	}
	if status.TaskDBPath == "" || status.LockFilePath == "" {
		t.Fatalf("expected populated paths, got %+v", status)
	}
	if d.APIAddr() == "" {
		t.Fatal("expected api server to bind an address")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to report stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _ := newTestDaemon(t, cfg)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start first: %v", err)
	}

	second, _ := newTestDaemon(t, cfg)
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected second start to fail while lock is held")
	} else if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("expected second start to succeed after lock release: %v", err)
	}
}

func TestEnqueueSingleAppliesDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)

	input := filepath.Join(cfg.Paths.UploadDir, "movie.mp4")
	testsupport.WriteFile(t, input, 512)

	task, err := d.Enqueue(context.Background(), daemon.EnqueueParams{
		Kind:  queue.KindSingle,
		Paths: []string{input},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if task.Status != queue.StatusPending {
		t.Fatalf("unexpected status %s", task.Status)
	}
	if task.Text != "WATERMARK" {
		t.Fatalf("expected default text, got %q", task.Text)
	}
	if task.Position != "top-left" {
		t.Fatalf("expected default position, got %q", task.Position)
	}
	if task.MaxRetries != cfg.Workflow.MaxRetries {
		t.Fatalf("expected retry budget %d, got %d", cfg.Workflow.MaxRetries, task.MaxRetries)
	}
}

func TestEnqueueSingleRejectsBadInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)
	ctx := context.Background()

	if _, err := d.Enqueue(ctx, daemon.EnqueueParams{Kind: queue.KindSingle, Paths: []string{filepath.Join(cfg.Paths.UploadDir, "missing.mp4")}}); err == nil {
		t.Fatal("expected error for missing file")
	}

	doc := filepath.Join(cfg.Paths.UploadDir, "notes.txt")
	testsupport.WriteFile(t, doc, 16)
	if _, err := d.Enqueue(ctx, daemon.EnqueueParams{Kind: queue.KindSingle, Paths: []string{doc}}); err == nil {
		t.Fatal("expected error for unsupported extension")
	}

	input := filepath.Join(cfg.Paths.UploadDir, "clip.mkv")
	testsupport.WriteFile(t, input, 64)
	if _, err := d.Enqueue(ctx, daemon.EnqueueParams{Kind: queue.KindSingle, Paths: []string{input}, Position: "sideways"}); err == nil {
		t.Fatal("expected error for unknown position")
	}
	if _, err := d.Enqueue(ctx, daemon.EnqueueParams{Kind: queue.KindSingle, Paths: []string{input}, Style: ffmpeg.Style{FontColor: "magenta"}}); err == nil {
		t.Fatal("expected error for invalid font color")
	}
}

func TestEnqueueBatchDefersInputChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)

	// Batch inputs are validated per file at processing time so one bad
	// path cannot block the rest of the batch.
	task, err := d.Enqueue(context.Background(), daemon.EnqueueParams{
		Kind:  queue.KindBatch,
		Paths: []string{filepath.Join(cfg.Paths.UploadDir, "missing.mp4"), filepath.Join(cfg.Paths.UploadDir, "also-missing.png")},
		Text:  "Demo",
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if len(task.InputPaths) != 2 {
		t.Fatalf("expected 2 inputs, got %d", len(task.InputPaths))
	}
}

func TestSampleRendersAndRemovesFrame(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, engine := newTestDaemon(t, cfg)

	input := filepath.Join(cfg.Paths.UploadDir, "preview.mp4")
	testsupport.WriteFile(t, input, 256)

	output, err := d.Sample(context.Background(), input, "Sample", "center", ffmpeg.Style{})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if output == "" {
		t.Fatal("expected sample output path")
	}
	reqs := engine.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 apply call, got %d", len(reqs))
	}
	if reqs[0].Position != "center" {
		t.Fatalf("unexpected position %q", reqs[0].Position)
	}
	engine.mu.Lock()
	frames := append([]string(nil), engine.frames...)
	engine.mu.Unlock()
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if _, err := os.Stat(frames[0]); !os.IsNotExist(err) {
		t.Fatalf("expected frame %s to be removed", frames[0])
	}
}

func TestTestHooksWithoutTargets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newTestDaemon(t, cfg)

	sent, message, err := d.TestHooks(context.Background())
	if err != nil {
		t.Fatalf("TestHooks: %v", err)
	}
	if sent {
		t.Fatal("expected no hooks to be sent")
	}
	if !strings.Contains(message, "no hooks configured") {
		t.Fatalf("unexpected message %q", message)
	}
}

func TestMaintenanceHelpers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	engine := &stubEngine{}
	wf := workflow.NewManagerWith(cfg, store, logger, nil, engine)
	d, err := daemon.New(cfg, store, logger, wf, nil, engine)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	ctx := context.Background()

	input := filepath.Join(cfg.Paths.UploadDir, "one.mp4")
	testsupport.WriteFile(t, input, 64)
	task := testsupport.NewSingleTask(t, store, input, "Demo")
	task.Status = queue.StatusProcessing
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}
	task.SetFailed("boom")
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	requeued, err := d.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if requeued != 1 {
		t.Fatalf("expected 1 requeued task, got %d", requeued)
	}

	cleared, err := d.ClearTasks(ctx)
	if err != nil {
		t.Fatalf("ClearTasks: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared task, got %d", cleared)
	}

	health, err := d.TaskHealth(ctx)
	if err != nil {
		t.Fatalf("TaskHealth: %v", err)
	}
	if health.Total != 0 {
		t.Fatalf("expected empty queue, got %d", health.Total)
	}
}
