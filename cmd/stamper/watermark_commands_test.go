package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stamper/internal/api"
	"stamper/internal/testsupport"
)

func TestAddCommandQueuesSingleTask(t *testing.T) {
	env := setupCLITestEnv(t)

	input := filepath.Join(env.cfg.Paths.UploadDir, "movie.mp4")
	testsupport.WriteFile(t, input, 2048)

	out, _, err := runCLI(t, []string{"add", input, "--text", "Draft", "--position", "center"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	requireContains(t, out, "Queued task")

	tasks, err := env.store.List(context.Background())
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if tasks[0].Text != "Draft" || tasks[0].Position != "center" {
		t.Fatalf("unexpected task fields: %+v", tasks[0])
	}
}

func TestAddCommandJSONOutput(t *testing.T) {
	env := setupCLITestEnv(t)

	input := filepath.Join(env.cfg.Paths.UploadDir, "clip.mkv")
	testsupport.WriteFile(t, input, 1024)

	out, _, err := runCLI(t, []string{"add", input, "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("add --json: %v", err)
	}

	var task api.Task
	if err := json.Unmarshal([]byte(out), &task); err != nil {
		t.Fatalf("decode task JSON: %v\noutput: %s", err, out)
	}
	if task.ID == "" || task.Status != "pending" {
		t.Fatalf("unexpected task: %+v", task)
	}
}

func TestAddCommandRejectsMissingFile(t *testing.T) {
	env := setupCLITestEnv(t)

	missing := filepath.Join(env.cfg.Paths.UploadDir, "absent.mp4")
	if _, _, err := runCLI(t, []string{"add", missing}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected error for missing input file")
	}
}

func TestBatchCommandQueuesAllPaths(t *testing.T) {
	env := setupCLITestEnv(t)

	present := filepath.Join(env.cfg.Paths.UploadDir, "one.mp4")
	testsupport.WriteFile(t, present, 1024)
	absent := filepath.Join(env.cfg.Paths.UploadDir, "two.mp4")

	out, _, err := runCLI(t, []string{"batch", present, absent}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	requireContains(t, out, "with 2 files")
}

func TestSampleCommandWritesFrame(t *testing.T) {
	env := setupCLITestEnv(t)

	input := filepath.Join(env.cfg.Paths.UploadDir, "movie.mp4")
	testsupport.WriteFile(t, input, 4096)

	out, _, err := runCLI(t, []string{"sample", input, "--position", "bottom-right"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	requireContains(t, out, "Sample written to")

	samplePath := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(out), "Sample written to"))
	if _, err := os.Stat(samplePath); err != nil {
		t.Fatalf("expected sample output at %s: %v", samplePath, err)
	}
}
