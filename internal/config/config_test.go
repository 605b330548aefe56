package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stamper/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing config")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Watermark.FontSize != 46 {
		t.Fatalf("expected default font size 46, got %d", cfg.Watermark.FontSize)
	}
	if cfg.Workflow.MaxRetries != 3 || cfg.Workflow.RetryDelay != 5 {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Workflow)
	}
	if cfg.Workflow.TaskRetentionHours != 24 {
		t.Fatalf("expected 24h retention default, got %d", cfg.Workflow.TaskRetentionHours)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`upload_dir = "` + filepath.Join(dir, "up") + `"`,
		`output_dir = "` + filepath.Join(dir, "out") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"[watermark]",
		`font_color = "#00ff00"`,
		"[workflow]",
		"workers = 4",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Watermark.FontColor != "00ff00" {
		t.Fatalf("expected leading # stripped, got %q", cfg.Watermark.FontColor)
	}
	if cfg.Workflow.Workers != 4 {
		t.Fatalf("expected 4 workers, got %d", cfg.Workflow.Workers)
	}
	if cfg.Workflow.QueuePollInterval != 2 {
		t.Fatalf("expected poll interval default, got %d", cfg.Workflow.QueuePollInterval)
	}
}

func TestLoadRejectsBadHexColor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[watermark]\nfont_color = \"not-a-color\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for invalid font color")
	}
}

func TestIsValidHexColor(t *testing.T) {
	valid := []string{"FFC0CB", "000000", "a1B2c3"}
	for _, v := range valid {
		if !config.IsValidHexColor(v) {
			t.Errorf("expected %q to be valid", v)
		}
	}
	invalid := []string{"", "fff", "GGGGGG", "#FFC0CB", "FFC0CB00"}
	for _, v := range invalid {
		if config.IsValidHexColor(v) {
			t.Errorf("expected %q to be invalid", v)
		}
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load of sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestHookEnvironmentFallback(t *testing.T) {
	t.Setenv("ERROR_HOOK", "https://hooks.example/err")
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Hooks.Error != "https://hooks.example/err" {
		t.Fatalf("expected env fallback for error hook, got %q", cfg.Hooks.Error)
	}
}
