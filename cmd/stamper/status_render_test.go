package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"stamper/internal/ipc"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Stamper", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Stamper:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Stamper", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	deps := []ipc.DependencyStatus{
		{Name: "FFmpeg", Available: true, Command: "ffmpeg"},
		{Name: "FFprobe", Available: false, Detail: "not found in PATH"},
	}
	lines := dependencyLines(deps, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[OK] Ready (command: ffmpeg)") {
		t.Fatalf("expected ready line, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR] not found in PATH") {
		t.Fatalf("expected error line, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "Missing dependencies") || !strings.Contains(lines[2], "FFprobe") {
		t.Fatalf("expected missing summary, got %q", lines[2])
	}
}

func TestDependencyLinesEmpty(t *testing.T) {
	lines := dependencyLines(nil, false)
	if len(lines) != 1 || !strings.Contains(lines[0], "No dependency checks configured") {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestBuildTaskStatusRows(t *testing.T) {
	rows := buildTaskStatusRows(map[string]int{
		"pending":   2,
		"failed":    1,
		"completed": 0,
		"archived":  3,
	})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "pending" || rows[0][1] != "2" {
		t.Fatalf("expected pending row first, got %v", rows[0])
	}
	if rows[len(rows)-1][0] != "archived" {
		t.Fatalf("expected unknown status last, got %v", rows[len(rows)-1])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected non-file writer to disable color")
	}
}

func TestRenderSectionHeader(t *testing.T) {
	lines := renderSectionHeader("Daemon", false)
	if len(lines) != 2 {
		t.Fatalf("expected header and rule, got %v", lines)
	}
	if lines[0] != "== Daemon ==" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[1] != strings.Repeat("-", len(lines[0])) {
		t.Fatalf("unexpected rule %q", lines[1])
	}
}
