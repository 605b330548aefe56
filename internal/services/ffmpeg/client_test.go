package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"stamper/internal/config"
	"stamper/internal/services"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.UploadDir = filepath.Join(base, "uploads")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	return &cfg
}

func captureCommands(t *testing.T, mode string) *[][]string {
	t.Helper()
	var captured [][]string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		captured = append(captured, append([]string(nil), args...))
		if mode == "success" {
			// The last argument is the output path; fake its creation the
			// way a real ffmpeg run would.
			if len(args) > 0 {
				target := args[len(args)-1]
				_ = os.MkdirAll(filepath.Dir(target), 0o755)
				_ = os.WriteFile(target, []byte("media"), 0o644)
			}
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("FFMPEG_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &captured
}

func TestNewCLIWithBinary(t *testing.T) {
	cli := NewCLI(testConfig(t), WithBinary("/opt/ffmpeg"), WithProbeBinary("/opt/ffprobe"))
	if cli.binary != "/opt/ffmpeg" {
		t.Fatalf("expected binary override to be applied, got %q", cli.binary)
	}
	if cli.probeBinary != "/opt/ffprobe" {
		t.Fatalf("expected probe binary override to be applied, got %q", cli.probeBinary)
	}
}

func TestApplyRequiresInput(t *testing.T) {
	cli := NewCLI(testConfig(t))
	_, err := cli.Apply(context.Background(), Request{Text: "mark"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyRequiresText(t *testing.T) {
	cli := NewCLI(testConfig(t))
	_, err := cli.Apply(context.Background(), Request{InputPath: "/media/clip.mp4"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyRejectsUnknownPosition(t *testing.T) {
	cli := NewCLI(testConfig(t))
	_, err := cli.Apply(context.Background(), Request{
		InputPath: "/media/clip.mp4",
		Text:      "mark",
		Position:  "middle-ish",
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyRejectsUnsupportedExtension(t *testing.T) {
	cli := NewCLI(testConfig(t))
	_, err := cli.Apply(context.Background(), Request{InputPath: "/media/notes.txt", Text: "mark"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyVideoUsesCRFAndCopiesAudio(t *testing.T) {
	captured := captureCommands(t, "success")
	cli := NewCLI(testConfig(t))

	path, err := cli.Apply(context.Background(), Request{
		InputPath: "/media/clip.mp4",
		Text:      "mark",
		Position:  "bottom-right",
	})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if !strings.Contains(filepath.Base(path), OutputSuffix) {
		t.Fatalf("expected output name to carry suffix, got %q", path)
	}
	if filepath.Ext(path) != ".mp4" {
		t.Fatalf("expected output to keep input extension, got %q", path)
	}

	args := (*captured)[0]
	if findArg(args, "-crf") == -1 {
		t.Fatalf("expected -crf flag for video, got %v", args)
	}
	if idx := findArg(args, "-c:a"); idx == -1 || args[idx+1] != "copy" {
		t.Fatalf("expected audio copy for video, got %v", args)
	}
	if findArg(args, "-q:v") != -1 {
		t.Fatalf("did not expect image quality flag for video, got %v", args)
	}
}

func TestApplyImageUsesImageQuality(t *testing.T) {
	captured := captureCommands(t, "success")
	cli := NewCLI(testConfig(t))

	if _, err := cli.Apply(context.Background(), Request{
		InputPath: "/media/photo.jpg",
		Text:      "mark",
	}); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	args := (*captured)[0]
	if idx := findArg(args, "-q:v"); idx == -1 || args[idx+1] != "2" {
		t.Fatalf("expected image quality flag, got %v", args)
	}
	if findArg(args, "-crf") != -1 {
		t.Fatalf("did not expect -crf flag for image, got %v", args)
	}
}

func TestApplyBuildsDrawtextFilter(t *testing.T) {
	captured := captureCommands(t, "success")
	cfg := testConfig(t)
	cli := NewCLI(cfg)

	if _, err := cli.Apply(context.Background(), Request{
		InputPath: "/media/clip.mp4",
		Text:      "it's 10:30",
		Position:  "center",
	}); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	args := (*captured)[0]
	idx := findArg(args, "-vf")
	if idx == -1 || idx+1 >= len(args) {
		t.Fatalf("expected -vf filter argument, got %v", args)
	}
	filter := args[idx+1]
	for _, fragment := range []string{
		"drawtext=",
		"x=(w-text_w)/2:y=(h-text_h)/2",
		"fontsize=46",
		"fontcolor=0xFFC0CB",
		"borderw=2:bordercolor=0xFFFFFF",
		"shadowcolor=0x808080:shadowx=3:shadowy=3",
		`text='it'\\''s 10\\:30':`,
	} {
		if !strings.Contains(filter, fragment) {
			t.Fatalf("filter missing %q:\n%s", fragment, filter)
		}
	}
}

func TestApplyStyleOverrides(t *testing.T) {
	captured := captureCommands(t, "success")
	cli := NewCLI(testConfig(t))

	if _, err := cli.Apply(context.Background(), Request{
		InputPath: "/media/clip.mp4",
		Text:      "mark",
		Style: Style{
			FontSize:    72,
			FontColor:   "00FF00",
			BorderColor: "not-a-color",
		},
	}); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	args := (*captured)[0]
	filter := args[findArg(args, "-vf")+1]
	if !strings.Contains(filter, "fontsize=72") {
		t.Fatalf("expected font size override in filter:\n%s", filter)
	}
	if !strings.Contains(filter, "fontcolor=0x00FF00") {
		t.Fatalf("expected font color override in filter:\n%s", filter)
	}
	// Invalid override falls back to the configured border color.
	if !strings.Contains(filter, "bordercolor=0xFFFFFF") {
		t.Fatalf("expected default border color in filter:\n%s", filter)
	}
}

func TestApplyReportsToolFailure(t *testing.T) {
	captureCommands(t, "failure")
	cli := NewCLI(testConfig(t))

	_, err := cli.Apply(context.Background(), Request{InputPath: "/media/clip.mp4", Text: "mark"})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestSampleFrameFallsBackToFirstFrame(t *testing.T) {
	captured := captureCommands(t, "success")
	cli := NewCLI(testConfig(t))

	input := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(input, []byte("media"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	frame, err := cli.SampleFrame(context.Background(), input)
	if err != nil {
		t.Fatalf("SampleFrame returned error: %v", err)
	}
	if filepath.Ext(frame) != ".jpg" {
		t.Fatalf("expected jpg frame, got %q", frame)
	}

	// ffprobe duration parse fails against the stub, so the extraction must
	// have used the first-frame command without -ss.
	last := (*captured)[len(*captured)-1]
	if findArg(last, "-ss") != -1 {
		t.Fatalf("expected first-frame fallback without -ss, got %v", last)
	}
	if idx := findArg(last, "-frames:v"); idx == -1 || last[idx+1] != "1" {
		t.Fatalf("expected single frame extraction, got %v", last)
	}
}

func TestEscapeText(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"plain", "plain"},
		{"it's", `it'\\''s`},
		{"10:30", `10\\:30`},
		{`back\slash`, `back\\slash`},
	}
	for _, tc := range cases {
		if got := EscapeText(tc.input); got != tc.want {
			t.Fatalf("EscapeText(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestSupportedFile(t *testing.T) {
	if !SupportedFile("/media/CLIP.MP4") {
		t.Fatal("expected uppercase extension to be supported")
	}
	if SupportedFile("/media/document.pdf") {
		t.Fatal("expected pdf to be unsupported")
	}
	if !IsImage("photo.jpeg") || IsImage("clip.mkv") {
		t.Fatal("unexpected image classification")
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "success":
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "ffmpeg exited with status 1")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}

func findArg(args []string, target string) int {
	for i, arg := range args {
		if arg == target {
			return i
		}
	}
	return -1
}
