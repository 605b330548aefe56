package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"stamper/internal/config"
	"stamper/internal/services"
)

var commandContext = exec.CommandContext

// OutputSuffix is appended to watermarked filenames. Files that already carry
// it are refused so batches never re-watermark their own output.
const OutputSuffix = "_watermarked"

var validExtensions = []string{
	".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tiff",
	".mp4", ".mkv", ".mov", ".avi", ".webm",
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tiff"}

// Positions lists the accepted watermark anchor names.
var Positions = []string{"top-left", "top-right", "bottom-left", "bottom-right", "center"}

// ValidPosition reports whether the given anchor name is supported.
func ValidPosition(position string) bool {
	for _, p := range Positions {
		if p == position {
			return true
		}
	}
	return false
}

// SupportedFile reports whether the path has a media extension the engine
// can watermark.
func SupportedFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, valid := range validExtensions {
		if ext == valid {
			return true
		}
	}
	return false
}

// IsImage reports whether the path looks like a still image rather than video.
func IsImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, valid := range imageExtensions {
		if ext == valid {
			return true
		}
	}
	return false
}

// Style carries per-request overrides of the configured watermark defaults.
// Zero values defer to the config.
type Style struct {
	FontFile        string `json:"font_file,omitempty"`
	FontSize        int    `json:"font_size,omitempty"`
	Padding         int    `json:"padding,omitempty"`
	FontColor       string `json:"font_color,omitempty"`
	BorderColor     string `json:"border_color,omitempty"`
	BorderThickness int    `json:"border_thickness,omitempty"`
}

// Request describes one watermark application.
type Request struct {
	InputPath  string
	OutputPath string // optional; derived from the input when empty
	Text       string
	Position   string
	Style      Style
}

// Client defines watermark application behaviour.
type Client interface {
	Apply(ctx context.Context, req Request) (string, error)
	SampleFrame(ctx context.Context, inputPath string) (string, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the ffmpeg binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithProbeBinary overrides the ffprobe binary name.
func WithProbeBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.probeBinary = binary
		}
	}
}

// CLI wraps the ffmpeg command-line encoder with drawtext watermarking.
type CLI struct {
	binary      string
	probeBinary string
	cfg         *config.Config
}

// NewCLI constructs a CLI client bound to the given configuration.
func NewCLI(cfg *config.Config, opts ...Option) *CLI {
	cli := &CLI{
		binary:      cfg.FFmpegBinary(),
		probeBinary: cfg.FFprobeBinary(),
		cfg:         cfg,
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Apply renders the watermark text onto the input and returns the output path.
func (c *CLI) Apply(ctx context.Context, req Request) (string, error) {
	if req.InputPath == "" {
		return "", services.Wrap(services.ErrValidation, "ffmpeg", "apply", "input path required", nil)
	}
	if req.Text == "" {
		return "", services.Wrap(services.ErrValidation, "ffmpeg", "apply", "watermark text required", nil)
	}
	if req.Position != "" && !ValidPosition(req.Position) {
		return "", services.Wrap(services.ErrValidation, "ffmpeg", "apply",
			fmt.Sprintf("invalid position %q, must be one of: %s", req.Position, strings.Join(Positions, ", ")), nil)
	}
	if !SupportedFile(req.InputPath) {
		return "", services.Wrap(services.ErrValidation, "ffmpeg", "apply",
			fmt.Sprintf("unsupported file type %q", filepath.Ext(req.InputPath)), nil)
	}

	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = c.outputPathFor(req.InputPath)
	}
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", services.Wrap(services.ErrTransient, "ffmpeg", "apply", "create output directory", err)
		}
	}

	filter := c.drawtextFilter(req)
	args := []string{"-i", req.InputPath, "-vf", filter}
	if IsImage(req.InputPath) {
		args = append(args, "-q:v", strconv.Itoa(c.cfg.Watermark.ImageQuality))
	} else {
		args = append(args, "-crf", strconv.Itoa(c.cfg.Watermark.VideoQuality), "-c:a", "copy")
	}
	args = append(args, "-y", outputPath)

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "ffmpeg", "apply",
			strings.TrimSpace(string(output)), err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "ffmpeg", "apply",
			fmt.Sprintf("output file %s was not created", outputPath), err)
	}
	return outputPath, nil
}

// SampleFrame extracts a still from the midpoint of a video, falling back to
// the first frame when the midpoint seek fails. The caller watermarks and
// deletes the returned frame.
func (c *CLI) SampleFrame(ctx context.Context, inputPath string) (string, error) {
	if inputPath == "" {
		return "", services.Wrap(services.ErrValidation, "ffmpeg", "sample", "input path required", nil)
	}

	framePath := filepath.Join(filepath.Dir(inputPath),
		strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))+"_frame.jpg")

	duration, err := c.Duration(ctx, inputPath)
	if err == nil && duration > 0 {
		midpoint := strconv.FormatFloat(duration/2, 'f', -1, 64)
		args := []string{
			"-ss", midpoint,
			"-i", inputPath,
			"-frames:v", "1",
			"-q:v", strconv.Itoa(c.cfg.Watermark.ImageQuality),
			"-y", framePath,
		}
		cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
		if _, runErr := cmd.CombinedOutput(); runErr == nil {
			return framePath, nil
		}
	}

	args := []string{
		"-i", inputPath,
		"-frames:v", "1",
		"-q:v", strconv.Itoa(c.cfg.Watermark.ImageQuality),
		"-y", framePath,
	}
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "ffmpeg", "sample",
			strings.TrimSpace(string(output)), err)
	}
	return framePath, nil
}

// Duration returns the container duration in seconds.
func (c *CLI) Duration(ctx context.Context, path string) (float64, error) {
	cmd := commandContext(ctx, c.probeBinary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "ffprobe", "duration",
			strings.TrimSpace(string(output)), err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

// Verify checks that the ffmpeg binary is reachable on PATH.
func (c *CLI) Verify() error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return services.Wrap(services.ErrConfiguration, "ffmpeg", "verify",
			"ffmpeg executable not found, install FFmpeg and ensure it is in your PATH", err)
	}
	return nil
}

func (c *CLI) outputPathFor(inputPath string) string {
	ext := filepath.Ext(inputPath)
	stem := strings.TrimSuffix(filepath.Base(inputPath), ext)
	timestamp := time.Now().Format("02-01-15-04-05")
	name := stem + OutputSuffix + "_" + timestamp + ext

	outputDir := c.cfg.Paths.OutputDir
	if outputDir == "" {
		outputDir = filepath.Dir(inputPath)
	}
	return filepath.Join(outputDir, name)
}

func (c *CLI) drawtextFilter(req Request) string {
	style := c.resolveStyle(req.Style)
	x, y := positionExpressions(req.Position, style.Padding)

	fontPath := strings.ReplaceAll(style.FontFile, "\\", "/")
	var b strings.Builder
	b.WriteString("drawtext=")
	b.WriteString("fontfile='" + fontPath + "':")
	b.WriteString("text='" + EscapeText(req.Text) + "':")
	b.WriteString("x=" + x + ":y=" + y + ":")
	b.WriteString("fontsize=" + strconv.Itoa(style.FontSize) + ":")
	b.WriteString("fontcolor=0x" + style.FontColor + ":")
	b.WriteString("borderw=" + strconv.Itoa(style.BorderThickness) + ":bordercolor=0x" + style.BorderColor + ":")
	b.WriteString("shadowcolor=0x808080:shadowx=3:shadowy=3")
	return b.String()
}

func (c *CLI) resolveStyle(overrides Style) Style {
	style := Style{
		FontFile:        c.cfg.Watermark.FontFile,
		FontSize:        c.cfg.Watermark.FontSize,
		Padding:         c.cfg.Watermark.Padding,
		FontColor:       c.cfg.Watermark.FontColor,
		BorderColor:     c.cfg.Watermark.BorderColor,
		BorderThickness: c.cfg.Watermark.BorderThickness,
	}
	if overrides.FontFile != "" {
		if _, err := os.Stat(overrides.FontFile); err == nil {
			style.FontFile = overrides.FontFile
		}
	}
	if overrides.FontSize > 0 {
		style.FontSize = overrides.FontSize
	}
	if overrides.Padding > 0 {
		style.Padding = overrides.Padding
	}
	if config.IsValidHexColor(overrides.FontColor) {
		style.FontColor = overrides.FontColor
	}
	if config.IsValidHexColor(overrides.BorderColor) {
		style.BorderColor = overrides.BorderColor
	}
	if overrides.BorderThickness > 0 {
		style.BorderThickness = overrides.BorderThickness
	}
	return style
}

func positionExpressions(position string, padding int) (string, string) {
	pad := strconv.Itoa(padding)
	switch position {
	case "top-right":
		return "w-text_w-" + pad, pad
	case "bottom-left":
		return pad, "h-text_h-" + pad
	case "bottom-right":
		return "w-text_w-" + pad, "h-text_h-" + pad
	case "center":
		return "(w-text_w)/2", "(h-text_h)/2"
	default:
		return pad, pad
	}
}

// EscapeText escapes text for use inside an ffmpeg drawtext filter.
func EscapeText(text string) string {
	if text == "" {
		return ""
	}
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`'`, `'\\''`,
		`:`, `\\:`,
	)
	return replacer.Replace(text)
}

var _ Client = (*CLI)(nil)
