package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	UploadDir string `toml:"upload_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
}

// Watermark contains the default styling applied by the ffmpeg engine.
// Individual requests may override any of these per task.
type Watermark struct {
	FFmpegPath      string `toml:"ffmpeg_path"`
	FFprobePath     string `toml:"ffprobe_path"`
	FontFile        string `toml:"font_file"`
	FontSize        int    `toml:"font_size"`
	Padding         int    `toml:"padding"`
	FontColor       string `toml:"font_color"`
	BorderColor     string `toml:"border_color"`
	BorderThickness int    `toml:"border_thickness"`
	VideoQuality    int    `toml:"video_quality"`
	ImageQuality    int    `toml:"image_quality"`
}

// Hooks contains the lifecycle notification targets. Each target is either an
// http(s) URL that receives the task snapshot as a JSON POST, or a path to a
// local program invoked with the snapshot as its first argument. Empty targets
// disable the corresponding event.
type Hooks struct {
	Start          string `toml:"start"`
	Complete       string `toml:"complete"`
	Error          string `toml:"error"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Workflow contains daemon scheduling intervals and retry defaults.
type Workflow struct {
	Workers            int `toml:"workers"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	MaxRetries         int `toml:"max_retries"`
	RetryDelay         int `toml:"retry_delay"`
	ReaperInterval     int `toml:"reaper_interval"`
	TaskRetentionHours int `toml:"task_retention_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Stamper.
//
// Configuration sections by subsystem:
//   - Paths: upload/output/log directories and API bind address
//   - Watermark: default drawtext styling and encode quality
//   - Hooks: lifecycle notification targets (start/complete/error)
//   - Workflow: worker count, polling intervals, retry defaults, reaper
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Watermark Watermark `toml:"watermark"`
	Hooks     Hooks     `toml:"hooks"`
	Workflow  Workflow  `toml:"workflow"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/stamper/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("stamper.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

var hexColorPattern = regexp.MustCompile(`^[0-9a-fA-F]{6}$`)

// IsValidHexColor reports whether value is a bare 6-digit hex color code.
func IsValidHexColor(value string) bool {
	return hexColorPattern.MatchString(value)
}

// Validate checks configuration invariants that normalization cannot repair.
func (c *Config) Validate() error {
	if !IsValidHexColor(c.Watermark.FontColor) {
		return fmt.Errorf("watermark.font_color: %q is not a 6-digit hex code", c.Watermark.FontColor)
	}
	if !IsValidHexColor(c.Watermark.BorderColor) {
		return fmt.Errorf("watermark.border_color: %q is not a 6-digit hex code", c.Watermark.BorderColor)
	}
	if c.Watermark.FontSize <= 0 {
		return fmt.Errorf("watermark.font_size: must be positive, got %d", c.Watermark.FontSize)
	}
	if c.Watermark.Padding < 0 {
		return fmt.Errorf("watermark.padding: must not be negative, got %d", c.Watermark.Padding)
	}
	if c.Workflow.MaxRetries < 0 {
		return fmt.Errorf("workflow.max_retries: must not be negative, got %d", c.Workflow.MaxRetries)
	}
	if c.Workflow.RetryDelay <= 0 {
		return fmt.Errorf("workflow.retry_delay: must be positive, got %d", c.Workflow.RetryDelay)
	}
	if c.Workflow.TaskRetentionHours <= 0 {
		return fmt.Errorf("workflow.task_retention_hours: must be positive, got %d", c.Workflow.TaskRetentionHours)
	}
	return nil
}

// EnsureDirectories creates the directories the daemon needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.UploadDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used by the watermark engine.
// An unset ffmpeg_path resolves from PATH.
func (c *Config) FFmpegBinary() string {
	if c != nil {
		if path := strings.TrimSpace(c.Watermark.FFmpegPath); path != "" {
			return path
		}
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable used for media inspection.
func (c *Config) FFprobeBinary() string {
	if c != nil {
		if path := strings.TrimSpace(c.Watermark.FFprobePath); path != "" {
			return path
		}
	}
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
