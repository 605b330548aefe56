package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeWatermark(); err != nil {
		return err
	}
	c.normalizeHooks()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.UploadDir) == "" {
		c.Paths.UploadDir = defaultUploadDir
	}
	if c.Paths.UploadDir, err = expandPath(c.Paths.UploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("STAMPER_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeWatermark() error {
	var err error
	c.Watermark.FFmpegPath = strings.TrimSpace(c.Watermark.FFmpegPath)
	if c.Watermark.FFmpegPath, err = expandPath(c.Watermark.FFmpegPath); err != nil {
		return fmt.Errorf("watermark.ffmpeg_path: %w", err)
	}
	c.Watermark.FFprobePath = strings.TrimSpace(c.Watermark.FFprobePath)
	if c.Watermark.FFprobePath, err = expandPath(c.Watermark.FFprobePath); err != nil {
		return fmt.Errorf("watermark.ffprobe_path: %w", err)
	}
	c.Watermark.FontFile = strings.TrimSpace(c.Watermark.FontFile)
	if c.Watermark.FontFile == "" {
		c.Watermark.FontFile = defaultFontFile
	}
	if c.Watermark.FontFile, err = expandPath(c.Watermark.FontFile); err != nil {
		return fmt.Errorf("watermark.font_file: %w", err)
	}
	c.Watermark.FontColor = strings.TrimSpace(strings.TrimPrefix(c.Watermark.FontColor, "#"))
	if c.Watermark.FontColor == "" {
		c.Watermark.FontColor = defaultFontColor
	}
	c.Watermark.BorderColor = strings.TrimSpace(strings.TrimPrefix(c.Watermark.BorderColor, "#"))
	if c.Watermark.BorderColor == "" {
		c.Watermark.BorderColor = defaultBorderColor
	}
	if c.Watermark.VideoQuality <= 0 {
		c.Watermark.VideoQuality = defaultVideoQuality
	}
	if c.Watermark.ImageQuality <= 0 {
		c.Watermark.ImageQuality = defaultImageQuality
	}
	return nil
}

func (c *Config) normalizeHooks() {
	c.Hooks.Start = strings.TrimSpace(c.Hooks.Start)
	c.Hooks.Complete = strings.TrimSpace(c.Hooks.Complete)
	c.Hooks.Error = strings.TrimSpace(c.Hooks.Error)
	if c.Hooks.Start == "" {
		if value, ok := os.LookupEnv("START_HOOK"); ok {
			c.Hooks.Start = strings.TrimSpace(value)
		}
	}
	if c.Hooks.Complete == "" {
		if value, ok := os.LookupEnv("COMPLETE_HOOK"); ok {
			c.Hooks.Complete = strings.TrimSpace(value)
		}
	}
	if c.Hooks.Error == "" {
		if value, ok := os.LookupEnv("ERROR_HOOK"); ok {
			c.Hooks.Error = strings.TrimSpace(value)
		}
	}
	if c.Hooks.RequestTimeout <= 0 {
		c.Hooks.RequestTimeout = defaultHookTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.MaxRetries < 0 {
		c.Workflow.MaxRetries = defaultMaxRetries
	}
	if c.Workflow.RetryDelay <= 0 {
		c.Workflow.RetryDelay = defaultRetryDelay
	}
	if c.Workflow.ReaperInterval <= 0 {
		c.Workflow.ReaperInterval = defaultReaperInterval
	}
	if c.Workflow.TaskRetentionHours <= 0 {
		c.Workflow.TaskRetentionHours = defaultTaskRetentionHours
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
