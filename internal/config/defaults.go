package config

const (
	defaultUploadDir          = "~/.local/share/stamper/uploads"
	defaultOutputDir          = "~/.local/share/stamper/output"
	defaultLogDir             = "~/.local/share/stamper/logs"
	defaultAPIBind            = "127.0.0.1:8530"
	defaultFontFile           = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"
	defaultFontSize           = 46
	defaultFontColor          = "FFC0CB"
	defaultBorderColor        = "FFFFFF"
	defaultBorderThickness    = 2
	defaultVideoQuality       = 18
	defaultImageQuality       = 2
	defaultHookTimeout        = 5
	defaultWorkers            = 2
	defaultQueuePollInterval  = 2
	defaultErrorRetryInterval = 5
	defaultMaxRetries         = 3
	defaultRetryDelay         = 5
	defaultReaperInterval     = 3600
	defaultTaskRetentionHours = 24
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadDir: defaultUploadDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Watermark: Watermark{
			FontFile:        defaultFontFile,
			FontSize:        defaultFontSize,
			Padding:         0,
			FontColor:       defaultFontColor,
			BorderColor:     defaultBorderColor,
			BorderThickness: defaultBorderThickness,
			VideoQuality:    defaultVideoQuality,
			ImageQuality:    defaultImageQuality,
		},
		Hooks: Hooks{
			RequestTimeout: defaultHookTimeout,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			MaxRetries:         defaultMaxRetries,
			RetryDelay:         defaultRetryDelay,
			ReaperInterval:     defaultReaperInterval,
			TaskRetentionHours: defaultTaskRetentionHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
