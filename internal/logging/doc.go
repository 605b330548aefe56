// Package logging builds slog loggers for the daemon and CLI.
//
// It supports a human-readable console format and machine-readable JSON,
// multi-destination output (stdout plus a log file under the configured log
// directory), and shared attribute helpers so components log with consistent
// keys.
package logging
