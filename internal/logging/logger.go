package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cloudpose/internal/config"
)

// LogFileName is the file written inside the configured log directory.
const LogFileName = "cloudpose.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Stderr mirrors log lines to the terminal.
	Stderr bool
	// File receives log lines in append mode when set.
	File string
}

// New constructs a slog logger using the provided options. With neither Stderr
// nor File set, output goes to stderr.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))

	out, err := openOutput(opts)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		return slog.New(newConsoleHandler(out, level)), nil
	case "json":
		return slog.New(newJSONHandler(out, level)), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// NewFromConfig creates a logger from the application config. When fileOnly is
// set the terminal is skipped, which the terminal UI needs because it owns the
// screen.
func NewFromConfig(cfg *config.Config, fileOnly bool) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Stderr: true})
	}
	opts := Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Stderr: !fileOnly,
	}
	if cfg.Paths.LogDir != "" {
		opts.File = filepath.Join(cfg.Paths.LogDir, LogFileName)
	}
	if !opts.Stderr && opts.File == "" {
		return NewNop(), nil
	}
	return New(opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openOutput(opts Options) (io.Writer, error) {
	if opts.File == "" {
		return os.Stderr, nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", opts.File, err)
	}
	if opts.Stderr {
		return io.MultiWriter(os.Stderr, file), nil
	}
	return file, nil
}
