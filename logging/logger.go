// Package logging configures structured logging for vetflow and captures the
// logs each workflow task writes.
//
// Loggers are plain *slog.Logger values. New builds one from Config; the
// capture side (CapturingHandler, LogCollector and LoggerHook) tees every
// record a task logs into a per-task buffer so a run's history can show what
// each step did.
//
// Example usage:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//		return err
//	}
//	logger.Info("workflow started", "workflow", "checkin", "session", id)
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"time"
)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

var formats = []string{"json", "text"}

// Config holds the configuration for the logger.
type Config struct {
	// Level sets the minimum log level. Valid values: debug, info, warn, error
	Level string `yaml:"level"`
	// Format sets the output format. Valid values: json, text
	Format string `yaml:"format"`
	// Output sets the output destination. Valid values: stdout, stderr, or a file path
	Output string `yaml:"output"`
	// AddSource adds source code position to log records
	AddSource bool `yaml:"add_source"`
}

// SetDefaults fills unset fields.
func (cfg *Config) SetDefaults() {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// Validate checks the level and format.
func (cfg *Config) Validate() error {
	if _, ok := levels[strings.ToLower(cfg.Level)]; cfg.Level != "" && !ok {
		return fmt.Errorf("level must be one of: %s", strings.Join(slices.Sorted(maps.Keys(levels)), ", "))
	}
	if cfg.Format != "" && !slices.Contains(formats, cfg.Format) {
		return fmt.Errorf("format must be one of: %s", strings.Join(formats, ", "))
	}
	return nil
}

// Logger is a slog.Logger that owns its output.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// ParseLevel returns the slog level for a config level name.
func ParseLevel(name string) (slog.Level, error) {
	level, ok := levels[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// Option configures New.
type Option func(*slog.HandlerOptions)

// WithLevelVar makes the logger's level follow v, so it can change at
// runtime. v is set to the configured level.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(opts *slog.HandlerOptions) {
		if l, ok := opts.Level.(slog.Level); ok {
			v.Set(l)
		}
		opts.Level = v
	}
}

// New creates a logger from cfg.
func New(cfg Config, options ...Option) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	cfg.SetDefaults()

	w, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     levels[strings.ToLower(cfg.Level)],
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}
	for _, opt := range options {
		opt(opts)
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler), closer: closer}, nil
}

// Close releases a file output. It is a no-op for stdout and stderr.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %q: %w", output, err)
	}
	return f, f, nil
}
