package logging

import (
	"log/slog"
)

// LoggerHook derives the logger a task writes to from a base logger. The
// workflow engine stays unaware of capture; a hook decides what to wrap.
type LoggerHook interface {
	LoggerForTask(base *slog.Logger, task string) *slog.Logger
}

// CapturingLoggerHook hands out loggers that also capture into a collector.
type CapturingLoggerHook struct {
	collector *LogCollector
}

// NewCapturingLoggerHook creates a hook capturing into collector.
func NewCapturingLoggerHook(collector *LogCollector) *CapturingLoggerHook {
	return &CapturingLoggerHook{collector: collector}
}

func (h *CapturingLoggerHook) LoggerForTask(base *slog.Logger, task string) *slog.Logger {
	return slog.New(NewCapturingHandler(base.Handler(), h.collector, task))
}
