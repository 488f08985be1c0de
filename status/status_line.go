package status

import (
	"log/slog"
)

// StatusLine logs status with task context and updates the shared handler.
type StatusLine struct {
	logger  *slog.Logger
	handler *StatusHandler
	task    string
}

// NewStatusLine creates a status line bound to a task name. The handler is
// optional; when nil, status updates are only logged.
func NewStatusLine(task string, logger *slog.Logger, handler *StatusHandler) *StatusLine {
	return &StatusLine{
		logger:  logger,
		handler: handler,
		task:    task,
	}
}

// Set logs the status and updates the handler if present.
func (sl *StatusLine) Set(status string) {
	sl.logger.Info(status, "task", sl.task)
	if sl.handler != nil {
		sl.handler.Set(sl.task, status)
	}
}
