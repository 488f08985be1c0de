// Package status provides task-scoped status reporting for running workflows.
//
// A status line is a short, unstructured message describing what a task is
// doing right now. Messages are both logged and collected so the server can
// show the progress of a session's run.
//
// # Architecture
//
// The package follows the handler/writer pattern of log/slog:
//
//   - StatusLine: Writes status messages (analogous to slog.Logger)
//   - StatusHandler: Receives and stores status updates (analogous to slog.Handler)
//
// StatusHandler is also a workflow.Listener, so attaching it to a run records
// each task's start and outcome without any task code:
//
//	handler := status.NewStatusHandler()
//	services.Listener = workflow.Listeners{handler, other}
//
// Tasks that do longer work report finer progress through a StatusLine:
//
//	line := status.NewStatusLine("find visit", logger, handler)
//	return status.CaptureError(line, func() error {
//	    line.Set("looking up today's visit")
//	    return lookup()
//	})
package status
