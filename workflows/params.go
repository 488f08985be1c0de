// Package workflows provides the application's workflow definitions.
// Unlike the generic workflow package, which runs tasks, this package knows
// about the practice, its configuration and the session a workflow runs for.
package workflows

import (
	"context"
	"log/slog"

	"github.com/nomis52/vetflow/appcontext"
	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/config"
	"github.com/nomis52/vetflow/status"
	"github.com/nomis52/vetflow/workflow"
)

// Params contains common parameters for workflow construction.
// Workflows may use all or a subset of these fields depending on their needs.
type Params struct {
	// Ctx bounds the collaborator calls the workflow makes.
	Ctx context.Context

	// Global is the session context the workflow reads from and publishes to.
	Global appcontext.Context

	// Services are handed to every task. Store and UI are required.
	Services workflow.Services

	// Config is the application configuration. Some workflows may not need this.
	Config *config.Config

	// Objects are supplied by the caller, such as the appointment being
	// checked in. Workflows pick out the kinds they understand.
	Objects []archetype.Object

	// Status tracks task status lines. May be nil if status tracking is not needed.
	Status *status.StatusHandler
}

// NewContext returns a task context whose parent is the session context.
func (p Params) NewContext() *workflow.Context {
	return workflow.NewContext(p.Ctx, p.Global, p.Services)
}

// StatusLine returns a status line for task.
func (p Params) StatusLine(task string) *status.StatusLine {
	logger := p.Services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return status.NewStatusLine(task, logger, p.Status)
}
