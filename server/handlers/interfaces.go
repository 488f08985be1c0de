// Package handlers provides HTTP handlers for the vetflow server.
//
// Each handler is in its own file and implements http.Handler.
// Handlers use interfaces to access server dependencies, avoiding
// circular imports.
package handlers

import (
	"context"

	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/config"
	"github.com/nomis52/vetflow/server/runner"
	"github.com/nomis52/vetflow/session"
)

// ConfigProvider provides access to the current configuration.
type ConfigProvider interface {
	Config() *config.Config
}

// Reloader can reload its configuration.
type Reloader interface {
	Reload() error
}

// SessionProvider starts, finds and ends sessions.
type SessionProvider interface {
	Login(user archetype.Object, seed ...archetype.Object) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Logout(id string) error
}

// SeedProvider returns the objects every new session starts with.
type SeedProvider interface {
	Seed() []archetype.Object
}

// ObjectResolver loads domain objects by reference.
type ObjectResolver interface {
	Get(ctx context.Context, ref archetype.Reference) (archetype.Object, error)
}

// WorkflowRunner starts workflow runs and reports their status.
type WorkflowRunner interface {
	Run(sess *session.Session, name string, objects ...archetype.Object) (runner.RunSummary, error)
	Status(sessionID string) (runner.RunStatus, bool)
	Forget(sessionID string)
}

// WorkflowProvider lists the workflows that can be started.
type WorkflowProvider interface {
	Names() []string
}

// HistoryProvider provides access to run history.
type HistoryProvider interface {
	History() []runner.RunSummary
	Get(id string) (runner.RunStatus, error)
}
