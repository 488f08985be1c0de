// Package builtin registers the workflows that ship with vetflow.
package builtin

import (
	"github.com/nomis52/vetflow/workflows"
	"github.com/nomis52/vetflow/workflows/checkin"
	"github.com/nomis52/vetflow/workflows/weigh"
)

// Registry returns a registry holding every built-in workflow.
func Registry() *workflows.Registry {
	reg := workflows.NewRegistry()
	reg.Register(checkin.Name, checkin.Factory)
	reg.Register(weigh.Name, weigh.New)
	return reg
}
