// Package weigh provides a standalone workflow that records a patient weight.
package weigh

import (
	"github.com/nomis52/vetflow/appcontext"
	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/workflow"
	"github.com/nomis52/vetflow/workflows"
)

// Name is the name the workflow registers under.
const Name = "weigh"

// New creates a workflow that weighs the session's current patient, asking
// for one first when there is none.
func New(p workflows.Params) (*workflow.Workflow, error) {
	ctx := p.NewContext()
	title := "Weigh patient"
	if p.Config != nil && p.Config.CheckIn.WeightTitle != "" {
		title = p.Config.CheckIn.WeightTitle
	}
	for _, obj := range p.Objects {
		if appcontext.Patient.Accepts(obj.Kind()) {
			if err := ctx.Set(appcontext.Patient, obj); err != nil {
				return nil, err
			}
		}
	}

	wf := workflow.New(Name).With(
		workflow.WithContext(ctx),
		workflow.WithHelpTopic("workflow/weigh"),
	)
	if ctx.Get(appcontext.Patient) == nil {
		wf.Add(workflow.NewSelect([]string{archetype.KindPatient}, workflow.SelectTitle("Select patient")))
	}
	wf.Add(workflow.NewEdit(archetype.KindPatientWeight,
		workflow.CreateFirst(workflow.Properties{}.
			SetFunc("patient", workflow.Ref(string(appcontext.Patient))).
			SetFunc("startTime", workflow.Now())),
		workflow.EditTitle(title),
	))

	global := p.Global
	wf.Add(workflow.NewSynchronous("update global context", func(ctx *workflow.Context) error {
		if global == nil {
			return nil
		}
		return global.Set(appcontext.Patient, ctx.Get(appcontext.Patient))
	}))
	return wf, nil
}
