// Package workflow provides an asynchronous, callback-driven task engine for
// interactive clinical and business processes.
//
// # Overview
//
// A workflow is an ordered list of tasks run against a shared Context. Each
// task may finish immediately, or may hand a dialog to the UI host and finish
// later when the user answers. Nothing in the engine blocks or starts a
// goroutine: a suspended workflow is simply a pending dialog whose reply
// callback continues the sequence.
//
// # Task Contract
//
// Tasks implement the Task interface:
//
//	type Task interface {
//	    Name() string
//	    Required() bool
//	    SetRequired(required bool)
//	    Start(ctx *Context, done Done)
//	}
//
// Start must not block. It reports exactly one Result to done: Completed,
// Cancelled or Skipped. Containers guard done so a second report is logged and
// dropped. Tasks carry no state between runs apart from the value of an
// EvalTask.
//
// # Sequencing
//
// Tasks (and Workflow, which embeds it) runs children in order:
//
//   - Completed starts the next child, or completes the sequence after the last.
//   - Skipped continues, unless the sequence breaks on skip, in which case the
//     sequence reports Skipped.
//   - Cancelled from a required child cancels the sequence. Cancelled from an
//     optional child continues.
//   - A panic in a child's Start cancels the sequence and is shown to the user.
//
// Children that finish synchronously do not grow the stack.
//
// # Errors
//
// There is no failed state. A task that hits an error shows it through the UI
// host and reports Cancelled with Result.Err set.
//
// # Observation
//
// Every task start and finish is reported as an Event to the Listener in
// Services. Listeners are for metrics, tracing, status and log capture; they
// never influence control flow.
//
// # Example
//
//	wf := workflow.New("weigh patient",
//	    workflow.NewConditional(
//	        workflow.NewConfirmation("Weigh", "Weigh the patient?", workflow.YesNo()),
//	        workflow.NewEdit(archetype.KindPatientWeight, workflow.CreateFirst(props)),
//	    ),
//	).With(workflow.WithContext(workflow.NewContext(ctx, session, services)))
//	wf.Run(func(r workflow.Result) {
//	    log.Println("finished", r.Status)
//	})
package workflow
