// Package checkin provides the workflow that checks a patient in for a visit.
//
// The workflow runs against a practice context and, optionally, an
// appointment:
//
//	select patient → customer task → find visit → weigh → print form →
//	find or create invoice → edit visit → reload visit →
//	mark appointment checked in → publish
//
// Each step after patient selection is optional or skippable except the
// visit lookup and edit. The invoice steps only run for a known customer. On completion the patient and customer are
// published to the session context so other workflows pick them up.
package checkin

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/nomis52/vetflow/appcontext"
	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/status"
	"github.com/nomis52/vetflow/workflow"
	"github.com/nomis52/vetflow/workflows"
)

// Name is the name the workflow registers under.
const Name = "checkin"

// Appointment and visit statuses the workflow reads or writes.
const (
	StatusCheckedIn  = "CHECKED_IN"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusPosted     = "POSTED"
)

// ErrNoPractice is returned when the session has no practice.
var ErrNoPractice = errors.New("no practice in context")

var (
	fieldName      = archetype.NewField[string](archetype.FieldName)
	fieldStatus    = archetype.NewField[string]("status")
	fieldReason    = archetype.NewField[string]("reason")
	fieldStartTime = archetype.NewField[time.Time]("startTime")
	fieldCustomer  = archetype.NewField[archetype.Reference]("customer")
	fieldPatient   = archetype.NewField[archetype.Reference]("patient")
	fieldClinician = archetype.NewField[archetype.Reference]("clinician")
	fieldSchedule  = archetype.NewField[archetype.Reference]("schedule")
)

// Option configures a check-in.
type Option func(*options)

type options struct {
	appointment archetype.Object
	customer    archetype.Object
	patient     archetype.Object
	clinician   archetype.Object
}

// ForAppointment checks in the customer and patient booked in appt.
func ForAppointment(appt archetype.Object) Option {
	return func(o *options) {
		o.appointment = appt
	}
}

// ForCustomer checks in a walk-in customer.
func ForCustomer(customer archetype.Object) Option {
	return func(o *options) {
		o.customer = customer
	}
}

// ForPatient skips patient selection.
func ForPatient(patient archetype.Object) Option {
	return func(o *options) {
		o.patient = patient
	}
}

// WithClinician sets the clinician. It defaults to the session's clinician.
func WithClinician(clinician archetype.Object) Option {
	return func(o *options) {
		o.clinician = clinician
	}
}

// Factory adapts New to workflows.Factory. An appointment, customer or
// patient among p.Objects is checked in.
func Factory(p workflows.Params) (*workflow.Workflow, error) {
	var opts []Option
	for _, obj := range p.Objects {
		switch {
		case obj.Kind() == archetype.KindAppointment:
			opts = append(opts, ForAppointment(obj))
		case appcontext.Customer.Accepts(obj.Kind()):
			opts = append(opts, ForCustomer(obj))
		case appcontext.Patient.Accepts(obj.Kind()):
			opts = append(opts, ForPatient(obj))
		}
	}
	return New(p, opts...)
}

// New creates a check-in workflow.
func New(p workflows.Params, opts ...Option) (*workflow.Workflow, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	ctx := p.NewContext()
	if ctx.Get(appcontext.Practice) == nil {
		return nil, ErrNoPractice
	}
	if o.appointment != nil {
		if err := o.fromAppointment(ctx); err != nil {
			return nil, err
		}
	}
	if err := seed(ctx, o); err != nil {
		return nil, err
	}

	var cfg checkInConfig
	if p.Config != nil {
		cfg = checkInConfig{
			promptWeight: p.Config.CheckIn.PromptWeight,
			printForm:    p.Config.CheckIn.PrintForm,
			weightTitle:  p.Config.CheckIn.WeightTitle,
			workLists:    p.Config.CheckIn.WorkLists,
		}
	}
	if cfg.weightTitle == "" {
		cfg.weightTitle = "Weigh patient"
	}

	wf := workflow.New(Name).With(
		workflow.WithContext(ctx),
		workflow.WithHelpTopic("workflow/checkin"),
	)

	if o.patient == nil {
		wf.Add(workflow.NewSelect([]string{archetype.KindPatient},
			workflow.SelectTitle("Select patient"),
			workflow.WithCreate(workflow.NewEdit(archetype.KindPatient,
				workflow.CreateFirst(workflow.Properties{}.SetFunc("owner", workflow.Ref(string(appcontext.Customer)))),
				workflow.EditTitle("New patient"),
			)),
		))
		wf.Add(workflow.NewUpdate(archetype.KindPatient, nil))
	}

	if len(cfg.workLists) > 0 {
		wf.Add(customerTask(cfg.workLists, reasonOf(o.appointment)))
	}

	line := p.StatusLine("find visit")
	start := startOf(o.appointment)
	wf.Add(workflow.NewSynchronous("find visit", func(ctx *workflow.Context) error {
		return findVisit(ctx, line, start, reasonOf(o.appointment))
	}))

	if cfg.promptWeight {
		wf.Add(workflow.NewConditional(
			workflow.NewConfirmation(cfg.weightTitle, "Record the patient's weight?", workflow.YesNo()),
			workflow.NewEdit(archetype.KindPatientWeight,
				workflow.CreateFirst(workflow.Properties{}.
					SetFunc("patient", workflow.Ref(string(appcontext.Patient))).
					SetFunc("startTime", workflow.Now())),
				workflow.EditTitle(cfg.weightTitle),
				workflow.AllowSkip(),
				workflow.DeleteOnCancelOrSkip(),
			),
		))
	}

	if cfg.printForm {
		wf.Add(workflow.Optional(workflow.NewPrint(archetype.KindClinicalEvent,
			workflow.PrintTitle("Print visit form"),
			workflow.PrintAllowSkip(),
		)))
	}

	wf.Add(workflow.NewSynchronous("find invoice", findInvoice))
	wf.Add(workflow.NewConditional(
		workflow.NewEvalFunc("needs invoice", needsInvoice),
		workflow.NewEdit(archetype.KindInvoice,
			workflow.CreateFirst(workflow.Properties{}.
				SetFunc("customer", workflow.Ref(string(appcontext.Customer))).
				SetFunc("startTime", workflow.Now())),
			workflow.InBackground(),
		),
	))

	wf.Add(workflow.NewLocal(
		workflow.NewEdit(archetype.KindClinicalEvent, workflow.EditTitle("Visit")),
		appcontext.Patient, appcontext.Customer,
	))
	wf.Add(workflow.NewReload(archetype.KindClinicalEvent))

	if o.appointment != nil {
		wf.Add(workflow.NewUpdate(archetype.KindAppointment, workflow.Properties{}.
			Set("status", StatusCheckedIn).
			SetFunc("arrivalTime", workflow.Now()).
			SetFunc("patient", workflow.Ref(string(appcontext.Patient))).
			SetFunc("task", workflow.Ref(archetype.KindCustomerTask)),
			workflow.UpdateObject(o.appointment),
		))
	}

	global := p.Global
	wf.Add(workflow.NewSynchronous("update global context", func(ctx *workflow.Context) error {
		return publish(ctx, global)
	}))
	return wf, nil
}

type checkInConfig struct {
	promptWeight bool
	printForm    bool
	weightTitle  string
	workLists    []string
}

// fromAppointment resolves the appointment's participants. Explicit options win.
func (o *options) fromAppointment(ctx *workflow.Context) error {
	resolve := func(field archetype.Field[archetype.Reference], dst *archetype.Object) error {
		if *dst != nil {
			return nil
		}
		ref, ok := field.Lookup(o.appointment.(archetype.FieldAccessor))
		if !ok || ref.IsZero() {
			return nil
		}
		obj, err := ctx.Store().Get(ctx.Ctx(), ref)
		if err != nil {
			return fmt.Errorf("failed to load appointment %s: %w", field.Name(), err)
		}
		*dst = obj
		return nil
	}
	if _, ok := o.appointment.(archetype.FieldAccessor); !ok {
		return fmt.Errorf("%s has no fields", o.appointment.Kind())
	}
	if err := resolve(fieldCustomer, &o.customer); err != nil {
		return err
	}
	if err := resolve(fieldPatient, &o.patient); err != nil {
		return err
	}
	if err := resolve(fieldClinician, &o.clinician); err != nil {
		return err
	}
	var schedule archetype.Object
	if err := resolve(fieldSchedule, &schedule); err != nil {
		return err
	}
	if schedule != nil {
		ctx.Add(schedule)
	}
	return nil
}

// seed fills the initial context.
func seed(ctx *workflow.Context, o *options) error {
	now := ctx.Clock().Now()
	ctx.SetDate(appcontext.WorkListDate, now)
	if ctx.Date(appcontext.ScheduleDate).IsZero() {
		ctx.SetDate(appcontext.ScheduleDate, now)
	}

	clinician := o.clinician
	if clinician == nil {
		clinician = ctx.Get(appcontext.Clinician)
	}
	slots := []struct {
		key appcontext.Key
		obj archetype.Object
	}{
		{appcontext.Customer, o.customer},
		{appcontext.Patient, o.patient},
		{appcontext.Clinician, clinician},
		{appcontext.User, ctx.Get(appcontext.User)},
		{appcontext.Practice, ctx.Get(appcontext.Practice)},
		{appcontext.Location, ctx.Get(appcontext.Location)},
	}
	for _, s := range slots {
		if s.obj == nil {
			continue
		}
		if err := ctx.Set(s.key, s.obj); err != nil {
			return fmt.Errorf("invalid %s: %w", s.key, err)
		}
	}
	if o.appointment != nil {
		ctx.Add(o.appointment)
	}
	return nil
}

// customerTask optionally files a task against a work list. Skipping the
// work list skips the rest.
func customerTask(allowed []string, description string) workflow.Task {
	sub := workflow.NewTasks("customer task",
		workflow.Optional(workflow.NewSelect([]string{archetype.KindWorkList},
			workflow.SelectTitle("Select work list"),
			workflow.SelectFilter(func(obj archetype.Object) bool {
				return slices.Contains(allowed, nameOf(obj))
			}),
		)),
		workflow.NewEdit(archetype.KindCustomerTask,
			workflow.CreateFirst(workflow.Properties{}.
				Set("description", description).
				SetFunc("startTime", workflow.Now()).
				SetFunc("customer", workflow.Ref(string(appcontext.Customer))).
				SetFunc("patient", workflow.Ref(string(appcontext.Patient)))),
			workflow.InBackground(),
		),
		workflow.NewUpdate(archetype.KindCustomerTask, workflow.Properties{}.
			SetFunc("workList", workflow.Ref(string(appcontext.WorkList)))),
	)
	sub.SetBreakOnSkip(true)
	return workflow.Optional(sub)
}

// findVisit adds the patient's open visit to the context, creating one when
// there is none.
func findVisit(ctx *workflow.Context, line *status.StatusLine, start time.Time, reason string) error {
	patient := ctx.Get(appcontext.Patient)
	if patient == nil {
		return fmt.Errorf("%w: patient", workflow.ErrMissingObject)
	}
	return status.CaptureError(line, func() error {
		return lookupVisit(ctx, line, patient, start, reason)
	})
}

func lookupVisit(ctx *workflow.Context, line *status.StatusLine, patient archetype.Object, start time.Time, reason string) error {
	line.Set("looking up visit for " + nameOf(patient))
	events, err := ctx.Store().Find(ctx.Ctx(), archetype.KindClinicalEvent)
	if err != nil {
		return fmt.Errorf("failed to query visits: %w", err)
	}

	var visit archetype.Object
	var latest time.Time
	for _, ev := range events {
		fa, ok := ev.(archetype.FieldAccessor)
		if !ok {
			continue
		}
		if ref, _ := fieldPatient.Lookup(fa); ref != patient.Reference() {
			continue
		}
		if status, _ := fieldStatus.Lookup(fa); status == StatusCompleted {
			continue
		}
		if t, _ := fieldStartTime.Lookup(fa); visit == nil || t.After(latest) {
			visit, latest = ev, t
		}
	}

	if visit == nil {
		if start.IsZero() {
			start = ctx.Clock().Now()
		}
		created, err := ctx.Archetypes().Create(archetype.KindClinicalEvent)
		if err != nil {
			return err
		}
		props := workflow.Properties{}.
			Set("patient", patient).
			Set("startTime", start).
			Set("status", StatusInProgress)
		if reason != "" {
			props = props.Set("reason", reason)
		}
		if clinician := ctx.Get(appcontext.Clinician); clinician != nil {
			props = props.Set("clinician", clinician)
		}
		if err := props.Apply(ctx, created); err != nil {
			return err
		}
		if err := ctx.Store().Save(ctx.Ctx(), created); err != nil {
			return fmt.Errorf("failed to save visit: %w", err)
		}
		visit = created
		line.Set("created visit")
	} else {
		line.Set("found visit")
	}
	ctx.Add(visit)
	return nil
}

// findInvoice adds the customer's latest unposted invoice to the context.
func findInvoice(ctx *workflow.Context) error {
	customer := ctx.Get(appcontext.Customer)
	if customer == nil {
		return nil
	}
	invoices, err := ctx.Store().Find(ctx.Ctx(), archetype.KindInvoice)
	if err != nil {
		return fmt.Errorf("failed to query invoices: %w", err)
	}
	var invoice archetype.Object
	var latest time.Time
	for _, inv := range invoices {
		fa, ok := inv.(archetype.FieldAccessor)
		if !ok {
			continue
		}
		if ref, _ := fieldCustomer.Lookup(fa); ref != customer.Reference() {
			continue
		}
		if status, _ := fieldStatus.Lookup(fa); status == StatusPosted {
			continue
		}
		if t, _ := fieldStartTime.Lookup(fa); invoice == nil || t.After(latest) {
			invoice, latest = inv, t
		}
	}
	if invoice != nil {
		ctx.Add(invoice)
	}
	return nil
}

// needsInvoice is true when there is a customer but no invoice for them.
func needsInvoice(ctx *workflow.Context) (bool, error) {
	return ctx.Get(appcontext.Customer) != nil && ctx.InRange(archetype.KindInvoice) == nil, nil
}

// publish copies the checked-in patient and customer to the session context.
func publish(ctx *workflow.Context, global appcontext.Context) error {
	if global == nil {
		return nil
	}
	for _, key := range []appcontext.Key{appcontext.Patient, appcontext.Customer} {
		if obj := ctx.Get(key); obj != nil {
			if err := global.Set(key, obj); err != nil {
				return fmt.Errorf("failed to publish %s: %w", key, err)
			}
		}
	}
	return nil
}

func nameOf(obj archetype.Object) string {
	if fa, ok := obj.(archetype.FieldAccessor); ok {
		name, _ := fieldName.Lookup(fa)
		return name
	}
	return ""
}

func reasonOf(appt archetype.Object) string {
	if fa, ok := appt.(archetype.FieldAccessor); ok {
		reason, _ := fieldReason.Lookup(fa)
		return reason
	}
	return ""
}

func startOf(appt archetype.Object) time.Time {
	if fa, ok := appt.(archetype.FieldAccessor); ok {
		t, _ := fieldStartTime.Lookup(fa)
		return t
	}
	return time.Time{}
}
