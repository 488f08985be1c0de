package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nomis52/vetflow/appcontext"
	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/store"
	"github.com/nomis52/vetflow/ui"
)

func patient(name string) *archetype.Entity {
	e := archetype.NewEntity(archetype.KindPatient)
	e.SetName(name)
	_ = e.SetField("species", "CANINE")
	return e
}

func TestSelect(t *testing.T) {
	t.Run("required with no candidates then cancel", func(t *testing.T) {
		f := newFixture(t)
		sel := NewSelect([]string{string(appcontext.Patient)})

		var r result
		sel.Start(f.ctx, r.done())
		dialog := f.queue.Pending()[0]
		assert.Empty(t, dialog.Candidates)
		assert.NotContains(t, dialog.Actions, ui.Skip)
		f.respond(t, ui.Response{Action: ui.Cancel})

		assert.Equal(t, Cancelled, r.status())
		assert.NoError(t, r.got[0].Err)
		assert.Equal(t, SelectionCancelled, sel.Value().Kind)
		assert.Empty(t, f.ctx.Objects())
	})

	t.Run("ok adds the selection to the context", func(t *testing.T) {
		f := newFixture(t)
		fido := f.save(t, patient("Fido"))
		f.save(t, patient("Bella"))
		sel := NewSelect([]string{string(appcontext.Patient)})

		var r result
		sel.Start(f.ctx, r.done())
		dialog := f.respond(t, ui.Response{Action: ui.OK, Selected: fido.Reference()})
		require.Len(t, dialog.Candidates, 2)
		assert.Equal(t, "Bella", dialog.Candidates[0].(*archetype.Entity).Name())

		assert.Equal(t, Completed, r.status())
		assert.Equal(t, Selected, sel.Value().Kind)
		assert.Equal(t, fido.Reference(), sel.Value().Object.Reference())
		assert.Equal(t, fido.Reference(), f.ctx.Get(appcontext.Patient).Reference())
	})

	t.Run("filter limits candidates", func(t *testing.T) {
		f := newFixture(t)
		f.save(t, patient("Fido"))
		bella := f.save(t, patient("Bella"))
		sel := NewSelect([]string{string(appcontext.Patient)},
			SelectTitle("Patient"),
			SelectFilter(func(obj archetype.Object) bool {
				return obj.Reference() == bella.Reference()
			}),
		)

		var r result
		sel.Start(f.ctx, r.done())
		dialog := f.respond(t, ui.Response{Action: ui.OK, Selected: bella.Reference()})
		assert.Equal(t, "Patient", dialog.Title)
		require.Len(t, dialog.Candidates, 1)
		assert.Equal(t, Completed, r.status())
	})

	t.Run("optional skip", func(t *testing.T) {
		f := newFixture(t)
		sel := Optional(NewSelect([]string{string(appcontext.Patient)}))

		var r result
		sel.Start(f.ctx, r.done())
		assert.Contains(t, f.queue.Pending()[0].Actions, ui.Skip)
		f.respond(t, ui.Response{Action: ui.Skip})

		assert.Equal(t, Skipped, r.status())
		assert.Equal(t, SelectionSkipped, sel.Value().Kind)
	})

	t.Run("stale browser reply is ignored", func(t *testing.T) {
		f := newFixture(t)
		fido := f.save(t, patient("Fido"))
		sel := NewSelect([]string{string(appcontext.Patient)})

		var first, second result
		sel.Start(f.ctx, first.done())
		sel.Start(f.ctx, second.done())
		pending := f.queue.Pending()
		require.Len(t, pending, 2)

		require.NoError(t, f.queue.Respond(pending[0].ID, ui.Response{Action: ui.OK, Selected: fido.Reference()}))
		assert.Equal(t, 0, first.calls)
		assert.Nil(t, f.ctx.Get(appcontext.Patient))

		require.NoError(t, f.queue.Respond(pending[1].ID, ui.Response{Action: ui.Cancel}))
		assert.Equal(t, 0, first.calls)
		assert.Equal(t, Cancelled, second.status())
	})

	t.Run("create runs the create task", func(t *testing.T) {
		f := newFixture(t)
		create := NewEdit(archetype.KindPatient,
			CreateFirst(Properties{}.Set(archetype.FieldName, "Rex").Set("species", "FELINE")),
			InBackground(),
		)
		sel := NewSelect([]string{string(appcontext.Patient)}, WithCreate(create))

		var r result
		sel.Start(f.ctx, r.done())
		assert.Contains(t, f.queue.Pending()[0].Actions, ui.Create)
		f.respond(t, ui.Response{Action: ui.Create})

		assert.Equal(t, Completed, r.status())
		require.Equal(t, Selected, sel.Value().Kind)
		assert.Equal(t, "Rex", sel.Value().Object.(*archetype.Entity).Name())
		saved, err := f.store.Find(context.Background(), archetype.KindPatient)
		require.NoError(t, err)
		assert.Len(t, saved, 1)
	})

	t.Run("create evaluating to an object selects it", func(t *testing.T) {
		f := newFixture(t)
		sel := NewSelect([]string{string(appcontext.Patient)},
			WithCreate(NewCreate(archetype.KindPatient, Properties{}.Set(archetype.FieldName, "Tom"))))

		var r result
		sel.Start(f.ctx, r.done())
		f.respond(t, ui.Response{Action: ui.Create})

		assert.Equal(t, Completed, r.status())
		require.Equal(t, Selected, sel.Value().Kind)
		assert.Equal(t, "Tom", sel.Value().Object.(*archetype.Entity).Name())
	})

	t.Run("create outcomes replace the previous run's selection", func(t *testing.T) {
		f := newFixture(t)
		fido := f.save(t, patient("Fido"))
		create := newStub("create patient", nil, Complete())
		sel := NewSelect([]string{string(appcontext.Patient)}, WithCreate(create))

		var first result
		sel.Start(f.ctx, first.done())
		f.respond(t, ui.Response{Action: ui.OK, Selected: fido.Reference()})
		require.Equal(t, Selected, sel.Value().Kind)

		tests := []struct {
			name   string
			result Result
			status Status
			kind   SelectionKind
		}{
			{"cancelled", Cancel(errDiskFull), Cancelled, SelectionCancelled},
			{"skipped", Skip(), Skipped, SelectionSkipped},
			{"completed without an object", Complete(), Cancelled, SelectionCancelled},
		}
		for _, tt := range tests {
			create.result = tt.result
			var r result
			sel.Start(f.ctx, r.done())
			f.respond(t, ui.Response{Action: ui.Create})

			assert.Equal(t, tt.status, r.status(), tt.name)
			assert.Equal(t, 1, r.calls, tt.name)
			assert.Equal(t, tt.kind, sel.Value().Kind, tt.name)
			assert.Nil(t, sel.Value().Object, tt.name)
		}
	})

	t.Run("create ignores objects from the parent scope", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.global.Set(appcontext.Patient, patient("Bella")))
		sel := NewSelect([]string{string(appcontext.Patient)},
			WithCreate(newStub("create patient", nil, Complete())))

		var r result
		sel.Start(f.ctx, r.done())
		f.respond(t, ui.Response{Action: ui.Create})

		assert.Equal(t, Cancelled, r.status())
		assert.Equal(t, SelectionCancelled, sel.Value().Kind)
		assert.Nil(t, sel.Value().Object)
	})

	t.Run("store failure cancels", func(t *testing.T) {
		f := newFixture(t)
		tctx := NewContext(context.Background(), f.global, Services{Store: brokenFind{f.store}, UI: f.queue})
		sel := NewSelect([]string{string(appcontext.Patient)})

		var r result
		sel.Start(tctx, r.done())
		assert.Equal(t, Cancelled, r.status())
		assert.ErrorIs(t, r.got[0].Err, errDiskFull)
		assert.Empty(t, f.queue.Pending())
		assert.Len(t, f.queue.Errors(), 1)
	})
}

type brokenFind struct {
	store.Store
}

func (brokenFind) Find(context.Context, ...string) ([]archetype.Object, error) {
	return nil, errDiskFull
}

func TestEdit(t *testing.T) {
	t.Run("background create then interactive edit", func(t *testing.T) {
		f := newFixture(t)
		wf := New("weigh",
			NewEdit(archetype.KindPatient,
				CreateFirst(Properties{}.Set(archetype.FieldName, "Fido")),
				InBackground(),
				Populate(func(_ *Context, obj archetype.Object) error {
					return obj.(archetype.FieldSetter).SetField("species", "CANINE")
				}),
			),
			NewEdit(archetype.KindPatientWeight,
				CreateFirst(Properties{}.SetFunc("patient", Ref(string(appcontext.Patient)))),
			),
		)

		var r result
		wf.Start(f.ctx, r.done())
		require.Equal(t, 0, r.calls)

		dialog := f.queue.Pending()[0]
		assert.Equal(t, ui.DialogEdit, dialog.Type)
		assert.Equal(t, archetype.KindPatientWeight, dialog.Object.Kind())
		assert.NotContains(t, dialog.Actions, ui.Delete)
		assert.Equal(t, dialog.Object.Reference(), f.ctx.Get(appcontext.Current).Reference())
		assert.Nil(t, f.global.Get(appcontext.Current), "current object stays in the workflow scope")

		f.respond(t, ui.Response{Action: ui.OK, Fields: map[string]any{"weight": 12.5}})
		assert.Equal(t, Completed, r.status())
		assert.Nil(t, f.ctx.Get(appcontext.Current))

		weights, err := f.store.Find(context.Background(), archetype.KindPatientWeight)
		require.NoError(t, err)
		require.Len(t, weights, 1)
		w := weights[0].(*archetype.Entity)
		got, err := archetype.NewField[float64]("weight").Get(w)
		require.NoError(t, err)
		assert.Equal(t, 12.5, got)
		pat, err := archetype.NewField[archetype.Reference]("patient").Get(w)
		require.NoError(t, err)
		assert.Equal(t, f.ctx.Get(appcontext.Patient).Reference(), pat)
		assert.False(t, w.IsNew())
	})

	t.Run("invalid reply shows the editor again", func(t *testing.T) {
		f := newFixture(t)
		edit := NewEdit(archetype.KindPatient, CreateFirst(nil))

		var r result
		edit.Start(f.ctx, r.done())
		f.respond(t, ui.Response{Action: ui.OK, Fields: map[string]any{archetype.FieldName: "Fido"}})
		assert.Equal(t, 0, r.calls)
		require.Len(t, f.queue.Errors(), 1)
		assert.Contains(t, f.queue.Errors()[0].Message, "species")

		f.respond(t, ui.Response{Action: ui.OK, Fields: map[string]any{"species": "CANINE"}})
		assert.Equal(t, Completed, r.status())
	})

	t.Run("invalid background edit falls back to the editor", func(t *testing.T) {
		f := newFixture(t)
		edit := NewEdit(archetype.KindPatient, CreateFirst(nil), InBackground())

		var r result
		edit.Start(f.ctx, r.done())
		assert.Len(t, f.queue.Pending(), 1)
		f.respond(t, ui.Response{Action: ui.Cancel})
		assert.Equal(t, Cancelled, r.status())
	})

	t.Run("invalid background edit fails without editor", func(t *testing.T) {
		f := newFixture(t)
		edit := NewEdit(archetype.KindPatient, CreateFirst(nil), InBackground(), ShowEditorOnError(false))

		var r result
		edit.Start(f.ctx, r.done())
		assert.Empty(t, f.queue.Pending())
		assert.Equal(t, Cancelled, r.status())
		assert.ErrorIs(t, r.got[0].Err, archetype.ErrInvalid)
		assert.Len(t, f.queue.Errors(), 1)
	})

	t.Run("skip deletes when configured", func(t *testing.T) {
		f := newFixture(t)
		fido := f.save(t, patient("Fido"))
		f.ctx.Add(fido)
		edit := NewEdit(archetype.KindPatient, AllowSkip(), DeleteOnCancelOrSkip())

		var r result
		edit.Start(f.ctx, r.done())
		dialog := f.respond(t, ui.Response{Action: ui.Skip})
		assert.Contains(t, dialog.Actions, ui.Delete)

		assert.Equal(t, Skipped, r.status())
		assert.Nil(t, f.ctx.Get(appcontext.Patient))
		_, err := f.store.Get(context.Background(), fido.Reference())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete removes the object", func(t *testing.T) {
		f := newFixture(t)
		fido := f.save(t, patient("Fido"))

		var r result
		NewEdit(archetype.KindPatient, ForObject(fido)).Start(f.ctx, r.done())
		f.respond(t, ui.Response{Action: ui.Delete})

		assert.Equal(t, Cancelled, r.status())
		_, err := f.store.Get(context.Background(), fido.Reference())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("missing object cancels", func(t *testing.T) {
		f := newFixture(t)
		var r result
		NewEdit(archetype.KindPatient).Start(f.ctx, r.done())
		assert.Equal(t, Cancelled, r.status())
		assert.ErrorIs(t, r.got[0].Err, ErrMissingObject)
	})

	t.Run("save failure cancels", func(t *testing.T) {
		f := newFixture(t)
		tctx := NewContext(context.Background(), f.global, Services{Store: failingStore{f.store}, UI: f.queue})

		var r result
		NewEdit(archetype.KindPatient, ForObject(patient("Fido")), InBackground()).Start(tctx, r.done())
		assert.Equal(t, Cancelled, r.status())
		assert.ErrorIs(t, r.got[0].Err, errDiskFull)
	})
}

func TestNodeCondition(t *testing.T) {
	status := archetype.NewField[string]("status")
	tests := []struct {
		name       string
		status     any
		negate     bool
		want       bool
		wantStatus Status
		noObject   bool
	}{
		{name: "completed matches", status: "COMPLETED", want: true, wantStatus: Completed},
		{name: "pending does not match", status: "PENDING", want: false, wantStatus: Completed},
		{name: "negated", status: "PENDING", negate: true, want: true, wantStatus: Completed},
		{name: "unset compares as zero", status: nil, want: false, wantStatus: Completed},
		{name: "missing object cancels", noObject: true, want: false, wantStatus: Cancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if !tt.noObject {
				task := archetype.NewEntity(archetype.KindCustomerTask)
				require.NoError(t, task.SetField("status", tt.status))
				f.ctx.Add(task)
			}
			var cond *NodeCondition[string]
			if tt.negate {
				cond = NewNodeNotCondition(archetype.KindCustomerTask, status, "COMPLETED")
			} else {
				cond = NewNodeCondition(archetype.KindCustomerTask, status, "COMPLETED")
			}

			var r result
			cond.Start(f.ctx, r.done())
			assert.Equal(t, tt.wantStatus, r.status())
			assert.Equal(t, tt.want, cond.Value())
			if tt.noObject {
				assert.ErrorIs(t, r.got[0].Err, ErrMissingObject)
			}
		})
	}

	t.Run("times compare by instant", func(t *testing.T) {
		f := newFixture(t)
		at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		appt := archetype.NewEntity(archetype.KindAppointment)
		require.NoError(t, appt.SetField("startTime", at.Format(time.RFC3339)))
		f.ctx.Add(appt)

		cond := NewNodeCondition(archetype.KindAppointment, archetype.NewField[time.Time]("startTime"), at.In(time.FixedZone("AEST", 10*3600)))
		var r result
		cond.Start(f.ctx, r.done())
		assert.Equal(t, Completed, r.status())
		assert.True(t, cond.Value())
	})
}

func TestNodeEval(t *testing.T) {
	f := newFixture(t)
	e := archetype.NewEntity(archetype.KindPatientWeight)
	require.NoError(t, e.SetField("weight", 4.2))
	f.ctx.Add(e)

	eval := NewNodeEval(archetype.KindPatientWeight, archetype.NewField[float64]("weight"))
	var r result
	eval.Start(f.ctx, r.done())
	assert.Equal(t, Completed, r.status())
	assert.Equal(t, 4.2, eval.Value())

	missing := NewNodeEval(archetype.KindPatientWeight, archetype.NewField[string]("units"))
	var r2 result
	missing.Start(f.ctx, r2.done())
	assert.Equal(t, Cancelled, r2.status())
	assert.ErrorIs(t, r2.got[0].Err, archetype.ErrFieldNotSet)
}

func TestEvalFunc(t *testing.T) {
	f := newFixture(t)
	ok := NewEvalFunc("answer", func(*Context) (int, error) { return 42, nil })
	var r result
	ok.Start(f.ctx, r.done())
	assert.Equal(t, 42, ok.Value())

	bad := NewEvalFunc("broken", func(*Context) (int, error) { return 0, errDiskFull })
	var r2 result
	bad.Start(f.ctx, r2.done())
	assert.Equal(t, Cancelled, r2.status())
}

func TestConfirmation(t *testing.T) {
	f := newFixture(t)
	c := NewConfirmation("Print", "Print the invoice?")

	var r result
	c.Start(f.ctx, r.done())
	dialog := f.respond(t, ui.Response{Action: ui.OK})
	assert.Equal(t, []ui.Action{ui.OK, ui.Cancel}, dialog.Actions)
	assert.True(t, c.Value())

	err := f.queue.Respond("nope", ui.Response{Action: ui.OK})
	assert.ErrorIs(t, err, ui.ErrUnknownDialog)
}

func TestUpdate(t *testing.T) {
	t.Run("applies and saves", func(t *testing.T) {
		f := newFixture(t)
		mock := clock.NewMock()
		mock.Set(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC))
		tctx := NewContext(context.Background(), f.global, Services{Store: f.store, UI: f.queue, Clock: mock})

		appt := archetype.NewEntity(archetype.KindAppointment)
		tctx.Add(appt)
		fido := patient("Fido")
		tctx.Add(fido)

		update := NewUpdate(archetype.KindAppointment, Properties{}.
			Set("status", "CHECKED_IN").
			SetFunc("arrivalTime", Now()).
			SetFunc("patient", func(ctx *Context) any { return ctx.Get(appcontext.Patient) }))
		var r result
		update.Start(tctx, r.done())
		require.Equal(t, Completed, r.status())

		saved, err := f.store.Get(context.Background(), appt.Reference())
		require.NoError(t, err)
		e := saved.(*archetype.Entity)
		st, _ := archetype.NewField[string]("status").Lookup(e)
		assert.Equal(t, "CHECKED_IN", st)
		arrived, err := archetype.NewField[time.Time]("arrivalTime").Get(e)
		require.NoError(t, err)
		assert.True(t, arrived.Equal(mock.Now()))
		ref, err := archetype.NewField[archetype.Reference]("patient").Get(e)
		require.NoError(t, err)
		assert.Equal(t, fido.Reference(), ref)
	})

	t.Run("no save", func(t *testing.T) {
		f := newFixture(t)
		appt := archetype.NewEntity(archetype.KindAppointment)
		var r result
		NewUpdate(archetype.KindAppointment, Properties{}.Set("status", "BILLED"), UpdateObject(appt), NoSave()).
			Start(f.ctx, r.done())
		assert.Equal(t, Completed, r.status())
		_, err := f.store.Get(context.Background(), appt.Reference())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("missing object", func(t *testing.T) {
		f := newFixture(t)
		var r result
		NewUpdate(archetype.KindAppointment, nil).Start(f.ctx, r.done())
		assert.ErrorIs(t, r.got[0].Err, ErrMissingObject)
	})
}

func TestReload(t *testing.T) {
	f := newFixture(t)
	fido := f.save(t, patient("Fido"))
	f.ctx.Add(fido.Clone())
	fido.SetName("Fido II")
	f.save(t, fido)

	var r result
	NewReload(archetype.KindPatient).Start(f.ctx, r.done())
	assert.Equal(t, Completed, r.status())
	assert.Equal(t, "Fido II", f.ctx.Get(appcontext.Patient).(*archetype.Entity).Name())
}

func TestPrint(t *testing.T) {
	tests := []struct {
		name       string
		allowSkip  bool
		resp       ui.Response
		wantStatus Status
	}{
		{name: "printed", resp: ui.Response{Action: ui.OK}, wantStatus: Completed},
		{name: "skipped", allowSkip: true, resp: ui.Response{Action: ui.Skip}, wantStatus: Skipped},
		{name: "printer failure", resp: ui.Response{Action: ui.OK, Error: "printer offline"}, wantStatus: Cancelled},
		{name: "cancelled", resp: ui.Response{Action: ui.Cancel}, wantStatus: Cancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.ctx.Add(archetype.NewEntity(archetype.KindClinicalEvent))
			var opts []PrintOption
			if tt.allowSkip {
				opts = append(opts, PrintAllowSkip())
			}

			var r result
			NewPrint(archetype.KindClinicalEvent, opts...).Start(f.ctx, r.done())
			f.respond(t, tt.resp)
			assert.Equal(t, tt.wantStatus, r.status())
		})
	}
}

func TestLocal(t *testing.T) {
	f := newFixture(t)
	fido := patient("Fido")
	owner := archetype.NewEntity(archetype.KindCustomer)

	inner := NewSynchronous("pick", func(ctx *Context) error {
		ctx.Add(fido)
		ctx.Add(owner)
		return nil
	})
	var r result
	NewLocal(inner, appcontext.Patient).Start(f.ctx, r.done())

	assert.Equal(t, Completed, r.status())
	assert.Equal(t, fido.Reference(), f.ctx.Get(appcontext.Patient).Reference())
	assert.Nil(t, f.ctx.Get(appcontext.Customer))
}

func TestSynchronousError(t *testing.T) {
	f := newFixture(t)
	var r result
	NewSynchronous("boom", func(*Context) error { return errors.New("no printer") }).Start(f.ctx, r.done())
	assert.Equal(t, Cancelled, r.status())
	require.Len(t, f.queue.Errors(), 1)
	assert.Equal(t, "boom", f.queue.Errors()[0].Title)
}

func TestTracingListener(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	f := newFixture(t)
	tctx := NewContext(context.Background(), f.global, Services{
		Store:    f.store,
		UI:       f.queue,
		Listener: NewTracingListener(context.Background(), provider.Tracer("test")),
	})
	wf := New("checkin",
		newStub("ok", nil, Complete()),
		newStub("fails", nil, Cancel(errDiskFull)),
	).With(WithContext(tctx))

	var r result
	wf.Run(r.done())
	require.Equal(t, Cancelled, r.status())

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	byName := make(map[string]sdktrace.ReadOnlySpan)
	for _, s := range spans {
		byName[s.Name()] = s
	}
	root := byName["checkin"]
	require.NotNil(t, root)
	assert.Equal(t, root.SpanContext().SpanID(), byName["ok"].Parent().SpanID())
	assert.Equal(t, root.SpanContext().SpanID(), byName["fails"].Parent().SpanID())
	assert.Equal(t, "disk full", byName["fails"].Status().Description)
}
