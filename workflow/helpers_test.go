package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nomis52/vetflow/appcontext"
	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/store"
	"github.com/nomis52/vetflow/store/kv/kvmap"
	"github.com/nomis52/vetflow/store/kvstore"
	"github.com/nomis52/vetflow/ui"
)

type fixture struct {
	queue  *ui.Queue
	store  store.Store
	global *appcontext.Global
	events []Event
	ctx    *Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		queue:  ui.NewQueue(),
		store:  kvstore.New(kvmap.NewBucket()),
		global: appcontext.NewGlobal(),
	}
	f.ctx = f.newContext(context.Background())
	return f
}

func (f *fixture) newContext(ctx context.Context) *Context {
	return NewContext(ctx, f.global, Services{
		Store: f.store,
		UI:    f.queue,
		Listener: ListenerFunc(func(e Event) {
			f.events = append(f.events, e)
		}),
	})
}

// respond answers the only pending dialog.
func (f *fixture) respond(t *testing.T, resp ui.Response) ui.Dialog {
	t.Helper()
	pending := f.queue.Pending()
	require.Len(t, pending, 1, "expected exactly one pending dialog")
	require.NoError(t, f.queue.Respond(pending[0].ID, resp))
	return pending[0]
}

func (f *fixture) save(t *testing.T, e *archetype.Entity) *archetype.Entity {
	t.Helper()
	require.NoError(t, f.store.Save(context.Background(), e))
	return e
}

// result captures a single Done.
type result struct {
	got   []Result
	calls int
}

func (r *result) done() Done {
	return func(res Result) {
		r.calls++
		r.got = append(r.got, res)
	}
}

func (r *result) status() Status {
	if len(r.got) == 0 {
		return 0
	}
	return r.got[len(r.got)-1].Status
}

// stub is a scripted task.
type stub struct {
	Base
	result  Result
	starts  *[]string
	panics  bool
	twice   bool
	async   bool
	pending Done
}

func newStub(name string, starts *[]string, r Result) *stub {
	s := &stub{result: r, starts: starts}
	s.SetName(name)
	return s
}

func (s *stub) Start(ctx *Context, done Done) {
	if s.starts != nil {
		*s.starts = append(*s.starts, s.Name())
	}
	if s.panics {
		panic("stub exploded")
	}
	if s.async {
		s.pending = done
		return
	}
	done(s.result)
	if s.twice {
		done(s.result)
	}
}

// failingStore fails every Save.
type failingStore struct {
	store.Store
}

var errDiskFull = errors.New("disk full")

func (failingStore) Save(context.Context, archetype.Object) error {
	return errDiskFull
}
