package workflow

import (
	"context"
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/nomis52/vetflow/appcontext"
	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/logging"
	"github.com/nomis52/vetflow/store"
	"github.com/nomis52/vetflow/ui"
)

// Services are the collaborators tasks use. Store and UI are required; the
// rest have defaults.
type Services struct {
	Store      store.Store
	UI         ui.Host
	Archetypes *archetype.Registry
	Clock      clock.Clock
	Logger     *slog.Logger
	// LoggerHook, when set, wraps the logger handed to each task.
	LoggerHook logging.LoggerHook
	// Listener receives task events.
	Listener Listener
}

// Context is the scope a workflow's tasks share. It is an appcontext.Local
// whose parent is usually the session's Global context, plus the services
// tasks need.
type Context struct {
	*appcontext.Local

	ctx       context.Context
	services  Services
	helpTopic string
}

// NewContext creates a task context. parent may be nil.
func NewContext(ctx context.Context, parent appcontext.Context, services Services) *Context {
	if services.Archetypes == nil {
		services.Archetypes = archetype.DefaultRegistry()
	}
	if services.Clock == nil {
		services.Clock = clock.New()
	}
	if services.Logger == nil {
		services.Logger = slog.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{
		Local:    appcontext.NewLocal(parent),
		ctx:      ctx,
		services: services,
	}
}

// Child returns a child scope sharing this context's services.
func (c *Context) Child() *Context {
	return &Context{
		Local:     appcontext.NewLocal(c),
		ctx:       c.ctx,
		services:  c.services,
		helpTopic: c.helpTopic,
	}
}

// Ctx returns the Go context for blocking collaborator calls.
func (c *Context) Ctx() context.Context { return c.ctx }

func (c *Context) Store() store.Store             { return c.services.Store }
func (c *Context) UI() ui.Host                    { return c.services.UI }
func (c *Context) Archetypes() *archetype.Registry { return c.services.Archetypes }
func (c *Context) Clock() clock.Clock             { return c.services.Clock }
func (c *Context) Logger() *slog.Logger           { return c.services.Logger }

// LoggerFor returns the logger a task should use.
func (c *Context) LoggerFor(t Task) *slog.Logger {
	logger := c.services.Logger.With("task", t.Name())
	if c.services.LoggerHook != nil {
		return c.services.LoggerHook.LoggerForTask(logger, t.Name())
	}
	return logger
}

// HelpTopic returns the help topic dialogs should link to.
func (c *Context) HelpTopic() string { return c.helpTopic }

// SetHelpTopic sets the help topic.
func (c *Context) SetHelpTopic(topic string) { c.helpTopic = topic }

func (c *Context) emit(e Event) {
	if c.services.Listener == nil {
		return
	}
	e.Time = c.services.Clock.Now()
	c.services.Listener.OnEvent(e)
}

// start runs task on behalf of parent, reporting events around it.
func (c *Context) start(parent string, task Task, done Done) {
	name := task.Name()
	c.emit(Event{Type: EventStarted, Task: name, Parent: parent})
	task.Start(c, once(c.services.Logger, name, func(r Result) {
		c.emit(Event{Type: eventFor(r.Status), Task: name, Parent: parent, Err: r.Err})
		done(r)
	}))
}

// object returns explicit if set, else the context object matching kind.
func (c *Context) object(explicit archetype.Object, kind string) archetype.Object {
	if explicit != nil {
		return explicit
	}
	if kind == "" {
		return nil
	}
	return c.InRange(kind)
}
