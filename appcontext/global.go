package appcontext

import (
	"log/slog"
	"sync"

	"github.com/nomis52/vetflow/archetype"
)

// DefaultHistorySize is the number of selections remembered per slot.
const DefaultHistorySize = 25

// ChangeListener is told when a slot of a Global context changes. next is nil
// when the slot was cleared.
type ChangeListener func(key Key, prev, next archetype.Object)

// Global is the session-lifetime context. On top of Default it notifies
// listeners of slot changes and remembers recent selections per slot.
type Global struct {
	*Default

	logger      *slog.Logger
	historySize int

	mu        sync.Mutex
	listeners map[int]ChangeListener
	nextID    int
	history   map[Key][]archetype.Object
}

// Option configures a Global.
type Option func(*Global)

// WithHistorySize sets how many selections are kept per slot.
func WithHistorySize(n int) Option {
	return func(g *Global) {
		if n > 0 {
			g.historySize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Global) {
		g.logger = logger
	}
}

// NewGlobal creates an empty session context.
func NewGlobal(opts ...Option) *Global {
	g := &Global{
		Default:     New(),
		logger:      slog.Default(),
		historySize: DefaultHistorySize,
		listeners:   make(map[int]ChangeListener),
		history:     make(map[Key][]archetype.Object),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "global_context")
	return g
}

// OnChange registers l and returns a func that unregisters it.
func (g *Global) OnChange(l ChangeListener) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = l
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.listeners, id)
	}
}

func (g *Global) Set(key Key, obj archetype.Object) error {
	prev := g.Default.Get(key)
	if err := g.Default.Set(key, obj); err != nil {
		return err
	}
	if obj != nil {
		g.remember(key, obj)
	}
	g.notify(key, prev, obj)
	return nil
}

func (g *Global) Add(obj archetype.Object) {
	if obj == nil {
		return
	}
	_ = g.Set(KeyFor(obj.Kind()), obj)
}

func (g *Global) Remove(obj archetype.Object) {
	for _, k := range g.Default.removeAll(obj) {
		g.notify(k, obj, nil)
	}
}

// History returns recent selections for a slot, most recent first.
func (g *Global) History(key Key) []archetype.Object {
	g.mu.Lock()
	defer g.mu.Unlock()
	h := g.history[key]
	out := make([]archetype.Object, len(h))
	copy(out, h)
	return out
}

// Clear empties every slot and the selection history. Listeners are told
// about each slot that was cleared.
func (g *Global) Clear() {
	prev := make(map[Key]archetype.Object)
	for _, k := range g.Default.Keys() {
		prev[k] = g.Default.Get(k)
	}
	keys := g.Default.reset()

	g.mu.Lock()
	g.history = make(map[Key][]archetype.Object)
	g.mu.Unlock()

	for _, k := range keys {
		g.notify(k, prev[k], nil)
	}
	g.logger.Debug("context cleared", "slots", len(keys))
}

// remember moves obj to the front of the slot's history.
func (g *Global) remember(key Key, obj archetype.Object) {
	if key == Current {
		return
	}
	ref := obj.Reference()
	g.mu.Lock()
	defer g.mu.Unlock()
	h := g.history[key]
	next := make([]archetype.Object, 0, min(len(h)+1, g.historySize))
	next = append(next, obj)
	for _, o := range h {
		if len(next) == g.historySize {
			break
		}
		if o.Reference() != ref {
			next = append(next, o)
		}
	}
	g.history[key] = next
}

func (g *Global) notify(key Key, prev, next archetype.Object) {
	if prev == nil && next == nil {
		return
	}
	g.mu.Lock()
	listeners := make([]ChangeListener, 0, len(g.listeners))
	for _, l := range g.listeners {
		listeners = append(listeners, l)
	}
	g.mu.Unlock()

	for _, l := range listeners {
		l(key, prev, next)
	}
}
