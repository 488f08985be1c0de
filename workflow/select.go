package workflow

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/ui"
)

// SelectionKind tags a Selection.
type SelectionKind int

const (
	SelectionNone SelectionKind = iota
	Selected
	SelectionSkipped
	SelectionCancelled
)

// Selection is the outcome of a Select task. Object is set only when Kind is Selected.
type Selection struct {
	Kind   SelectionKind
	Object archetype.Object
}

// Select asks the user to pick an object of one of its kinds from the store.
// The chosen object is added to the context.
type Select struct {
	Eval[Selection]
	kinds  []string
	title  string
	create Task
	filter func(archetype.Object) bool

	mu   sync.Mutex
	gen  uint64
	live bool
}

// SelectOption configures a Select.
type SelectOption func(*Select)

// WithCreate offers a Create action that runs task. Task must add the new
// object to the context.
func WithCreate(task Task) SelectOption {
	return func(s *Select) {
		s.create = task
	}
}

// SelectTitle sets the browser title.
func SelectTitle(title string) SelectOption {
	return func(s *Select) {
		s.title = title
	}
}

// SelectFilter limits the candidates offered to those keep accepts.
func SelectFilter(keep func(archetype.Object) bool) SelectOption {
	return func(s *Select) {
		s.filter = keep
	}
}

// NewSelect creates a Select for kinds.
func NewSelect(kinds []string, opts ...SelectOption) *Select {
	s := &Select{kinds: kinds}
	s.SetName("select " + strings.Join(kinds, ","))
	s.title = "Select " + strings.Join(kinds, ", ")
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Select) Start(ctx *Context, done Done) {
	logger := ctx.LoggerFor(s)
	s.setValue(Selection{})
	candidates, err := ctx.Store().Find(ctx.Ctx(), s.kinds...)
	if err != nil {
		err = fmt.Errorf("failed to query %s: %w", strings.Join(s.kinds, ", "), err)
		logger.Error("select failed", "error", err)
		ctx.UI().ShowError(s.title, err)
		s.finish(Selection{Kind: SelectionCancelled}, Cancel(err), done)
		return
	}
	if s.filter != nil {
		candidates = slices.DeleteFunc(candidates, func(obj archetype.Object) bool {
			return !s.filter(obj)
		})
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.live = true
	s.mu.Unlock()

	ctx.UI().Browse(ui.BrowseRequest{
		Title:       s.title,
		Kinds:       s.kinds,
		Candidates:  candidates,
		Required:    s.Required(),
		AllowCreate: s.create != nil,
		HelpTopic:   ctx.HelpTopic(),
	}, func(r ui.Reply) {
		if !s.claim(gen) {
			logger.Debug("ignoring reply from stale browser", "action", r.Action)
			return
		}
		switch r.Action {
		case ui.OK:
			if r.Selected == nil {
				s.finish(Selection{Kind: SelectionCancelled}, Cancel(nil), done)
				return
			}
			ctx.Add(r.Selected)
			logger.Info("object selected", "object", r.Selected.Reference().String())
			s.SetValue(Selection{Kind: Selected, Object: r.Selected}, done)
		case ui.Create:
			if s.create == nil {
				s.finish(Selection{Kind: SelectionCancelled}, Cancel(nil), done)
				return
			}
			s.startCreate(ctx, logger, done)
		case ui.Skip:
			s.finish(Selection{Kind: SelectionSkipped}, Skip(), done)
		default:
			s.finish(Selection{Kind: SelectionCancelled}, Cancel(nil), done)
		}
	})
}

// startCreate runs the create task. The selection is the object it evaluates
// to, or failing that a new object of a selectable kind in this scope.
func (s *Select) startCreate(ctx *Context, logger *slog.Logger, done Done) {
	before := ctx.OwnInRange(s.kinds...)
	ctx.start(s.Name(), s.create, func(cr Result) {
		switch cr.Status {
		case Completed:
			var obj archetype.Object
			if eval, ok := s.create.(EvalTask[archetype.Object]); ok {
				obj = eval.Value()
			}
			if obj == nil {
				if own := ctx.OwnInRange(s.kinds...); own != nil && own != before {
					obj = own
				}
			}
			if obj == nil || !archetype.MatchesAny(obj.Kind(), s.kinds...) {
				logger.Warn("create task completed without creating an object")
				s.finish(Selection{Kind: SelectionCancelled}, Cancel(nil), done)
				return
			}
			logger.Info("object created", "object", obj.Reference().String())
			s.finish(Selection{Kind: Selected, Object: obj}, cr, done)
		case Skipped:
			s.finish(Selection{Kind: SelectionSkipped}, cr, done)
		default:
			s.finish(Selection{Kind: SelectionCancelled}, cr, done)
		}
	})
}

// claim reports whether a reply for generation gen is the first reply to the
// live browser.
func (s *Select) claim(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.live {
		return false
	}
	s.live = false
	return true
}

func (s *Select) setValue(v Selection) {
	s.Eval.mu.Lock()
	s.value = v
	s.Eval.mu.Unlock()
}

func (s *Select) finish(v Selection, r Result, done Done) {
	s.setValue(v)
	done(r)
}
