package workflow

import (
	"fmt"

	"github.com/nomis52/vetflow/ui"
)

// Print prints the context object of a kind.
type Print struct {
	Base
	kind      string
	title     string
	allowSkip bool
}

// PrintOption configures a Print.
type PrintOption func(*Print)

// PrintAllowSkip offers a Skip action.
func PrintAllowSkip() PrintOption {
	return func(p *Print) {
		p.allowSkip = true
	}
}

// PrintTitle sets the dialog title.
func PrintTitle(title string) PrintOption {
	return func(p *Print) {
		p.title = title
	}
}

// NewPrint creates a Print.
func NewPrint(kind string, opts ...PrintOption) *Print {
	p := &Print{kind: kind, title: "Print " + kind}
	p.SetName("print " + kind)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Print) Start(ctx *Context, done Done) {
	logger := ctx.LoggerFor(p)
	obj := ctx.InRange(p.kind)
	if obj == nil {
		logger.Warn("no object to print", "kind", p.kind)
		done(Cancel(fmt.Errorf("%w: %s", ErrMissingObject, p.kind)))
		return
	}
	ctx.UI().Print(ui.PrintRequest{
		Title:     p.title,
		Object:    obj,
		AllowSkip: p.allowSkip,
		HelpTopic: ctx.HelpTopic(),
	}, func(r ui.Reply) {
		switch {
		case r.Err != nil:
			logger.Error("print failed", "object", obj.Reference().String(), "error", r.Err)
			ctx.UI().ShowError(p.title, r.Err)
			done(Cancel(r.Err))
		case r.Action == ui.OK:
			logger.Info("object printed", "object", obj.Reference().String())
			done(Complete())
		case r.Action == ui.Skip && p.allowSkip:
			done(Skip())
		default:
			done(Cancel(nil))
		}
	})
}
