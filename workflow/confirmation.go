package workflow

import (
	"github.com/nomis52/vetflow/ui"
)

// Confirmation asks a question and evaluates to the answer. Yes and OK are
// true, No is false, anything else cancels.
type Confirmation struct {
	Eval[bool]
	title   string
	message string
	buttons []ui.Action
}

// ConfirmationOption configures a Confirmation.
type ConfirmationOption func(*Confirmation)

// YesNo shows Yes, No and Cancel instead of OK and Cancel.
func YesNo() ConfirmationOption {
	return func(c *Confirmation) {
		c.buttons = ui.YesNoCancel
	}
}

// NewConfirmation creates a Confirmation.
func NewConfirmation(title, message string, opts ...ConfirmationOption) *Confirmation {
	c := &Confirmation{title: title, message: message, buttons: ui.OKCancel}
	c.SetName("confirm " + title)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Confirmation) Start(ctx *Context, done Done) {
	ctx.UI().Confirm(ui.ConfirmRequest{
		Title:     c.title,
		Message:   c.message,
		Buttons:   c.buttons,
		HelpTopic: ctx.HelpTopic(),
	}, func(r ui.Reply) {
		switch r.Action {
		case ui.Yes, ui.OK:
			c.SetValue(true, done)
		case ui.No:
			c.SetValue(false, done)
		default:
			done(Cancel(nil))
		}
	})
}
