// Package ui defines how workflow tasks talk to the user.
//
// Tasks never block waiting for input. They hand a request and a reply
// callback to a Host and return; the Host calls the callback once the user
// answers. Queue is the Host used by both the HTTP server and the console
// client: it holds pending dialogs until a reply arrives for them.
package ui

import (
	"github.com/nomis52/vetflow/archetype"
)

// Action is a user's answer to a dialog.
type Action string

const (
	OK     Action = "ok"
	Yes    Action = "yes"
	No     Action = "no"
	Skip   Action = "skip"
	Cancel Action = "cancel"
	Close  Action = "close"
	Create Action = "create"
	Delete Action = "delete"
)

// Button sets for confirmations.
var (
	OKCancel    = []Action{OK, Cancel}
	YesNoCancel = []Action{Yes, No, Cancel}
)

// Reply is delivered to the task that opened a dialog.
type Reply struct {
	Action Action
	// Selected is the chosen object for a browse dialog answered with OK.
	Selected archetype.Object
	// Fields are edits made in an edit dialog.
	Fields map[string]any
	// Err is set when the host failed to complete the request, for example a print failure.
	Err error
}

// ReplyFunc receives a dialog's reply. It is called at most once.
type ReplyFunc func(Reply)

// ConfirmRequest asks a question.
type ConfirmRequest struct {
	Title     string
	Message   string
	Buttons   []Action
	HelpTopic string
}

// BrowseRequest asks the user to pick one of Candidates.
type BrowseRequest struct {
	Title       string
	Kinds       []string
	Candidates  []archetype.Object
	Required    bool
	AllowCreate bool
	HelpTopic   string
}

// EditRequest shows an editor for Object.
type EditRequest struct {
	Title       string
	Object      archetype.Object
	AllowSkip   bool
	AllowDelete bool
	HelpTopic   string
}

// PrintRequest prints Object.
type PrintRequest struct {
	Title     string
	Object    archetype.Object
	AllowSkip bool
	HelpTopic string
}

// Host presents dialogs. Each method returns the id of the dialog it opened.
type Host interface {
	Confirm(req ConfirmRequest, reply ReplyFunc) string
	Browse(req BrowseRequest, reply ReplyFunc) string
	Edit(req EditRequest, reply ReplyFunc) string
	Print(req PrintRequest, reply ReplyFunc) string
	ShowError(title string, err error)
}
