package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/nomis52/vetflow/archetype"
)

var (
	// ErrUnknownDialog is returned when replying to a dialog that is not pending.
	ErrUnknownDialog = errors.New("unknown dialog")
	// ErrActionNotAllowed is returned when a reply uses an action the dialog does not offer.
	ErrActionNotAllowed = errors.New("action not allowed")
	// ErrUnknownCandidate is returned when a browse reply selects an object that was not offered.
	ErrUnknownCandidate = errors.New("selection is not a candidate")
)

// maxErrors bounds the error log.
const maxErrors = 50

// DialogType distinguishes the dialog kinds.
type DialogType string

const (
	DialogConfirm DialogType = "confirm"
	DialogBrowse  DialogType = "browse"
	DialogEdit    DialogType = "edit"
	DialogPrint   DialogType = "print"
)

// Dialog is a pending dialog as presented to a client.
type Dialog struct {
	ID         string             `json:"id"`
	Type       DialogType         `json:"type"`
	Title      string             `json:"title"`
	Message    string             `json:"message,omitempty"`
	Actions    []Action           `json:"actions"`
	Object     archetype.Object   `json:"object,omitempty"`
	Candidates []archetype.Object `json:"candidates,omitempty"`
	HelpTopic  string             `json:"help_topic,omitempty"`
	Created    time.Time          `json:"created"`
}

// Response is a client's answer to a pending dialog.
type Response struct {
	Action   Action              `json:"action"`
	Selected archetype.Reference `json:"selected,omitempty"`
	Fields   map[string]any      `json:"fields,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// ErrorEntry is an error shown to the user.
type ErrorEntry struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

type pending struct {
	dialog Dialog
	reply  ReplyFunc
}

// Queue is a Host that keeps dialogs pending until Respond is called.
//
// Replies are delivered while holding the queue's serial lock, and Do runs
// arbitrary work under the same lock, so task code for one session never runs
// concurrently with itself.
type Queue struct {
	logger *slog.Logger
	clock  clock.Clock

	serial sync.Mutex

	mu      sync.Mutex
	pending []*pending
	errors  []ErrorEntry
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = logger
	}
}

// WithClock sets the clock used to timestamp dialogs.
func WithClock(c clock.Clock) QueueOption {
	return func(q *Queue) {
		q.clock = c
	}
}

// NewQueue creates an empty queue.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		logger: slog.Default(),
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With("component", "ui_queue")
	return q
}

// Do runs fn under the serial lock.
func (q *Queue) Do(fn func()) {
	q.serial.Lock()
	defer q.serial.Unlock()
	fn()
}

func (q *Queue) Confirm(req ConfirmRequest, reply ReplyFunc) string {
	buttons := req.Buttons
	if len(buttons) == 0 {
		buttons = OKCancel
	}
	return q.open(Dialog{
		Type:      DialogConfirm,
		Title:     req.Title,
		Message:   req.Message,
		Actions:   slices.Clone(buttons),
		HelpTopic: req.HelpTopic,
	}, reply)
}

func (q *Queue) Browse(req BrowseRequest, reply ReplyFunc) string {
	actions := []Action{OK}
	if req.AllowCreate {
		actions = append(actions, Create)
	}
	if !req.Required {
		actions = append(actions, Skip)
	}
	actions = append(actions, Cancel)
	return q.open(Dialog{
		Type:       DialogBrowse,
		Title:      req.Title,
		Actions:    actions,
		Candidates: slices.Clone(req.Candidates),
		HelpTopic:  req.HelpTopic,
	}, reply)
}

func (q *Queue) Edit(req EditRequest, reply ReplyFunc) string {
	actions := []Action{OK}
	if req.AllowSkip {
		actions = append(actions, Skip)
	}
	if req.AllowDelete {
		actions = append(actions, Delete)
	}
	actions = append(actions, Cancel)
	return q.open(Dialog{
		Type:      DialogEdit,
		Title:     req.Title,
		Actions:   actions,
		Object:    req.Object,
		HelpTopic: req.HelpTopic,
	}, reply)
}

func (q *Queue) Print(req PrintRequest, reply ReplyFunc) string {
	actions := []Action{OK}
	if req.AllowSkip {
		actions = append(actions, Skip)
	}
	actions = append(actions, Cancel)
	return q.open(Dialog{
		Type:      DialogPrint,
		Title:     req.Title,
		Actions:   actions,
		Object:    req.Object,
		HelpTopic: req.HelpTopic,
	}, reply)
}

func (q *Queue) ShowError(title string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	q.logger.Warn("showing error", "title", title, "error", msg)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.errors = append(q.errors, ErrorEntry{Title: title, Message: msg, Time: q.clock.Now()})
	if len(q.errors) > maxErrors {
		q.errors = q.errors[len(q.errors)-maxErrors:]
	}
}

// Pending returns the open dialogs, oldest first.
func (q *Queue) Pending() []Dialog {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Dialog, len(q.pending))
	for i, p := range q.pending {
		out[i] = p.dialog
	}
	return out
}

// Errors returns the errors shown so far, oldest first.
func (q *Queue) Errors() []ErrorEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.errors)
}

// Respond answers a pending dialog and delivers the reply to its task.
func (q *Queue) Respond(id string, resp Response) error {
	p, reply, err := q.take(id, resp)
	if err != nil {
		return err
	}
	q.logger.Debug("dialog answered", "dialog_id", id, "type", p.dialog.Type, "action", resp.Action)
	q.Do(func() { p.reply(reply) })
	return nil
}

// CloseAll answers every pending dialog with Close.
func (q *Queue) CloseAll() {
	q.mu.Lock()
	all := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, p := range all {
		p := p
		q.Do(func() { p.reply(Reply{Action: Close}) })
	}
}

func (q *Queue) open(d Dialog, reply ReplyFunc) string {
	d.ID = uuid.NewString()
	d.Created = q.clock.Now()

	q.mu.Lock()
	q.pending = append(q.pending, &pending{dialog: d, reply: reply})
	q.mu.Unlock()

	q.logger.Debug("dialog opened", "dialog_id", d.ID, "type", d.Type, "title", d.Title)
	return d.ID
}

// take validates resp against the pending dialog and removes it.
func (q *Queue) take(id string, resp Response) (*pending, Reply, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := slices.IndexFunc(q.pending, func(p *pending) bool { return p.dialog.ID == id })
	if idx < 0 {
		return nil, Reply{}, fmt.Errorf("%w: %s", ErrUnknownDialog, id)
	}
	p := q.pending[idx]

	if resp.Action != Close && !slices.Contains(p.dialog.Actions, resp.Action) {
		return nil, Reply{}, fmt.Errorf("%w: %s", ErrActionNotAllowed, resp.Action)
	}

	reply := Reply{Action: resp.Action, Fields: resp.Fields}
	if resp.Error != "" {
		reply.Err = errors.New(resp.Error)
	}
	if p.dialog.Type == DialogBrowse && resp.Action == OK {
		i := slices.IndexFunc(p.dialog.Candidates, func(o archetype.Object) bool {
			return o.Reference() == resp.Selected
		})
		if i < 0 {
			return nil, Reply{}, fmt.Errorf("%w: %s", ErrUnknownCandidate, resp.Selected)
		}
		reply.Selected = p.dialog.Candidates[i]
	}

	q.pending = slices.Delete(q.pending, idx, idx+1)
	return p, reply, nil
}
