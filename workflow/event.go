package workflow

import (
	"time"
)

// EventType is the kind of task event.
type EventType int

const (
	EventStarted EventType = iota + 1
	EventCompleted
	EventCancelled
	EventSkipped
)

func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventCompleted:
		return "completed"
	case EventCancelled:
		return "cancelled"
	case EventSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

func eventFor(s Status) EventType {
	switch s {
	case Completed:
		return EventCompleted
	case Skipped:
		return EventSkipped
	default:
		return EventCancelled
	}
}

// Event reports a task starting or finishing.
type Event struct {
	Type EventType
	// Task is the name of the task the event is about.
	Task string
	// Parent is the name of the container that started the task, empty for a top-level workflow.
	Parent string
	Err    error
	Time   time.Time
}

// Terminal reports whether the event ends a task run.
func (e Event) Terminal() bool {
	return e.Type != EventStarted
}

// Listener observes task events.
type Listener interface {
	OnEvent(e Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }

// Listeners fans events out to several listeners in order.
type Listeners []Listener

func (ls Listeners) OnEvent(e Event) {
	for _, l := range ls {
		if l != nil {
			l.OnEvent(e)
		}
	}
}
