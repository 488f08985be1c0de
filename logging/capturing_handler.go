package logging

import (
	"context"
	"log/slog"
	"strings"
)

// CapturingHandler tees records into a LogCollector under a task name while
// passing them on to the next handler.
type CapturingHandler struct {
	next      slog.Handler
	collector *LogCollector
	task      string
	attrs     []slog.Attr
	prefix    string
}

// NewCapturingHandler creates a handler that captures records for task.
func NewCapturingHandler(next slog.Handler, collector *LogCollector, task string) *CapturingHandler {
	return &CapturingHandler{
		next:      next,
		collector: collector,
		task:      task,
	}
}

// Enabled reports true for every level: capture keeps debug records even when
// the next handler drops them. Handle still asks the next handler.
func (h *CapturingHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *CapturingHandler) Handle(ctx context.Context, r slog.Record) error {
	entry := LogEntry{
		Time:       r.Time,
		Level:      strings.ToLower(r.Level.String()),
		Message:    r.Message,
		Attributes: make(map[string]any, r.NumAttrs()+len(h.attrs)),
	}
	for _, a := range h.attrs {
		entry.Attributes[a.Key] = resolveValue(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		entry.Attributes[h.prefix+a.Key] = resolveValue(a.Value)
		return true
	})
	h.collector.AddLog(h.task, entry)

	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs keeps capturing through .With chains.
func (h *CapturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)
	c.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	c.attrs = append(c.attrs, h.attrs...)
	for _, a := range attrs {
		c.attrs = append(c.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &c
}

// WithGroup keeps capturing through .WithGroup chains. Captured keys of
// grouped attributes are dotted, for example "req.id".
func (h *CapturingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.next = h.next.WithGroup(name)
	c.prefix = h.prefix + name + "."
	return &c
}

// resolveValue converts a slog.Value to something JSON can encode.
func resolveValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindGroup:
		group := make(map[string]any)
		for _, a := range v.Group() {
			group[a.Key] = resolveValue(a.Value)
		}
		return group
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	default:
		return v.Any()
	}
}
