package workflow

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingListener turns task events into nested spans. Events of one run are
// strictly nested, so open spans are kept on a stack.
type TracingListener struct {
	tracer trace.Tracer
	root   context.Context

	mu    sync.Mutex
	stack []openSpan
}

type openSpan struct {
	task string
	ctx  context.Context
	span trace.Span
}

// NewTracingListener creates a listener whose top-level spans are children of ctx.
func NewTracingListener(ctx context.Context, tracer trace.Tracer) *TracingListener {
	return &TracingListener{tracer: tracer, root: ctx}
}

func (l *TracingListener) OnEvent(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Type == EventStarted {
		parent := l.root
		if n := len(l.stack); n > 0 {
			parent = l.stack[n-1].ctx
		}
		ctx, span := l.tracer.Start(parent, e.Task,
			trace.WithTimestamp(e.Time),
			trace.WithAttributes(attribute.String("task.parent", e.Parent)),
		)
		l.stack = append(l.stack, openSpan{task: e.Task, ctx: ctx, span: span})
		return
	}

	for i := len(l.stack) - 1; i >= 0; i-- {
		if l.stack[i].task != e.Task {
			continue
		}
		span := l.stack[i].span
		span.SetAttributes(attribute.String("task.status", e.Type.String()))
		if e.Err != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
		}
		span.End(trace.WithTimestamp(e.Time))
		l.stack = l.stack[:i]
		return
	}
}
