package tracing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetshell/internal/shared/id"
	"go.uber.org/zap"
)

type contextKey int

const (
	traceIDKey contextKey = iota
	spanIDKey
)

// Span is one timed operation within a trace.
type Span struct {
	TraceID   string
	SpanID    string
	ParentID  string
	Name      string
	StartTime time.Time
	Duration  time.Duration
	Status    int
	Err       error

	mu   sync.Mutex
	tags map[string]string
}

// SetTag adds a tag to the span
func (s *Span) SetTag(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[key] = value
}

// SetError records an error in the span
func (s *Span) SetError(err error) {
	s.Err = err
}

// Finish marks the span as complete
func (s *Span) Finish() {
	s.Duration = time.Since(s.StartTime)
}

// Tracer hands finished spans to a background collector that logs them.
type Tracer struct {
	service string
	log     *logging.Logger
	spans   chan *Span
	done    chan struct{}
	dropped atomic.Int64

	// mu orders Submit's send against Close's close(spans).
	mu     sync.RWMutex
	closed bool
}

// New creates a tracer and starts its collector.
func New(service string, log *logging.Logger) *Tracer {
	t := &Tracer{
		service: service,
		log:     logging.OrNop(log).Named("trace"),
		spans:   make(chan *Span, 1000),
		done:    make(chan struct{}),
	}
	go t.collect()
	return t
}

// StartSpan opens a span, continuing the trace carried by ctx if any.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID, _ := ctx.Value(traceIDKey).(string)
	if traceID == "" {
		traceID = id.NewRequestID().String()
	}
	parentID, _ := ctx.Value(spanIDKey).(string)

	span := &Span{
		TraceID:   traceID,
		SpanID:    id.NewRequestID().String(),
		ParentID:  parentID,
		Name:      name,
		StartTime: time.Now(),
		tags:      make(map[string]string),
	}
	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, span.SpanID)
	return span, ctx
}

// WithTraceID seeds ctx with a trace ID received from a caller.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the trace carried by ctx, or "".
func TraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(traceIDKey).(string)
	return traceID
}

// Submit queues a finished span. Spans are dropped when the collector is
// behind or closed.
func (t *Tracer) Submit(span *Span) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		t.dropped.Add(1)
		return
	}
	select {
	case t.spans <- span:
	default:
		t.dropped.Add(1)
	}
}

// Dropped returns the number of spans not logged.
func (t *Tracer) Dropped() int64 {
	return t.dropped.Load()
}

// Close flushes queued spans and stops the collector.
func (t *Tracer) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.spans)
	t.mu.Unlock()
	<-t.done
}

func (t *Tracer) collect() {
	defer close(t.done)
	for span := range t.spans {
		t.emit(span)
	}
}

func (t *Tracer) emit(span *Span) {
	fields := []zap.Field{
		zap.String("service", t.service),
		zap.String("trace_id", span.TraceID),
		zap.String("span_id", span.SpanID),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
		zap.Int("status", span.Status),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", span.ParentID))
	}
	span.mu.Lock()
	for k, v := range span.tags {
		fields = append(fields, zap.String(k, v))
	}
	span.mu.Unlock()

	if span.Err != nil {
		t.log.Warn("span failed", append(fields, zap.Error(span.Err))...)
		return
	}
	t.log.Debug("span", fields...)
}
