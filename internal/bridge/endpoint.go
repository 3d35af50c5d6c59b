package bridge

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/monitoring"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures an Endpoint.
type Options struct {
	// Name tags log lines, e.g. "host" or "content".
	Name string
	// Executor runs handlers and callbacks. Defaults to Inline.
	Executor Executor
	// Registry holds the handler table. Defaults to a fresh registry.
	Registry *Registry
	Logger   *logging.Logger
	Metrics  *monitoring.Metrics
}

// Endpoint is one side of a command channel.
//
// No lock is held while calling into the transport, a handler or a callback,
// so handlers may Send on the same endpoint and transports may deliver
// synchronously.
type Endpoint struct {
	name     string
	exec     Executor
	registry *Registry
	log      *logging.Logger
	metrics  *monitoring.Metrics

	mu        sync.Mutex
	transport Transport
	pending   map[string]Callback // our requests awaiting the peer
	inflight  map[string]*reply   // peer requests our handlers have not answered
	closed    atomic.Bool
}

// NewEndpoint creates an endpoint with no transport.
func NewEndpoint(opts Options) *Endpoint {
	if opts.Executor == nil {
		opts.Executor = Inline{}
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	name := opts.Name
	if name == "" {
		name = "endpoint"
	}
	return &Endpoint{
		name:     name,
		exec:     opts.Executor,
		registry: opts.Registry,
		log:      logging.OrNop(opts.Logger).Named("bridge").With(zap.String("endpoint", name)),
		metrics:  opts.Metrics,
		pending:  make(map[string]Callback),
		inflight: make(map[string]*reply),
	}
}

// Bind attaches the transport used for outbound messages, replacing any
// previous one. Binding a closed endpoint closes t.
func (e *Endpoint) Bind(t Transport) {
	e.mu.Lock()
	if e.closed.Load() {
		e.mu.Unlock()
		_ = t.Close()
		return
	}
	e.transport = t
	e.mu.Unlock()
}

// Bound reports whether a transport is attached.
func (e *Endpoint) Bound() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transport != nil
}

// Registry returns the endpoint's handler table.
func (e *Endpoint) Registry() *Registry {
	return e.registry
}

// RegisterHandler binds name to h, replacing any previous handler.
func (e *Endpoint) RegisterHandler(name string, h Handler) {
	e.registry.Register(name, h)
}

// Closed reports whether Close has been called.
func (e *Endpoint) Closed() bool {
	return e.closed.Load()
}

// Send issues a command to the peer. If cb is non-nil it is invoked exactly
// once on the executor, with the peer's answer or with "" on failure. The
// returned error is informational; cb has already been or will be answered.
func (e *Endpoint) Send(name, payload string, cb Callback) error {
	msg := Message{HandlerName: name, Data: payload}

	if cb != nil {
		msg.CallbackID = uuid.NewString()
		e.mu.Lock()
		if e.closed.Load() {
			e.mu.Unlock()
			e.answer(cb, "")
			e.metrics.RecordCommand("out", name, "closed")
			return ErrClosed
		}
		e.pending[msg.CallbackID] = cb
		e.mu.Unlock()
	}

	if err := e.write(msg); err != nil {
		e.log.Warn("send failed", zap.String("command", name), zap.Error(err))
		e.metrics.RecordCommand("out", name, "failed")
		if cb != nil {
			if pending := e.take(msg.CallbackID); pending != nil {
				e.answer(pending, "")
			}
		}
		return err
	}

	e.metrics.RecordCommand("out", name, "sent")
	e.log.Debug("command sent", zap.String("command", name), zap.Bool("awaits", cb != nil))
	return nil
}

// Deliver hands an inbound message to the endpoint. Transports call it from
// their read loop; it never blocks on handlers.
func (e *Endpoint) Deliver(msg Message) {
	if e.closed.Load() {
		return
	}

	if msg.IsResponse() {
		cb := e.take(msg.ResponseID)
		if cb == nil {
			e.log.Debug("response for unknown callback", zap.String("callback_id", msg.ResponseID))
			return
		}
		e.answer(cb, msg.ResponseData)
		return
	}

	if msg.HandlerName == "" {
		e.log.Warn("dropping message without handler name")
		return
	}

	respond := e.responder(msg)
	if !e.exec.Post(func() { e.dispatch(msg, respond) }) {
		respond("")
	}
}

func (e *Endpoint) dispatch(msg Message, respond Callback) {
	if e.closed.Load() {
		return
	}

	h, ok := e.registry.Lookup(msg.HandlerName)
	if !ok {
		e.log.Warn("no handler registered", zap.String("command", msg.HandlerName))
		e.metrics.RecordCommand("in", msg.HandlerName, "unhandled")
		respond("")
		return
	}

	e.metrics.RecordCommand("in", msg.HandlerName, "handled")
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("handler panicked",
				zap.String("command", msg.HandlerName),
				zap.String("panic", fmt.Sprint(r)))
			respond("")
		}
	}()
	h(msg.Data, respond)
}

// Close tears the endpoint down. Unanswered peer requests are answered with
// "" before the transport closes; our own pending callbacks are answered with
// "". Later inbound messages are dropped. Close is idempotent.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed.Swap(true) {
		e.mu.Unlock()
		return nil
	}
	inflight := e.inflight
	pending := e.pending
	t := e.transport
	e.inflight = make(map[string]*reply)
	e.pending = make(map[string]Callback)
	e.transport = nil
	e.mu.Unlock()

	if t != nil {
		for id, r := range inflight {
			r.once.Do(func() {
				_ = t.Write(Message{ResponseID: id})
			})
		}
	}

	var err error
	if t != nil {
		err = t.Close()
	}

	for _, cb := range pending {
		e.answer(cb, "")
	}

	e.log.Debug("endpoint closed",
		zap.Int("unanswered_requests", len(inflight)),
		zap.Int("abandoned_callbacks", len(pending)))
	return err
}

// Pending returns the number of our requests awaiting an answer.
func (e *Endpoint) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

type reply struct {
	once sync.Once
}

// responder builds the single-shot answer function for an inbound request.
func (e *Endpoint) responder(msg Message) Callback {
	if msg.CallbackID == "" {
		return func(string) {}
	}

	r := &reply{}
	id := msg.CallbackID
	e.mu.Lock()
	e.inflight[id] = r
	e.mu.Unlock()

	return func(data string) {
		r.once.Do(func() {
			e.mu.Lock()
			if e.inflight[id] == r {
				delete(e.inflight, id)
			}
			e.mu.Unlock()

			if e.closed.Load() {
				return
			}
			if err := e.write(Message{ResponseID: id, ResponseData: data}); err != nil {
				e.log.Warn("response write failed", zap.String("command", msg.HandlerName), zap.Error(err))
			}
		})
	}
}

func (e *Endpoint) write(msg Message) error {
	e.mu.Lock()
	t := e.transport
	closed := e.closed.Load()
	e.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if t == nil {
		return ErrNotBound
	}
	return t.Write(msg)
}

func (e *Endpoint) take(callbackID string) Callback {
	e.mu.Lock()
	defer e.mu.Unlock()
	cb, ok := e.pending[callbackID]
	if !ok {
		return nil
	}
	delete(e.pending, callbackID)
	return cb
}

// Abandon answers cb with "" on the executor. It is for commands that were
// accepted for sending but will never reach the wire.
func (e *Endpoint) Abandon(cb Callback) {
	if cb != nil {
		e.answer(cb, "")
	}
}

// answer runs cb on the executor, or inline if the executor has stopped.
func (e *Endpoint) answer(cb Callback, data string) {
	if !e.exec.Post(func() { cb(data) }) {
		cb(data)
	}
}
