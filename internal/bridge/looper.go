package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// Executor runs closures on a designated goroutine. Post reports false when
// the executor no longer accepts work.
type Executor interface {
	Post(fn func()) bool
}

// Inline runs every closure immediately on the posting goroutine.
type Inline struct{}

func (Inline) Post(fn func()) bool {
	fn()
	return true
}

// Looper is a single goroutine draining an unbounded FIFO of closures. It
// plays the role of the host's main thread: handlers, callbacks and gate
// drains all run on it, one at a time, in post order.
type Looper struct {
	log *logging.Logger

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	done    chan struct{}
	started bool
}

// NewLooper creates a looper. Call Run (or Start) to begin draining.
func NewLooper(log *logging.Logger) *Looper {
	return &Looper{
		log:  logging.OrNop(log).Named("looper"),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post enqueues fn. It never blocks.
func (l *Looper) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Start runs the looper on a new goroutine.
func (l *Looper) Start(ctx context.Context) {
	go l.Run(ctx)
}

// Run drains the queue until ctx is done or Stop is called. Closures still
// queued at that point are discarded.
func (l *Looper) Run(ctx context.Context) {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	defer close(l.done)
	defer l.halt()

	for {
		fn, ok := l.next()
		if ok {
			l.invoke(fn)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
		if l.isStopped() {
			return
		}
	}
}

// Stop stops accepting work and waits for Run to return if the looper was
// started. It must not be called from a closure running on the looper.
func (l *Looper) Stop() {
	l.mu.Lock()
	started := l.started
	l.stopped = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	if started {
		<-l.done
	}
}

// Do runs fn on the looper and waits for it to finish.
func (l *Looper) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of closures waiting to run.
func (l *Looper) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Looper) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped || len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Looper) isStopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

func (l *Looper) halt() {
	l.mu.Lock()
	dropped := len(l.queue)
	l.stopped = true
	l.queue = nil
	l.mu.Unlock()
	if dropped > 0 {
		l.log.Warn("looper stopped with pending work", zap.Int("dropped", dropped))
	}
}

func (l *Looper) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("panic on looper", zap.String("panic", fmt.Sprint(r)), zap.Stack("stack"))
		}
	}()
	fn()
}
