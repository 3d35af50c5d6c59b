// Package gate holds outbound commands until the embedded content reports
// that it is initialized, then releases them in order.
package gate

import (
	"sync"

	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// State is the gate's lifecycle position.
type State int

const (
	NotReady State = iota
	Ready
	Discarded
)

func (s State) String() string {
	switch s {
	case NotReady:
		return "not_ready"
	case Ready:
		return "ready"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Gate is a one-way barrier with a FIFO of pending sends.
//
// While NotReady, SendOrQueue appends. Open drains the queue on the calling
// goroutine and only then flips to Ready, so a send issued during the drain
// is queued behind the ones already waiting instead of overtaking them.
type Gate struct {
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu       sync.Mutex
	state    State
	queue    []entry
	draining bool
}

type entry struct {
	send func()
	drop func()
}

// New creates a gate in the NotReady state.
func New(log *logging.Logger, metrics *monitoring.Metrics) *Gate {
	return &Gate{
		log:     logging.OrNop(log).Named("gate"),
		metrics: metrics,
	}
}

// SendOrQueue runs send now if the gate is Ready, queues it if NotReady, and
// drops it if Discarded. It reports whether send ran or was queued.
func (g *Gate) SendOrQueue(send func()) bool {
	return g.SendOrDrop(send, nil)
}

// SendOrDrop is SendOrQueue with a drop hook. drop, if set, runs instead of
// send when the gate is discarded before send gets to run, so a caller
// waiting on send's outcome is always released.
func (g *Gate) SendOrDrop(send, drop func()) bool {
	g.mu.Lock()
	switch g.state {
	case Ready:
		g.mu.Unlock()
		send()
		return true
	case Discarded:
		g.mu.Unlock()
		g.log.Debug("dropping send on discarded gate")
		g.metrics.GateDrop(1)
		if drop != nil {
			drop()
		}
		return false
	default:
		g.queue = append(g.queue, entry{send: send, drop: drop})
		n := len(g.queue)
		g.mu.Unlock()
		g.metrics.GateQueue(n)
		return true
	}
}

// Open releases every queued send in FIFO order. Only the first call that
// finds the gate NotReady performs the transition and returns true.
func (g *Gate) Open() bool {
	g.mu.Lock()
	if g.state != NotReady || g.draining {
		g.mu.Unlock()
		return false
	}
	g.draining = true

	drained := 0
	for {
		if g.state == Discarded || len(g.queue) == 0 {
			break
		}
		next := g.queue[0]
		g.queue[0] = entry{}
		g.queue = g.queue[1:]
		g.mu.Unlock()

		next.send()
		drained++

		g.mu.Lock()
	}

	opened := g.state == NotReady
	if opened {
		g.state = Ready
	}
	g.draining = false
	g.queue = nil
	g.mu.Unlock()

	g.metrics.GateDrain(drained)
	g.metrics.GateQueue(0)
	g.log.Debug("gate opened", zap.Int("drained", drained), zap.Bool("opened", opened))
	return opened
}

// Discard drops pending sends and rejects future ones, running the drop hook
// of each pending send in queue order. A drain in progress stops before its
// next send.
func (g *Gate) Discard() {
	g.mu.Lock()
	queue := g.queue
	dropped := len(queue)
	g.state = Discarded
	g.queue = nil
	g.mu.Unlock()

	for _, e := range queue {
		if e.drop != nil {
			e.drop()
		}
	}
	g.metrics.GateDrop(dropped)
	g.metrics.GateQueue(0)
	if dropped > 0 {
		g.log.Info("discarded queued sends", zap.Int("dropped", dropped))
	}
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Ready reports whether sends go straight through.
func (g *Gate) Ready() bool {
	return g.State() == Ready
}

// Len returns the number of queued sends.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}
