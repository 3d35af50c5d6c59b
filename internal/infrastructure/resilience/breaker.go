package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// Probes is the number of trial requests admitted while half-open
	Probes uint32
	// Window is how often failure counts are cleared while closed
	Window time.Duration
	// Cooldown is how long the breaker stays open before probing
	Cooldown time.Duration
	// Trip decides, after a failure while closed, whether to open
	Trip func(counts Counts) bool
	// OnStateChange is called with the breaker lock released
	OnStateChange func(name string, from State, to State)
}

// Counts holds the statistics for the current generation
type Counts struct {
	Requests             uint32
	Successes            uint32
	Failures             uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker guards a flaky dependency. Upstream fetches of widget assets go
// through one so a dead CDN stops costing a full retry cycle per asset.
type Breaker struct {
	name     string
	settings Settings

	mu         sync.Mutex
	state      State
	counts     Counts
	generation uint64
	until      time.Time
	now        func() time.Time
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	if settings.Probes == 0 {
		settings.Probes = 1
	}
	if settings.Window <= 0 {
		settings.Window = time.Minute
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.Trip == nil {
		settings.Trip = ConsecutiveFailures(5)
	}

	b := &Breaker{name: name, settings: settings, now: time.Now}
	b.until = b.now().Add(settings.Window)
	return b
}

// ConsecutiveFailures returns a Trip func that opens after n failures in a row.
func ConsecutiveFailures(n uint32) func(Counts) bool {
	return func(c Counts) bool { return c.ConsecutiveFailures >= n }
}

func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	state, _, change := b.advance()
	b.mu.Unlock()
	b.notify(change)
	return state
}

// Counts returns a copy of the internal counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Execute runs fn if the breaker admits it. Context cancellation is not
// counted as a failure of the guarded dependency.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	gen, err := b.admit()
	if err != nil {
		return err
	}

	ok := false
	defer func() {
		if !ok {
			b.record(gen, false)
		}
	}()

	err = fn(ctx)
	ok = true
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		b.release(gen)
		return err
	}
	b.record(gen, err == nil)
	return err
}

// Do is Execute for functions that produce a value.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := b.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

type transition struct {
	from, to State
	fired    bool
}

func (b *Breaker) notify(t transition) {
	if t.fired && b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, t.from, t.to)
	}
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	state, gen, change := b.advance()
	var err error
	switch {
	case state == StateOpen:
		err = ErrCircuitOpen
	case state == StateHalfOpen && b.counts.Requests >= b.settings.Probes:
		err = ErrTooManyRequests
	default:
		b.counts.Requests++
	}
	b.mu.Unlock()
	b.notify(change)
	return gen, err
}

// release returns an admission slot without recording an outcome.
func (b *Breaker) release(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen == b.generation && b.counts.Requests > 0 {
		b.counts.Requests--
	}
}

func (b *Breaker) record(gen uint64, success bool) {
	b.mu.Lock()
	state, current, change := b.advance()
	if current != gen {
		b.mu.Unlock()
		b.notify(change)
		return
	}

	if success {
		b.counts.Successes++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.Probes {
			change = b.moveTo(StateClosed)
		}
	} else {
		b.counts.Failures++
		b.counts.ConsecutiveFailures++
		b.counts.ConsecutiveSuccesses = 0
		if state == StateHalfOpen || (state == StateClosed && b.settings.Trip(b.counts)) {
			change = b.moveTo(StateOpen)
		}
	}
	b.mu.Unlock()
	b.notify(change)
}

// advance applies time-based transitions. Caller holds mu.
func (b *Breaker) advance() (State, uint64, transition) {
	now := b.now()
	var change transition
	switch b.state {
	case StateClosed:
		if now.After(b.until) {
			b.counts = Counts{}
			b.generation++
			b.until = now.Add(b.settings.Window)
		}
	case StateOpen:
		if now.After(b.until) {
			change = b.moveTo(StateHalfOpen)
		}
	}
	return b.state, b.generation, change
}

// moveTo switches state and starts a new generation. Caller holds mu.
func (b *Breaker) moveTo(state State) transition {
	if b.state == state {
		return transition{}
	}
	prev := b.state
	b.state = state
	b.counts = Counts{}
	b.generation++

	now := b.now()
	switch state {
	case StateClosed:
		b.until = now.Add(b.settings.Window)
	case StateOpen:
		b.until = now.Add(b.settings.Cooldown)
	case StateHalfOpen:
		b.until = time.Time{}
	}
	return transition{from: prev, to: state, fired: true}
}
