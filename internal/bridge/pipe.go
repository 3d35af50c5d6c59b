package bridge

import "sync/atomic"

// Pipe connects two endpoints in memory. Messages are delivered
// synchronously to the peer's Deliver; closing either side closes both.
func Pipe(a, b *Endpoint) {
	closed := &atomic.Bool{}
	a.Bind(&pipeEnd{peer: b, closed: closed})
	b.Bind(&pipeEnd{peer: a, closed: closed})
}

type pipeEnd struct {
	peer   *Endpoint
	closed *atomic.Bool
}

func (p *pipeEnd) Write(msg Message) error {
	if p.closed.Load() {
		return ErrClosed
	}
	p.peer.Deliver(msg)
	return nil
}

func (p *pipeEnd) Close() error {
	p.closed.Store(true)
	return nil
}
