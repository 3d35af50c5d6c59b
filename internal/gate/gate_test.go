package gate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type log struct {
	mu   sync.Mutex
	sent []string
}

func (l *log) send(name string) func() {
	return func() {
		l.mu.Lock()
		l.sent = append(l.sent, name)
		l.mu.Unlock()
	}
}

func (l *log) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.sent...)
}

func TestQueueOrdering(t *testing.T) {
	g := New(nil, nil)
	l := &log{}

	for _, name := range []string{"c1", "c2", "c3"} {
		require.True(t, g.SendOrQueue(l.send(name)))
	}
	assert.Empty(t, l.get())
	assert.Equal(t, 3, g.Len())

	require.True(t, g.Open())
	assert.Equal(t, []string{"c1", "c2", "c3"}, l.get())

	g.SendOrQueue(l.send("c4"))
	assert.Equal(t, []string{"c1", "c2", "c3", "c4"}, l.get())
	assert.True(t, g.Ready())
}

func TestAtMostOneDrain(t *testing.T) {
	g := New(nil, nil)
	l := &log{}
	g.SendOrQueue(l.send("c1"))

	assert.True(t, g.Open())
	assert.False(t, g.Open())
	assert.False(t, g.Open())
	assert.Equal(t, []string{"c1"}, l.get())
}

func TestSendDuringDrainDoesNotOvertake(t *testing.T) {
	g := New(nil, nil)
	l := &log{}

	g.SendOrQueue(func() {
		l.send("c1")()
		// A send issued from inside the drain lands behind c2.
		g.SendOrQueue(l.send("c3"))
	})
	g.SendOrQueue(l.send("c2"))

	require.True(t, g.Open())
	assert.Equal(t, []string{"c1", "c2", "c3"}, l.get())
	assert.Zero(t, g.Len())
}

func TestReentrantOpenDuringDrain(t *testing.T) {
	g := New(nil, nil)
	l := &log{}

	var inner bool
	g.SendOrQueue(func() {
		inner = g.Open()
		l.send("c1")()
	})
	g.SendOrQueue(l.send("c2"))

	require.True(t, g.Open())
	assert.False(t, inner)
	assert.Equal(t, []string{"c1", "c2"}, l.get())
}

func TestConcurrentSendsDuringOpen(t *testing.T) {
	g := New(nil, nil)
	l := &log{}

	for i := 0; i < 50; i++ {
		g.SendOrQueue(l.send("queued"))
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.SendOrQueue(l.send("late"))
		}()
	}
	g.Open()
	wg.Wait()

	sent := l.get()
	require.Len(t, sent, 100)
	for i := 0; i < 50; i++ {
		assert.Equal(t, "queued", sent[i], "queued sends must come first")
	}
}

func TestDiscardDropsQueue(t *testing.T) {
	g := New(nil, nil)
	l := &log{}

	g.SendOrQueue(l.send("c1"))
	g.Discard()

	assert.False(t, g.SendOrQueue(l.send("c2")))
	assert.False(t, g.Open())
	assert.Empty(t, l.get())
	assert.Equal(t, Discarded, g.State())
}

func TestDiscardDuringDrainStops(t *testing.T) {
	g := New(nil, nil)
	l := &log{}

	g.SendOrQueue(func() {
		l.send("c1")()
		g.Discard()
	})
	g.SendOrQueue(l.send("c2"))

	assert.False(t, g.Open())
	assert.Equal(t, []string{"c1"}, l.get())
	assert.Equal(t, Discarded, g.State())
}

func TestOpenEmptyGate(t *testing.T) {
	g := New(nil, nil)
	assert.Equal(t, NotReady, g.State())
	assert.True(t, g.Open())
	assert.Equal(t, "ready", g.State().String())
}

func TestDiscardRunsDropHooks(t *testing.T) {
	g := New(nil, nil)
	l := &log{}

	g.SendOrDrop(l.send("c1"), l.send("drop-c1"))
	g.SendOrQueue(l.send("c2"))
	g.SendOrDrop(l.send("c3"), l.send("drop-c3"))
	g.Discard()

	assert.Equal(t, []string{"drop-c1", "drop-c3"}, l.get())

	assert.False(t, g.SendOrDrop(l.send("c4"), l.send("drop-c4")))
	assert.Equal(t, []string{"drop-c1", "drop-c3", "drop-c4"}, l.get())
}

func TestOpenSkipsDropHooks(t *testing.T) {
	g := New(nil, nil)
	l := &log{}

	g.SendOrDrop(l.send("c1"), l.send("drop-c1"))
	require.True(t, g.Open())
	g.Discard()

	assert.Equal(t, []string{"c1"}, l.get())
}
