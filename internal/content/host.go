package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/widgetshell/internal/bridge"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/widgetshell/internal/session"
	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// ErrClosed is returned when the host has been closed.
var ErrClosed = errors.New("content: host closed")

// Config configures a Host.
type Config struct {
	// Timeout bounds each entry into JavaScript.
	Timeout      time.Duration
	MaxCallStack int
	Logger       *logging.Logger
	Metrics      *monitoring.Metrics
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      5 * time.Second,
		MaxCallStack: 1024,
	}
}

// Host runs widget content in an embedded JavaScript VM. The VM is only
// touched from the host's own looper; the content endpoint dispatches
// handlers and callbacks there.
//
// Each load of the content is a page: a fresh VM with its own endpoint and
// timers. Reload replaces the page and runs the loaded script again, the way
// a browser reloads a document.
type Host struct {
	cfg    Config
	log    *logging.Logger
	looper *bridge.Looper

	page   atomic.Pointer[page]
	closed atomic.Bool

	mu     sync.Mutex
	script string
}

// New creates a content host. Call Start before running scripts.
func New(cfg Config) (*Host, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxCallStack <= 0 {
		cfg.MaxCallStack = DefaultConfig().MaxCallStack
	}
	log := logging.OrNop(cfg.Logger).Named("content")

	h := &Host{
		cfg:    cfg,
		log:    log,
		looper: bridge.NewLooper(log),
	}
	p, err := h.newPage()
	if err != nil {
		return nil, err
	}
	h.page.Store(p)
	return h, nil
}

// Start runs the host looper until ctx is done or Close is called.
func (h *Host) Start(ctx context.Context) {
	h.looper.Start(ctx)
}

// Endpoint returns the content side of the command channel for the current
// page.
func (h *Host) Endpoint() *bridge.Endpoint {
	return h.page.Load().ep
}

// Connect pipes the current page's endpoint to a host endpoint, replacing
// any earlier connection.
func (h *Host) Connect(host *bridge.Endpoint) {
	if h.closed.Load() {
		return
	}
	bridge.Pipe(host, h.page.Load().ep)
}

// Run evaluates script in the current page and returns its exported
// completion value.
func (h *Host) Run(ctx context.Context, script string) (interface{}, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}

	var (
		result interface{}
		runErr error
	)
	err := h.looper.Do(ctx, func() {
		val, err := h.page.Load().run(ctx, script)
		if err != nil {
			runErr = err
			return
		}
		result = exportValue(val)
	})
	if err != nil {
		return nil, err
	}
	return result, runErr
}

// Load runs script in the current page and remembers it as the content's
// source, so Reload runs it again.
func (h *Host) Load(ctx context.Context, script string) error {
	h.mu.Lock()
	h.script = script
	h.mu.Unlock()
	_, err := h.Run(ctx, script)
	return err
}

// Reload discards the current page, connects a fresh one to host and runs the
// loaded script in it. Callbacks still pending on the old page are answered
// with "" and never reach the new VM.
func (h *Host) Reload(ctx context.Context, host *bridge.Endpoint) error {
	if h.closed.Load() {
		return ErrClosed
	}
	h.mu.Lock()
	script := h.script
	h.mu.Unlock()

	var runErr error
	err := h.looper.Do(ctx, func() {
		next, err := h.newPage()
		if err != nil {
			runErr = fmt.Errorf("new page: %w", err)
			return
		}
		if old := h.page.Swap(next); old != nil {
			old.close()
		}
		bridge.Pipe(host, next.ep)
		h.log.Info("content reloaded")

		if script != "" {
			if _, err := next.run(ctx, script); err != nil {
				runErr = fmt.Errorf("run content script: %w", err)
			}
		}
	})
	if err != nil {
		return err
	}
	return runErr
}

// Follow keeps the host loaded into m's current session. The session present
// now is connected as is; every replacement reloads the page so the content
// reports initialized again. Sessions already bound to another transport,
// such as a websocket, are left to it.
func (h *Host) Follow(m *session.Manager) {
	var connected atomic.Bool
	m.OnSession(func(s *session.Session) {
		if s.Endpoint().Bound() {
			return
		}
		if !connected.Swap(true) {
			h.Connect(s.Endpoint())
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*h.cfg.Timeout)
		defer cancel()
		if err := h.Reload(ctx, s.Endpoint()); err != nil {
			h.log.Warn("reload content", zap.String("session", s.ID().String()), zap.Error(err))
		}
	})
}

// Close stops timers, closes the endpoint and stops the looper. It must not
// be called from script.
func (h *Host) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	err := h.page.Load().close()
	h.looper.Stop()
	return err
}

// page is one load of the content.
type page struct {
	host *Host
	vm   *goja.Runtime
	ep   *bridge.Endpoint

	mu        sync.Mutex
	timers    map[int64]*time.Timer
	nextTimer int64
	closed    atomic.Bool
}

func (h *Host) newPage() (*page, error) {
	p := &page{
		host:   h,
		vm:     goja.New(),
		timers: make(map[int64]*time.Timer),
	}
	p.ep = bridge.NewEndpoint(bridge.Options{
		Name:     "content",
		Executor: h.looper,
		Logger:   h.cfg.Logger,
		Metrics:  h.cfg.Metrics,
	})
	p.vm.SetMaxCallStackSize(h.cfg.MaxCallStack)
	if err := p.setupGlobals(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *page) live() bool {
	return !p.closed.Load() && !p.host.closed.Load()
}

// close stops the page's timers and closes its endpoint.
func (p *page) close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.mu.Lock()
	for id, t := range p.timers {
		t.Stop()
		delete(p.timers, id)
	}
	p.mu.Unlock()
	return p.ep.Close()
}

func (p *page) run(ctx context.Context, script string) (goja.Value, error) {
	return p.guard(ctx, func() (goja.Value, error) {
		return p.vm.RunString(script)
	})
}

// guard runs fn with the configured timeout, interrupting the VM when it
// expires or ctx is cancelled. It runs on the looper.
func (p *page) guard(ctx context.Context, fn func() (goja.Value, error)) (goja.Value, error) {
	timer := time.NewTimer(p.host.cfg.Timeout)
	defer timer.Stop()

	done := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-timer.C:
			p.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			p.vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	val, err := fn()
	close(done)
	<-watcherDone
	p.vm.ClearInterrupt()
	return val, err
}

// invoke calls a script function on the looper, logging any exception.
func (p *page) invoke(what string, fn goja.Callable, args ...goja.Value) {
	if !p.live() {
		return
	}
	_, err := p.guard(context.Background(), func() (goja.Value, error) {
		return fn(goja.Undefined(), args...)
	})
	if err != nil {
		p.host.log.Warn("script error", zap.String("in", what), zap.Error(err))
	}
}

// setupGlobals installs the widget's view of the host and removes globals
// the content has no business with.
func (p *page) setupGlobals() error {
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := p.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	console := p.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, p.makeConsoleFunc(level)); err != nil {
			return err
		}
	}

	widgetBridge := p.vm.NewObject()
	if err := widgetBridge.Set("registerHandler", p.registerHandler); err != nil {
		return err
	}
	if err := widgetBridge.Set("callHandler", p.callHandler); err != nil {
		return err
	}

	globals := map[string]interface{}{
		"console":      console,
		"WidgetBridge": widgetBridge,
		"window":       p.vm.GlobalObject(),
		"setTimeout":   p.setTimeout,
		"clearTimeout": p.clearTimeout,
	}
	for name, v := range globals {
		if err := p.vm.Set(name, v); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}

// registerHandler is WidgetBridge.registerHandler(name, function(data, respond)).
func (p *page) registerHandler(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	fn, ok := goja.AssertFunction(call.Argument(1))
	if name == "" || !ok {
		panic(p.vm.NewTypeError("registerHandler(name, fn) requires a name and a function"))
	}

	p.ep.RegisterHandler(name, func(payload string, respond bridge.Callback) {
		reply := p.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			respond(stringify(call.Argument(0)))
			return goja.Undefined()
		})
		p.invoke(name, fn, p.vm.ToValue(payload), reply)
	})
	return goja.Undefined()
}

// callHandler is WidgetBridge.callHandler(name, data, callback).
func (p *page) callHandler(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	payload := stringify(call.Argument(1))

	var cb bridge.Callback
	if fn, ok := goja.AssertFunction(call.Argument(2)); ok {
		cb = func(data string) {
			p.invoke(name+" callback", fn, p.vm.ToValue(data))
		}
	}
	if err := p.ep.Send(name, payload, cb); err != nil {
		p.host.log.Debug("callHandler failed", zap.String("command", name), zap.Error(err))
	}
	return goja.Undefined()
}

// setTimeout schedules fn on the looper after the given delay in ms.
func (p *page) setTimeout(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		return goja.Undefined()
	}
	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	extra := append([]goja.Value(nil), call.Arguments[min(2, len(call.Arguments)):]...)

	p.mu.Lock()
	p.nextTimer++
	id := p.nextTimer
	p.timers[id] = time.AfterFunc(delay, func() {
		p.mu.Lock()
		_, live := p.timers[id]
		delete(p.timers, id)
		p.mu.Unlock()
		if !live {
			return
		}
		p.host.looper.Post(func() { p.invoke("setTimeout", fn, extra...) })
	})
	p.mu.Unlock()
	return p.vm.ToValue(id)
}

func (p *page) clearTimeout(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	p.mu.Lock()
	if t, ok := p.timers[id]; ok {
		t.Stop()
		delete(p.timers, id)
	}
	p.mu.Unlock()
	return goja.Undefined()
}

func (p *page) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	log := p.host.log
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")

		switch level {
		case "error":
			log.Error(msg, zap.String("source", "console"))
		case "warn":
			log.Warn(msg, zap.String("source", "console"))
		case "debug":
			log.Debug(msg, zap.String("source", "console"))
		default:
			log.Info(msg, zap.String("source", "console"))
		}
		return goja.Undefined()
	}
}

// stringify turns a script value into a command payload. Strings pass
// through, null and undefined become "", anything else is JSON.
func stringify(val goja.Value) string {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return ""
	}
	exported := val.Export()
	if s, ok := exported.(string); ok {
		return s
	}
	data, err := sonic.MarshalString(exported)
	if err != nil {
		return val.String()
	}
	return data
}

func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}
