package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/widgetshell/internal/bridge"
	"github.com/GriffinCanCode/widgetshell/internal/env"
	"github.com/GriffinCanCode/widgetshell/internal/gate"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/widgetshell/internal/shared/id"
	"go.uber.org/zap"
)

// ErrClosed is returned by a manager that has been closed.
var ErrClosed = errors.New("session: manager closed")

const reloadTimeout = 10 * time.Second

// Options configures a Manager.
type Options struct {
	Env     env.Env
	AppID   string
	Version string
	Mode    Mode
	Layout  Layout

	Platform Platform
	Hooks    Hooks
	Prefs    Preferences
	// Executor is the host main thread. Defaults to bridge.Inline.
	Executor bridge.Executor
	Logger   *logging.Logger
	Metrics  *monitoring.Metrics
}

// Manager owns the current session and replaces it on logout or reload.
type Manager struct {
	opts Options
	log  *logging.Logger

	current atomic.Pointer[Session]

	mu        sync.Mutex
	listeners []func(*Session)
	closed    bool
}

// NewManager creates a manager with a fresh session.
func NewManager(opts Options) *Manager {
	if opts.Executor == nil {
		opts.Executor = bridge.Inline{}
	}
	if opts.Mode == "" {
		opts.Mode = ModeRewards
	}
	log := logging.OrNop(opts.Logger).Named("session")
	if opts.Platform == nil {
		opts.Platform = NewLogPlatform(opts.Logger, opts.Metrics)
	}
	m := &Manager{opts: opts, log: log}
	m.current.Store(m.newSession())
	return m
}

// Current returns the live session.
func (m *Manager) Current() *Session {
	return m.current.Load()
}

// OnSession registers fn to run with the current session now and with every
// replacement.
func (m *Manager) OnSession(fn func(*Session)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	s := m.current.Load()
	m.mu.Unlock()
	fn(s)
}

// Attach binds t to a session endpoint. The current session is reused if
// nothing is attached to it yet; otherwise it is replaced, since a new
// connection means the content was loaded again.
func (m *Manager) Attach(t bridge.Transport) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = t.Close()
		return nil, ErrClosed
	}
	cur := m.current.Load()
	if !cur.endpoint.Bound() && !cur.endpoint.Closed() {
		cur.endpoint.Bind(t)
		m.mu.Unlock()
		return cur, nil
	}
	next := m.replaceLocked(cur)
	next.endpoint.Bind(t)
	listeners := m.listenersLocked()
	m.mu.Unlock()

	m.notify(listeners, next)
	return next, nil
}

// Reload discards the current session and starts a new one. The stored
// account is kept; only logout clears it.
func (m *Manager) Reload(ctx context.Context) (*Session, error) {
	return m.reload(ctx, nil, false)
}

// reload replaces expected, or the current session when expected is nil. A
// stale expected session is left alone. clearAccount wipes the stored
// credentials before the new session starts.
func (m *Manager) reload(ctx context.Context, expected *Session, clearAccount bool) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	cur := m.current.Load()
	if expected != nil && cur != expected {
		m.mu.Unlock()
		return cur, nil
	}
	cur.close()

	var clearErr error
	if clearAccount && m.opts.Prefs != nil {
		clearErr = m.opts.Prefs.ClearAccount(ctx)
	}
	next := m.replaceLocked(nil)
	listeners := m.listenersLocked()
	m.mu.Unlock()

	m.log.Info("session reloaded",
		zap.String("previous", cur.id.String()),
		zap.String("session", next.id.String()),
	)
	m.notify(listeners, next)

	if clearErr != nil {
		return next, fmt.Errorf("clear account: %w", clearErr)
	}
	return next, nil
}

// LoadURL is the page the content should load for the current session.
func (m *Manager) LoadURL() string {
	return m.opts.Env.LoadURL(m.opts.AppID, string(m.Current().Mode()), m.opts.Version)
}

// Env returns the widget environment.
func (m *Manager) Env() env.Env {
	return m.opts.Env
}

// Close tears down the current session. Later reloads fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.current.Load().close()
	return nil
}

// replaceLocked closes old if set, then installs a new session.
func (m *Manager) replaceLocked(old *Session) *Session {
	if old != nil {
		old.close()
	}
	next := m.newSession()
	m.current.Store(next)
	return next
}

func (m *Manager) listenersLocked() []func(*Session) {
	return slices.Clone(m.listeners)
}

func (m *Manager) notify(listeners []func(*Session), s *Session) {
	for _, fn := range listeners {
		fn(s)
	}
}

func (m *Manager) newSession() *Session {
	sid := id.NewSessionID()
	log := m.log.With(zap.String("session", sid.String()))

	// Mode carries over so a reload lands on the screen the host asked for.
	mode := m.opts.Mode
	if cur := m.current.Load(); cur != nil {
		mode = cur.Mode()
	}

	s := &Session{
		id:       sid,
		created:  time.Now(),
		platform: m.opts.Platform,
		hooks:    m.opts.Hooks,
		prefs:    m.opts.Prefs,
		log:      log,
		metrics:  m.opts.Metrics,
		mode:     mode,
		layout:   m.opts.Layout,
	}
	s.endpoint = bridge.NewEndpoint(bridge.Options{
		Name:     "host",
		Executor: m.opts.Executor,
		Logger:   log,
		Metrics:  m.opts.Metrics,
	})
	s.gate = gate.New(log, m.opts.Metrics)
	s.onLogout = func() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
			defer cancel()
			if _, err := m.reload(ctx, s, true); err != nil {
				m.log.Warn("reload after logout", zap.Error(err))
			}
		}()
	}
	s.registerHostHandlers()

	m.opts.Metrics.SessionCreated()
	log.Info("session created", zap.String("mode", string(mode)))
	return s
}
