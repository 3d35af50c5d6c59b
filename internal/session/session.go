package session

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/widgetshell/internal/bridge"
	"github.com/GriffinCanCode/widgetshell/internal/gate"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/widgetshell/internal/shared/id"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Commands the host sends to the content.
const (
	CmdSetMode        = "setMode"
	CmdSetUserData    = "setUserData"
	CmdSendToField    = "sendToField"
	CmdShowOnNative   = "__showOnNative"
	CmdGetEngagements = "__getEngagements"
	CmdLogout         = "logout"
	CmdShow           = "show"
	CmdShowOnBoarding = "showOnBoarding"
)

// Session is one lifetime of the embedded content: its endpoint, its gate
// and the state the content has reported. A session never returns to the
// not-initialized state; logout replaces it.
type Session struct {
	id       id.SessionID
	created  time.Time
	endpoint *bridge.Endpoint
	gate     *gate.Gate
	platform Platform
	hooks    Hooks
	prefs    Preferences
	log      *logging.Logger
	metrics  *monitoring.Metrics
	onLogout func()

	mu          sync.RWMutex
	maximized   bool
	mode        Mode
	layout      Layout
	engagements map[string]Engagement
}

// Info is a point-in-time view of a session.
type Info struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Initialized bool      `json:"initialized"`
	Maximized   bool      `json:"maximized"`
	Mode        Mode      `json:"mode"`
	Layout      Layout    `json:"layout"`
	Placements  []string  `json:"placements"`
	Queued      int       `json:"queued"`
	Attached    bool      `json:"attached"`
}

// ID returns the session identifier.
func (s *Session) ID() id.SessionID {
	return s.id
}

// Endpoint returns the host side of the command channel.
func (s *Session) Endpoint() *bridge.Endpoint {
	return s.endpoint
}

// Initialized reports whether the content has reported ready.
func (s *Session) Initialized() bool {
	return s.gate.Ready()
}

// Mode returns the last mode set on the session.
func (s *Session) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Layout returns the current window layout.
func (s *Session) Layout() Layout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layout
}

// Maximized reports whether the widget window is maximized.
func (s *Session) Maximized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maximized
}

// SendToContent issues name to the content once it is initialized. cb, if
// set, receives the answer, or "" when the session is replaced before the
// command leaves the queue. Reports false if the session is gone.
func (s *Session) SendToContent(name, payload string, cb bridge.Callback) bool {
	send := func() {
		if err := s.endpoint.Send(name, payload, cb); err != nil {
			s.log.Debug("send failed", zap.String("command", name), zap.Error(err))
		}
	}
	var drop func()
	if cb != nil {
		drop = func() { s.endpoint.Abandon(cb) }
	}
	return s.gate.SendOrDrop(send, drop)
}

// SetMode records mode and tells the content to switch to it.
func (s *Session) SetMode(mode Mode) bool {
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	return s.SendToContent(CmdSetMode, strings.ToLower(string(mode)), nil)
}

// SetUserData passes opaque user data to the content.
func (s *Session) SetUserData(data string) bool {
	return s.SendToContent(CmdSetUserData, data, nil)
}

// SetEmail pre-fills the email field.
func (s *Session) SetEmail(email string) bool {
	return s.SendToField("email", email)
}

// SendToField sets a form field in the content.
func (s *Session) SendToField(field, value string) bool {
	payload, err := sonic.MarshalString(fieldValue{Field: field, Value: value})
	if err != nil {
		s.log.Warn("encode field", zap.String("field", field), zap.Error(err))
		return false
	}
	return s.SendToContent(CmdSendToField, payload, nil)
}

// Show asks the content to open a placement.
func (s *Session) Show(placement string) bool {
	return s.SendToContent(CmdShow, placement, nil)
}

// ShowOnBoarding asks the content to open the onboarding flow.
func (s *Session) ShowOnBoarding() bool {
	return s.SendToContent(CmdShowOnBoarding, "", nil)
}

// ShowOnNative tells the content the native window is visible.
func (s *Session) ShowOnNative() bool {
	return s.SendToContent(CmdShowOnNative, "", nil)
}

// Logout asks the content to sign the user out. The content answers with
// its own logout command, which replaces the session.
func (s *Session) Logout() bool {
	return s.SendToContent(CmdLogout, "", nil)
}

// SetMaximized toggles the maximized window state.
func (s *Session) SetMaximized(maximized bool) {
	s.mu.Lock()
	s.maximized = maximized
	layout := s.layout
	s.mu.Unlock()
	s.platform.Resize(layout, maximized)
}

// HasItems reports whether placement has reward items or social tasks.
func (s *Session) HasItems(placement string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.engagements[placement]
	return ok && e.HasItems()
}

// Engagement returns the engagement for placement.
func (s *Session) Engagement(placement string) (Engagement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.engagements[placement]
	return e, ok
}

// Placements returns the known placement names, sorted.
func (s *Session) Placements() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.engagements))
	for name := range s.engagements {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the session's current state.
func (s *Session) Snapshot() Info {
	s.mu.RLock()
	info := Info{
		ID:        s.id.String(),
		CreatedAt: s.created,
		Maximized: s.maximized,
		Mode:      s.mode,
		Layout:    s.layout,
	}
	s.mu.RUnlock()

	info.Initialized = s.gate.Ready()
	info.Placements = s.Placements()
	info.Queued = s.gate.Len()
	info.Attached = s.endpoint.Bound()
	return info
}

// fetchEngagements asks the content for its placements and then runs the
// initialized hook, whether or not the answer parsed.
func (s *Session) fetchEngagements() {
	s.SendToContent(CmdGetEngagements, "", func(data string) {
		if data != "" {
			engagements, err := parseEngagements(data)
			if err != nil {
				s.log.Warn("malformed engagements", zap.Error(err))
			} else {
				s.mu.Lock()
				s.engagements = engagements
				s.mu.Unlock()
				s.log.Debug("engagements loaded", zap.Int("placements", len(engagements)))
			}
		}
		if s.hooks.OnInitialized != nil {
			s.hooks.OnInitialized(s)
		}
	})
}

// close drops queued commands and tears down the endpoint.
func (s *Session) close() {
	s.gate.Discard()
	if err := s.endpoint.Close(); err != nil {
		s.log.Debug("close endpoint", zap.Error(err))
	}
}
