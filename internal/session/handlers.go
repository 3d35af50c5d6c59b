package session

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/GriffinCanCode/widgetshell/internal/bridge"
	"github.com/GriffinCanCode/widgetshell/internal/storage/prefs"
	"github.com/bytedance/sonic"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// Commands the content sends to the host.
const (
	HandleInitialized       = "initialized"
	HandleLogout            = "logout"
	HandleShow              = "show"
	HandleHide              = "hide"
	HandleMaximize          = "maximize"
	HandleRestore           = "restore"
	HandleShareWith         = "shareWith"
	HandleShare             = "share"
	HandleShowNativeMessage = "showNativeMessage"
	HandleInputFocused      = "inputFocused"
	HandleInputBlurred      = "inputBlurred"
	HandleGetReferralsInfo  = "getReferralsInfo"
	HandleSignIn            = "onSignIn"
	HandleSignUp            = "onSignUp"
	HandleGetUserByEmail    = "onGetUserByEmail"
	HandleGetClaimedRewards = "onGetClaimedRewards"
)

const prefsTimeout = 5 * time.Second

var messagePolicy = bluemonday.StrictPolicy()

// hostHandlers builds the table of commands the content may issue.
func (s *Session) hostHandlers() map[string]bridge.Handler {
	return map[string]bridge.Handler{
		HandleInitialized:       s.handleInitialized,
		HandleLogout:            s.handleLogout,
		HandleShow:              bridge.Notify(s.handleShow),
		HandleHide:              bridge.Notify(s.handleHide),
		HandleMaximize:          bridge.Notify(func(string) { s.SetMaximized(true) }),
		HandleRestore:           bridge.Notify(func(string) { s.SetMaximized(false) }),
		HandleShareWith:         bridge.Notify(s.handleShareWith),
		HandleShare:             bridge.Notify(s.platform.Share),
		HandleShowNativeMessage: bridge.Notify(s.handleShowNativeMessage),
		HandleInputFocused:      bridge.Notify(s.handleInputFocused),
		HandleInputBlurred:      bridge.Notify(func(string) { s.platform.InputBlurred() }),
		HandleGetReferralsInfo:  s.handleGetReferralsInfo,
		HandleSignIn:            bridge.Notify(s.userHandler(HandleSignIn, s.hooks.signIn)),
		HandleSignUp:            bridge.Notify(s.userHandler(HandleSignUp, s.hooks.signUp)),
		HandleGetUserByEmail:    s.handleGetUserByEmail,
		HandleGetClaimedRewards: s.handleGetClaimedRewards,
	}
}

// registerHostHandlers installs the host table on the session's endpoint.
func (s *Session) registerHostHandlers() {
	for name, h := range s.hostHandlers() {
		s.endpoint.RegisterHandler(name, h)
	}
}

// handleInitialized releases the queued commands. A malformed payload is
// logged and the drain still happens. Side effects run only on the first
// initialized report of the session.
func (s *Session) handleInitialized(payload string, respond bridge.Callback) {
	override, err := parseLayoutOverride(payload)
	if err != nil {
		s.log.Warn("malformed initialized payload", zap.Error(err))
	}

	opened := s.gate.Open()
	respond("")
	if !opened {
		return
	}

	s.platform.Initialized(s.id.String())

	s.mu.Lock()
	s.layout = override.apply(s.layout)
	layout, maximized := s.layout, s.maximized
	s.mu.Unlock()
	s.platform.Resize(layout, maximized)

	s.log.Info("content initialized")
	s.fetchEngagements()
}

// handleLogout answers first, then replaces the session.
func (s *Session) handleLogout(_ string, respond bridge.Callback) {
	respond("true")
	if s.onLogout != nil {
		s.onLogout()
	}
}

func (s *Session) handleShow(string) {
	s.platform.ShowWidget(s.id.String())
	s.ShowOnNative()
}

func (s *Session) handleHide(string) {
	if s.hooks.OnHide != nil {
		s.hooks.OnHide(s)
	}
	s.platform.HideWidget(s.id.String())
}

func (s *Session) handleShareWith(payload string) {
	var req shareRequest
	if err := sonic.UnmarshalString(payload, &req); err != nil {
		s.log.Warn("malformed shareWith payload", zap.Error(err))
		return
	}
	app := req.App.AndroidID
	if app == "" {
		s.platform.Share(req.Data)
		return
	}
	if !s.platform.ShareWith(app, req.Data) {
		s.platform.OpenStore(app)
	}
}

func (s *Session) handleShowNativeMessage(payload string) {
	text := strings.TrimSpace(messagePolicy.Sanitize(payload))
	if text == "" {
		return
	}
	s.platform.ShowMessage(text)
}

func (s *Session) handleInputFocused(payload string) {
	y, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
	if err != nil {
		s.log.Warn("malformed inputFocused payload", zap.String("payload", payload), zap.Error(err))
		return
	}
	s.platform.InputFocused(y)
}

// handleGetReferralsInfo answers with the install referrer and forgets it,
// so a second request answers "".
func (s *Session) handleGetReferralsInfo(_ string, respond bridge.Callback) {
	if s.prefs == nil {
		respond("")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), prefsTimeout)
		defer cancel()

		referrer, _, err := s.prefs.Take(ctx, prefs.KeyReferrer)
		if err != nil {
			s.log.Warn("read referrer", zap.Error(err))
			respond("")
			return
		}
		respond(referrer)
	}()
}

// userHandler decodes a user payload; "" and "null" mean nobody signed in.
func (s *Session) userHandler(command string, fn func(*Session, User)) func(string) {
	return func(payload string) {
		trimmed := strings.TrimSpace(payload)
		if trimmed == "" || trimmed == "null" {
			return
		}
		user, err := parseUser(trimmed)
		if err != nil {
			s.log.Warn("malformed user payload", zap.String("command", command), zap.Error(err))
			return
		}
		fn(s, user)
	}
}

func (s *Session) handleGetUserByEmail(payload string, respond bridge.Callback) {
	if s.hooks.OnGetUserByEmail == nil {
		respond("false")
		return
	}
	s.hooks.OnGetUserByEmail(payload, func(exists bool) {
		respond(strconv.FormatBool(exists))
	})
}

func (s *Session) handleGetClaimedRewards(_ string, respond bridge.Callback) {
	if s.hooks.OnGetClaimedRewards == nil {
		respond("[]")
		return
	}
	s.hooks.OnGetClaimedRewards(func(rewards []ClaimedReward) {
		respond(encodeClaimedRewards(rewards))
	})
}
