package session

import (
	"context"

	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// Platform is the native glue the session drives: windowing, intents and
// toasts. Calls arrive on the host looper.
type Platform interface {
	Initialized(sessionID string)
	ShowWidget(sessionID string)
	HideWidget(sessionID string)
	Resize(layout Layout, maximized bool)
	Share(text string)
	// ShareWith sends text to a specific app, reporting false when the app
	// is not installed.
	ShareWith(app, text string) bool
	OpenStore(app string)
	ShowMessage(text string)
	InputFocused(y float64)
	InputBlurred()
}

// Preferences is the persisted key-value state the session reads and clears.
type Preferences interface {
	Take(ctx context.Context, key string) (string, bool, error)
	ClearAccount(ctx context.Context) error
}

// Hooks are the host application's answers to user-defined widget commands.
// Nil fields fall back to defaults.
type Hooks struct {
	OnSignIn func(s *Session, u User)
	OnSignUp func(s *Session, u User)

	// OnGetUserByEmail must call reply exactly once.
	OnGetUserByEmail    func(email string, reply func(exists bool))
	OnGetClaimedRewards func(reply func([]ClaimedReward))
	OnInitialized       func(s *Session)
	OnHide              func(s *Session)
}

func (h Hooks) signIn(s *Session, u User) {
	if h.OnSignIn != nil {
		h.OnSignIn(s, u)
		return
	}
	s.SetMode(ModeRewards)
}

func (h Hooks) signUp(s *Session, u User) {
	if h.OnSignUp != nil {
		h.OnSignUp(s, u)
		return
	}
	s.SetMode(ModeRewards)
}

// LogPlatform records platform calls as log lines and metrics. It is the
// platform used when the shell runs headless.
type LogPlatform struct {
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewLogPlatform creates a headless platform.
func NewLogPlatform(log *logging.Logger, metrics *monitoring.Metrics) *LogPlatform {
	return &LogPlatform{log: logging.OrNop(log).Named("platform"), metrics: metrics}
}

func (p *LogPlatform) event(name string, fields ...zap.Field) {
	p.metrics.PlatformEvent(name)
	p.log.Info(name, fields...)
}

func (p *LogPlatform) Initialized(sessionID string) {
	p.event("initialized", zap.String("session", sessionID))
}

func (p *LogPlatform) ShowWidget(sessionID string) {
	p.event("show", zap.String("session", sessionID))
}

func (p *LogPlatform) HideWidget(sessionID string) {
	p.event("hide", zap.String("session", sessionID))
}

func (p *LogPlatform) Resize(layout Layout, maximized bool) {
	p.event("resize",
		zap.Float64("width", layout.Width),
		zap.Float64("height", layout.Height),
		zap.Float64("top", layout.Top),
		zap.Float64("left", layout.Left),
		zap.Bool("maximized", maximized),
	)
}

func (p *LogPlatform) Share(text string) {
	p.event("share", zap.Int("length", len(text)))
}

// ShareWith reports every app as missing; a headless shell has none.
func (p *LogPlatform) ShareWith(app, text string) bool {
	p.event("share_with", zap.String("app", app), zap.Int("length", len(text)))
	return false
}

func (p *LogPlatform) OpenStore(app string) {
	p.event("open_store", zap.String("app", app))
}

func (p *LogPlatform) ShowMessage(text string) {
	p.event("message", zap.String("text", text))
}

func (p *LogPlatform) InputFocused(y float64) {
	p.event("input_focused", zap.Float64("y", y))
}

func (p *LogPlatform) InputBlurred() {
	p.event("input_blurred")
}
