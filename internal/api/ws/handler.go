package ws

import (
	"net/http"

	"github.com/GriffinCanCode/widgetshell/internal/bridge"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/widgetshell/internal/session"
	"github.com/GriffinCanCode/widgetshell/internal/shared/id"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	Subprotocols:    []string{bridge.SubprotocolCBOR, bridge.SubprotocolJSON},
	CheckOrigin: func(r *http.Request) bool {
		return true // the bridge carries no credentials
	},
}

// Handler attaches websocket clients to the current session's bridge.
type Handler struct {
	sessions *session.Manager
	log      *logging.Logger
	metrics  *monitoring.Metrics
}

// NewHandler creates a new WebSocket handler
func NewHandler(sessions *session.Manager, log *logging.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		sessions: sessions,
		log:      logging.OrNop(log).Named("ws"),
		metrics:  metrics,
	}
}

// HandleConnection upgrades the request and serves the bridge until the
// client goes away or the session is replaced.
func (h *Handler) HandleConnection(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn, err := bridge.NewConn(ws)
	if err != nil {
		h.log.Warn("unsupported subprotocol", zap.String("subprotocol", ws.Subprotocol()), zap.Error(err))
		_ = ws.Close()
		return
	}

	s, err := h.sessions.Attach(conn)
	if err != nil {
		h.log.Warn("attach failed", zap.Error(err))
		return
	}

	log := h.log.With(
		zap.String("conn", id.NewConnID().String()),
		zap.String("session", s.ID().String()),
		zap.String("codec", conn.Codec().Name()),
	)
	log.Info("bridge connected")
	h.metrics.WSConnected(1)
	defer h.metrics.WSConnected(-1)

	if err := conn.Serve(c.Request.Context(), s.Endpoint()); err != nil {
		log.Debug("bridge closed", zap.Error(err))
		return
	}
	log.Info("bridge disconnected")
}
