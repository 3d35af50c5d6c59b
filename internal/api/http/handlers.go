package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/widgetshell/internal/cache"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/widgetshell/internal/session"
	"github.com/GriffinCanCode/widgetshell/internal/storage/prefs"
	"github.com/GriffinCanCode/widgetshell/internal/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Interceptor answers resource requests from the local cache.
type Interceptor interface {
	Intercept(ctx context.Context, req cache.Request) *cache.Response
}

// Upstream fetches resources the cache cannot serve.
type Upstream interface {
	Get(ctx context.Context, url string) (*httpclient.Response, error)
}

// PrefStore persists values captured by platform glue.
type PrefStore interface {
	Put(ctx context.Context, key, value string) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	sessions    *session.Manager
	interceptor Interceptor
	upstream    Upstream
	prefs       PrefStore
	log         *logging.Logger
	startedAt   time.Time
	hosts       []string
}

// NewHandlers creates a new handler set
func NewHandlers(
	sessions *session.Manager,
	interceptor Interceptor,
	upstream Upstream,
	prefs PrefStore,
	log *logging.Logger,
) *Handlers {
	return &Handlers{
		sessions:    sessions,
		interceptor: interceptor,
		upstream:    upstream,
		prefs:       prefs,
		log:         logging.OrNop(log).Named("http"),
		startedAt:   time.Now(),
		hosts:       sessions.Env().Hosts(),
	}
}

// AllowHosts adds hosts /resource may fetch from. An entry with a leading
// dot matches any subdomain of it.
func (h *Handlers) AllowHosts(hosts ...string) {
	for _, host := range hosts {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			h.hosts = append(h.hosts, host)
		}
	}
}

func (h *Handlers) hostAllowed(u *url.URL) bool {
	host := strings.ToLower(u.Host)
	name := strings.ToLower(u.Hostname())
	for _, allowed := range h.hosts {
		if strings.HasPrefix(allowed, ".") {
			if strings.HasSuffix(name, allowed) {
				return true
			}
			continue
		}
		if host == allowed || name == allowed {
			return true
		}
	}
	return false
}

// Health reports liveness and the current session.
func (h *Handlers) Health(c *gin.Context) {
	s := h.sessions.Current()
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"uptime":      time.Since(h.startedAt).Round(time.Second).String(),
		"env":         h.sessions.Env().Name,
		"session":     s.ID().String(),
		"initialized": s.Initialized(),
	})
}

// Resource serves ?url= from the cache, falling back to the network.
func (h *Handlers) Resource(c *gin.Context) {
	raw := c.Query("url")
	u, err := url.Parse(raw)
	if raw == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must be an absolute http(s) URL"})
		return
	}
	if !h.hostAllowed(u) {
		h.log.Warn("resource host rejected", zap.String("host", u.Host))
		c.JSON(http.StatusForbidden, gin.H{"error": "host not allowed"})
		return
	}

	ctx := c.Request.Context()
	if resp := h.interceptor.Intercept(ctx, cache.Request{Method: c.Request.Method, URL: raw}); resp != nil {
		defer resp.Body.Close()
		headers := map[string]string{"X-Cache": "hit"}
		for k, v := range resp.Headers {
			headers[k] = v
		}
		c.DataFromReader(resp.StatusCode, -1, resp.MimeType, resp.Body, headers)
		return
	}

	upstream, err := h.upstream.Get(ctx, raw)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			c.JSON(statusErr.StatusCode, gin.H{"error": err.Error()})
			return
		}
		h.log.Warn("upstream fetch failed", zap.String("url", raw), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.Header("X-Cache", "miss")
	c.Data(http.StatusOK, upstream.ContentType(), upstream.Body)
}

// Session returns a snapshot of the current session.
func (h *Handlers) Session(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.Current().Snapshot())
}

// SendCommand forwards the request body to the content as the named
// command. It is queued until the content is initialized.
func (h *Handlers) SendCommand(c *gin.Context) {
	name := c.Param("name")
	if err := utils.ValidateCommandName(name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, utils.MaxPayloadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(payload) > utils.MaxPayloadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}
	if err := utils.ValidatePayload(payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s := h.sessions.Current()
	initialized := s.Initialized()
	if !s.SendToContent(name, string(payload), nil) {
		c.JSON(http.StatusConflict, gin.H{"error": "session closed"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"session": s.ID().String(),
		"command": name,
		"queued":  !initialized,
	})
}

// Reload replaces the current session.
func (h *Handlers) Reload(c *gin.Context) {
	s, err := h.sessions.Reload(c.Request.Context())
	if errors.Is(err, session.ErrClosed) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.log.Warn("reload", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{
		"session":  s.ID().String(),
		"load_url": h.sessions.LoadURL(),
	})
}

type referrerRequest struct {
	Referrer string `json:"referrer" binding:"required"`
}

// Referrer stores the install referrer for the content to read once.
func (h *Handlers) Referrer(c *gin.Context) {
	var req referrerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.prefs.Put(c.Request.Context(), prefs.KeyReferrer, req.Referrer); err != nil {
		h.log.Error("store referrer", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store referrer"})
		return
	}
	c.Status(http.StatusNoContent)
}
