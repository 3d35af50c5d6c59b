package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/config"
	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Cache.Dir = t.TempDir()
	cfg.Storage.PrefsPath = ":memory:"
	cfg.RateLimit.Enabled = false
	return cfg
}

func startServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv, err := NewServer(cfg, Options{Logger: logging.NewNop()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Start(ctx))
	t.Cleanup(func() {
		cancel()
		_ = srv.Close()
	})
	return srv
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestRoutes(t *testing.T) {
	srv := startServer(t, testConfig(t))

	w := get(t, srv, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	w = get(t, srv, "/session")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mode":"rewards"`)

	w = get(t, srv, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "widgetshell_http_requests_total")

	w = get(t, srv, "/resource")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownEnvRejected(t *testing.T) {
	cfg := testConfig(t)
	cfg.Widget.Env = "moon"

	_, err := NewServer(cfg, Options{Logger: logging.NewNop()})
	assert.Error(t, err)
}

func TestContentScriptInitializesSession(t *testing.T) {
	script := filepath.Join(t.TempDir(), "widget.js")
	require.NoError(t, os.WriteFile(script, []byte(`
		var mode = "";
		WidgetBridge.registerHandler("setMode", function (data, respond) { mode = data; respond(); });
		WidgetBridge.callHandler("initialized", {width: 60}, null);
	`), 0o644))

	cfg := testConfig(t)
	cfg.Widget.ContentScript = script
	srv := startServer(t, cfg)

	require.Eventually(t, func() bool {
		return srv.Sessions().Current().Initialized()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 60.0, srv.Sessions().Current().Layout().Width)

	req := httptest.NewRequest(http.MethodPost, "/session/commands/setMode", strings.NewReader("login"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		v, err := srv.content.Run(context.Background(), "mode")
		return err == nil && v == "login"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReloadRouteReinitializesContent(t *testing.T) {
	script := filepath.Join(t.TempDir(), "widget.js")
	require.NoError(t, os.WriteFile(script, []byte(`
		var mode = "";
		WidgetBridge.registerHandler("setMode", function (data, respond) { mode = data; respond(); });
		WidgetBridge.callHandler("initialized", "", null);
	`), 0o644))

	cfg := testConfig(t)
	cfg.Widget.ContentScript = script
	srv := startServer(t, cfg)

	first := srv.Sessions().Current()
	require.Eventually(t, first.Initialized, 2*time.Second, 10*time.Millisecond)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/session/reload", nil))
	require.Equal(t, http.StatusOK, w.Code)

	next := srv.Sessions().Current()
	require.NotSame(t, first, next)
	next.SetMode("login")

	require.Eventually(t, next.Initialized, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		v, err := srv.content.Run(context.Background(), "mode")
		return err == nil && v == "login"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResourceHostsFromConfig(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("hello"))
	}))
	defer upstream.Close()

	cfg := testConfig(t)
	cfg.Widget.ResourceHosts = []string{upstream.Listener.Addr().String()}
	srv := startServer(t, cfg)

	w := get(t, srv, "/resource?url="+upstream.URL+"/notes.txt")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())

	w = get(t, srv, "/resource?url=http://169.254.169.254/latest/meta-data/x.js")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
