package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCommand("out", "setMode", "sent")
		m.GateQueue(3)
		m.GateDrain(3)
		m.GateDrop(1)
		m.CacheLookup("hit")
		m.CacheWrite(10)
		m.CacheFailure("fetch")
		m.SessionCreated()
		m.PlatformEvent("share")
		m.WSConnected(1)
	})
}

func TestRecorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordCommand("in", "initialized", "handled")
	m.RecordCommand("in", "initialized", "handled")
	m.CacheLookup("miss")
	m.CacheWrite(128)
	m.GateQueue(4)
	m.GateDrain(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BridgeCommands.WithLabelValues("in", "initialized", "handled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 128.0, testutil.ToFloat64(m.CacheBytes))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.GateQueued))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.GateDrained))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/session", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/session", "/session", "/nope"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/session", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}
