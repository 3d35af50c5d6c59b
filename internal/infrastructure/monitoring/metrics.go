package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "widgetshell"

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can be built without a registry in tests.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Bridge metrics
	BridgeCommands *prometheus.CounterVec
	WSConnections  prometheus.Gauge

	// Gate metrics
	GateQueued  prometheus.Gauge
	GateDrained prometheus.Counter
	GateDropped prometheus.Counter

	// Cache metrics
	CacheLookups  *prometheus.CounterVec
	CacheWrites   prometheus.Counter
	CacheBytes    prometheus.Counter
	CacheFailures *prometheus.CounterVec

	// Session metrics
	SessionsCreated prometheus.Counter
	PlatformEvents  *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{startTime: time.Now()}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.BridgeCommands = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_commands_total",
			Help:      "Bridge commands by direction, name and outcome",
		},
		[]string{"direction", "command", "outcome"},
	)
	m.WSConnections = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "bridge_ws_connections",
		Help:      "Open bridge websocket connections",
	})

	m.GateQueued = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "gate_queued_commands",
		Help:      "Commands waiting for the content to initialize",
	})
	m.GateDrained = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_drained_commands_total",
		Help:      "Queued commands delivered when the gate opened",
	})
	m.GateDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_dropped_commands_total",
		Help:      "Commands dropped because their session was discarded",
	})

	m.CacheLookups = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Resource interceptions by result (hit, miss, skip)",
		},
		[]string{"result"},
	)
	m.CacheWrites = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_writes_total",
		Help:      "Cache entries completed",
	})
	m.CacheBytes = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_written_bytes_total",
		Help:      "Bytes written to completed cache entries",
	})
	m.CacheFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_failures_total",
			Help:      "Failed cache fills by stage",
		},
		[]string{"stage"},
	)

	m.SessionsCreated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Widget sessions created",
	})
	m.PlatformEvents = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_events_total",
			Help:      "Calls into the platform glue by event",
		},
		[]string{"event"},
	)

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCommand counts a bridge command. direction is "in" or "out".
func (m *Metrics) RecordCommand(direction, command, outcome string) {
	if m == nil {
		return
	}
	m.BridgeCommands.WithLabelValues(direction, command, outcome).Inc()
}

// WSConnected adjusts the open websocket gauge by delta.
func (m *Metrics) WSConnected(delta int) {
	if m == nil {
		return
	}
	m.WSConnections.Add(float64(delta))
}

// GateQueue sets the current gate backlog.
func (m *Metrics) GateQueue(n int) {
	if m == nil {
		return
	}
	m.GateQueued.Set(float64(n))
}

// GateDrain counts delivered queued commands.
func (m *Metrics) GateDrain(n int) {
	if m == nil {
		return
	}
	m.GateDrained.Add(float64(n))
}

// GateDrop counts dropped commands.
func (m *Metrics) GateDrop(n int) {
	if m == nil {
		return
	}
	m.GateDropped.Add(float64(n))
}

// CacheLookup counts an interception result.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// CacheWrite counts a completed cache entry of n bytes.
func (m *Metrics) CacheWrite(n int64) {
	if m == nil {
		return
	}
	m.CacheWrites.Inc()
	m.CacheBytes.Add(float64(n))
}

// CacheFailure counts a failed fill. stage is "fetch", "decode" or "write".
func (m *Metrics) CacheFailure(stage string) {
	if m == nil {
		return
	}
	m.CacheFailures.WithLabelValues(stage).Inc()
}

// SessionCreated counts a new session.
func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

// PlatformEvent counts a platform glue call.
func (m *Metrics) PlatformEvent(event string) {
	if m == nil {
		return
	}
	m.PlatformEvents.WithLabelValues(event).Inc()
}
