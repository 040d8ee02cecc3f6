package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing, so components can be constructed without a
// collector in tests.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Capability metrics
	InterceptedCalls *prometheus.CounterVec
	BlockedCalls     *prometheus.CounterVec
	FlagsRecorded    *prometheus.CounterVec

	// Permission prompt metrics
	PromptsOpen  prometheus.Gauge
	PromptsTotal prometheus.Counter

	// Execution timing metrics
	ScriptsHeld     prometheus.Counter
	ScriptsReleased prometheus.Counter

	// Scan metrics
	ScansCompleted prometheus.Counter

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptwarden_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptwarden_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Capability metrics
		InterceptedCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptwarden_capability_calls_total",
				Help: "Total number of intercepted capability calls",
			},
			[]string{"capability"},
		),
		BlockedCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptwarden_capability_blocked_total",
				Help: "Total number of capability calls denied",
			},
			[]string{"capability"},
		),
		FlagsRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptwarden_flags_recorded_total",
				Help: "Total number of behavioral flags recorded",
			},
			[]string{"flag"},
		),

		// Permission prompt metrics
		PromptsOpen: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptwarden_prompts_open",
				Help: "Number of permission prompts awaiting a response",
			},
		),
		PromptsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scriptwarden_prompts_total",
				Help: "Total number of permission prompts surfaced",
			},
		),

		// Execution timing metrics
		ScriptsHeld: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scriptwarden_scripts_held_total",
				Help: "Total number of script attachments held by delay rules",
			},
		),
		ScriptsReleased: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scriptwarden_scripts_released_total",
				Help: "Total number of held scripts released",
			},
		),

		// Scan metrics
		ScansCompleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scriptwarden_scans_completed_total",
				Help: "Total number of script scans completed",
			},
		),

		// Session metrics
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptwarden_sessions_active",
				Help: "Number of active analysis sessions",
			},
		),
		SessionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scriptwarden_sessions_total",
				Help: "Total number of analysis sessions created",
			},
		),

		// WebSocket metrics
		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptwarden_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptwarden_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Intercepted records an intercepted capability call
func (m *Metrics) Intercepted(capability string) {
	if m == nil {
		return
	}
	m.InterceptedCalls.WithLabelValues(capability).Inc()
}

// Blocked records a denied capability call
func (m *Metrics) Blocked(capability string) {
	if m == nil {
		return
	}
	m.BlockedCalls.WithLabelValues(capability).Inc()
}

// FlagRecorded records a behavioral flag
func (m *Metrics) FlagRecorded(flag string) {
	if m == nil {
		return
	}
	m.FlagsRecorded.WithLabelValues(flag).Inc()
}

// PromptOpened records a permission prompt being surfaced
func (m *Metrics) PromptOpened() {
	if m == nil {
		return
	}
	m.PromptsOpen.Inc()
	m.PromptsTotal.Inc()
}

// PromptClosed records a permission prompt being resolved
func (m *Metrics) PromptClosed() {
	if m == nil {
		return
	}
	m.PromptsOpen.Dec()
}

// ScriptHeld records a script attachment being held
func (m *Metrics) ScriptHeld() {
	if m == nil {
		return
	}
	m.ScriptsHeld.Inc()
}

// ScriptReleased records a held script being released
func (m *Metrics) ScriptReleased() {
	if m == nil {
		return
	}
	m.ScriptsReleased.Inc()
}

// ScanCompleted records a completed script scan
func (m *Metrics) ScanCompleted() {
	if m == nil {
		return
	}
	m.ScansCompleted.Inc()
}

// SessionOpened records a new analysis session
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
	m.SessionsTotal.Inc()
}

// SessionClosed records a session being torn down
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

// WSConnected increments WebSocket connections
func (m *Metrics) WSConnected() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// WSDisconnected decrements WebSocket connections
func (m *Metrics) WSDisconnected() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}
