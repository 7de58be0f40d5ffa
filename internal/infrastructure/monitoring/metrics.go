package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can take one unconditionally.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Bridge lifecycle
	BridgesActive prometheus.Gauge
	Transitions   *prometheus.CounterVec

	// Outbound calls
	CallsTotal   *prometheus.CounterVec
	PendingCalls prometheus.Gauge

	// Inbound traffic
	MessagesReceived *prometheus.CounterVec
	RepliesTotal     *prometheus.CounterVec
	HandlerCalls     *prometheus.CounterVec
	HandlerDuration  *prometheus.HistogramVec
	UnknownHandlers  prometheus.Counter
	ConsoleLines     prometheus.Counter

	// Transport frames
	Frames *prometheus.CounterVec

	Uptime    prometheus.GaugeFunc
	startTime time.Time

	registry prometheus.Gatherer
}

// NewMetrics creates a metrics collector registered on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)
	m.registry = reg
	return m
}

// NewMetricsWith creates a metrics collector on the given registerer.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{startTime: time.Now()}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsbridge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jsbridge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	m.BridgesActive = factory.NewGauge(prometheus.GaugeOpts{
		Name: "jsbridge_bridges_active",
		Help: "Number of bridges attached to a transport",
	})
	m.Transitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsbridge_lifecycle_transitions_total",
			Help: "Lifecycle transitions by target state",
		},
		[]string{"to"},
	)

	m.CallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsbridge_calls_total",
			Help: "Outbound calls by outcome (sent, dropped, failed)",
		},
		[]string{"outcome"},
	)
	m.PendingCalls = factory.NewGauge(prometheus.GaugeOpts{
		Name: "jsbridge_pending_calls",
		Help: "Outbound calls waiting for a reply",
	})

	m.MessagesReceived = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsbridge_messages_received_total",
			Help: "Inbound envelopes by kind (reply, request, malformed)",
		},
		[]string{"kind"},
	)
	m.RepliesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsbridge_replies_total",
			Help: "Inbound replies by outcome (resolved, unknown)",
		},
		[]string{"outcome"},
	)
	m.HandlerCalls = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsbridge_handler_calls_total",
			Help: "Registered handler invocations by status (ok, error)",
		},
		[]string{"handler", "status"},
	)
	m.HandlerDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jsbridge_handler_duration_seconds",
			Help:    "Handler execution time in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"handler"},
	)
	m.UnknownHandlers = factory.NewCounter(prometheus.CounterOpts{
		Name: "jsbridge_unknown_handlers_total",
		Help: "Requests naming a handler that is not registered",
	})
	m.ConsoleLines = factory.NewCounter(prometheus.CounterOpts{
		Name: "jsbridge_console_lines_total",
		Help: "Console lines forwarded from the remote environment",
	})

	m.Frames = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsbridge_transport_frames_total",
			Help: "Transport frames by transport, direction and type",
		},
		[]string{"transport", "direction", "type"},
	)

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "jsbridge_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Gatherer returns the registry created by NewMetrics, or the default
// gatherer when the metrics were registered elsewhere.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil || m.registry == nil {
		return prometheus.DefaultGatherer
	}
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// BridgeAttached marks a bridge as attached to its transport.
func (m *Metrics) BridgeAttached() {
	if m == nil {
		return
	}
	m.BridgesActive.Inc()
}

// BridgeDetached marks a bridge as detached from its transport.
func (m *Metrics) BridgeDetached() {
	if m == nil {
		return
	}
	m.BridgesActive.Dec()
}

// RecordTransition counts a lifecycle transition.
func (m *Metrics) RecordTransition(to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to).Inc()
}

// RecordCall counts an outbound call.
func (m *Metrics) RecordCall(outcome string) {
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(outcome).Inc()
}

// AddPending adjusts the pending-call gauge by delta.
func (m *Metrics) AddPending(delta int) {
	if m == nil {
		return
	}
	m.PendingCalls.Add(float64(delta))
}

// RecordMessage counts an inbound envelope.
func (m *Metrics) RecordMessage(kind string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(kind).Inc()
}

// RecordReply counts a reply by outcome.
func (m *Metrics) RecordReply(outcome string) {
	if m == nil {
		return
	}
	m.RepliesTotal.WithLabelValues(outcome).Inc()
}

// RecordHandler counts a handler invocation and its duration. handler must
// be a registered name; the label set grows with every distinct value.
func (m *Metrics) RecordHandler(handler, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HandlerCalls.WithLabelValues(handler, status).Inc()
	m.HandlerDuration.WithLabelValues(handler).Observe(duration.Seconds())
}

// RecordUnknownHandler counts a request for a handler that is not
// registered. The name is left out since the remote side picks it.
func (m *Metrics) RecordUnknownHandler() {
	if m == nil {
		return
	}
	m.UnknownHandlers.Inc()
}

// RecordConsole counts a forwarded console line.
func (m *Metrics) RecordConsole() {
	if m == nil {
		return
	}
	m.ConsoleLines.Inc()
}

// RecordFrame counts a transport frame.
func (m *Metrics) RecordFrame(transport, direction, frameType string) {
	if m == nil {
		return
	}
	m.Frames.WithLabelValues(transport, direction, frameType).Inc()
}
