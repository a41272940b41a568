package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "widgethost"

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Supervisor metrics
	InstancesActive prometheus.Gauge
	Launches        *prometheus.CounterVec
	Crashes         *prometheus.CounterVec

	// Broker metrics
	CapabilityCalls    *prometheus.CounterVec
	CapabilityDuration *prometheus.HistogramVec

	// Permission metrics
	Prompts          *prometheus.CounterVec
	RateLimited      *prometheus.CounterVec
	RateLimitEntries prometheus.Gauge

	// Persistence metrics
	StateWrites *prometheus.CounterVec

	// Registry metrics
	RegistryWidgets prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
}

// NewMetrics creates a metrics collector on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		InstancesActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instances_active",
			Help:      "Number of running widget instances",
		}),
		Launches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "launches_total",
				Help:      "Widget launches by result",
			},
			[]string{"result"},
		),
		Crashes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "crashes_total",
				Help:      "Widget instance crashes",
			},
			[]string{"widget"},
		),

		CapabilityCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capability_calls_total",
				Help:      "Capability requests by outcome",
			},
			[]string{"capability", "outcome"},
		),
		CapabilityDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "capability_duration_seconds",
				Help:      "Capability request duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"capability"},
		),

		Prompts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "permission_prompts_total",
				Help:      "Permission prompts by decision",
			},
			[]string{"capability", "decision"},
		),
		RateLimited: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Capability calls rejected by the rate limiter",
			},
			[]string{"capability"},
		),
		RateLimitEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limit_entries",
			Help:      "Live rate limiter entries",
		}),

		StateWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_writes_total",
				Help:      "Durable state writes by reason and result",
			},
			[]string{"reason", "result"},
		),

		RegistryWidgets: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_widgets",
			Help:      "Number of installed widgets",
		}),

		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Number of active WebSocket connections",
		}),
		WSMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_total",
				Help:      "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the exposition format for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLaunch records a launch attempt; result is "ok" or an error kind
func (m *Metrics) RecordLaunch(result string) {
	if m == nil {
		return
	}
	m.Launches.WithLabelValues(result).Inc()
}

// RecordCrash records a crashed instance
func (m *Metrics) RecordCrash(widgetID string) {
	if m == nil {
		return
	}
	m.Crashes.WithLabelValues(widgetID).Inc()
}

// SetInstancesActive sets the number of running instances
func (m *Metrics) SetInstancesActive(n int) {
	if m == nil {
		return
	}
	m.InstancesActive.Set(float64(n))
}

// RecordCapability records a brokered call; outcome is "ok" or an error kind
func (m *Metrics) RecordCapability(capability, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.CapabilityCalls.WithLabelValues(capability, outcome).Inc()
	m.CapabilityDuration.WithLabelValues(capability).Observe(duration.Seconds())
}

// RecordPrompt records a permission prompt decision
func (m *Metrics) RecordPrompt(capability, decision string) {
	if m == nil {
		return
	}
	m.Prompts.WithLabelValues(capability, decision).Inc()
}

// RecordRateLimited records a rejected call
func (m *Metrics) RecordRateLimited(capability string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(capability).Inc()
}

// SetRateLimitEntries sets the number of live limiter entries
func (m *Metrics) SetRateLimitEntries(n int) {
	if m == nil {
		return
	}
	m.RateLimitEntries.Set(float64(n))
}

// RecordStateWrite records a durable state write
func (m *Metrics) RecordStateWrite(reason string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StateWrites.WithLabelValues(reason, result).Inc()
}

// SetRegistryWidgets sets the number of installed widgets
func (m *Metrics) SetRegistryWidgets(n int) {
	if m == nil {
		return
	}
	m.RegistryWidgets.Set(float64(n))
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}
