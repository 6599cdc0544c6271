package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a Prometheus registry and the collectors the service exports.
// Each instance has its own registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight    prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpErrors      *prometheus.CounterVec
	ticketOps       *prometheus.CounterVec
	subscribers     prometheus.Gauge
	subscriptions   prometheus.Counter
	deliveries      prometheus.Counter
	callbackErrors  prometheus.Counter
	evictions       prometheus.Counter
	autoReplies     prometheus.Counter
	rateLimitDenied prometheus.Counter
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "HTTP responses carrying an error body, by error code.",
		}, []string{"method", "path", "code"}),
		ticketOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_operations_total",
			Help: "Ticket and message operations by outcome.",
		}, []string{"operation", "outcome"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_subscribers",
			Help: "Live subscriptions across all tickets.",
		}),
		subscriptions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_subscriptions_total",
			Help: "Subscriptions opened.",
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_deliveries_total",
			Help: "Messages handed to subscriber callbacks successfully.",
		}),
		callbackErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_callback_failures_total",
			Help: "Subscriber callbacks that returned an error or panicked.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realtime_evictions_total",
			Help: "Subscribers dropped for exceeding their backlog.",
		}),
		autoReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auto_replies_total",
			Help: "Automatic trader replies appended.",
		}),
		rateLimitDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rate_limit_denied_total",
			Help: "Requests rejected by the per-identity limiter.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight, m.httpRequests, m.httpDuration, m.httpErrors,
		m.ticketOps,
		m.subscribers, m.subscriptions, m.deliveries, m.callbackErrors, m.evictions,
		m.autoReplies, m.rateLimitDenied,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RequestStarted tracks an in-flight request; call the returned func when done.
func (m *Metrics) RequestStarted() func() {
	if m == nil {
		return func() {}
	}
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, path, code).Inc()
	m.httpDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(method, path, code).Inc()
}

// RecordTicketOperation counts a service operation outcome such as
// ("append_message", "ok") or ("delete_ticket", "NOT_FOUND").
func (m *Metrics) RecordTicketOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.ticketOps.WithLabelValues(operation, outcome).Inc()
}

// RecordAutoReply counts an automatic reply.
func (m *Metrics) RecordAutoReply() {
	if m == nil {
		return
	}
	m.autoReplies.Inc()
}

// RecordRateLimited counts a limiter rejection.
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitDenied.Inc()
}

// The methods below let Metrics observe the realtime channel.

func (m *Metrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.subscribers.Inc()
	m.subscriptions.Inc()
}

func (m *Metrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.subscribers.Dec()
}

func (m *Metrics) MessageDelivered() {
	if m == nil {
		return
	}
	m.deliveries.Inc()
}

func (m *Metrics) CallbackFailed() {
	if m == nil {
		return
	}
	m.callbackErrors.Inc()
}

func (m *Metrics) SubscriberEvicted() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}
