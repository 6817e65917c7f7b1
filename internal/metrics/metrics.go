// Package metrics регистрирует метрики Prometheus в отдельном реестре.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics хранит все метрики приложения.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	urlClicks        prometheus.Counter
	workflowRuns     *prometheus.CounterVec
	realtimeEvents   *prometheus.CounterVec
	stripeErrors     *prometheus.CounterVec
	realtimeSessions prometheus.Gauge
}

// New создаёт реестр и регистрирует в нём метрики. Отдельный реестр
// позволяет вызывать New несколько раз в тестах.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kazi_http_requests_total",
			Help: "Total HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kazi_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		urlClicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "kazi_url_clicks_total",
			Help: "Short link clicks recorded.",
		}),
		workflowRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kazi_workflow_executions_total",
			Help: "Workflow executions by final status.",
		}, []string{"status"}),
		realtimeEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kazi_realtime_events_total",
			Help: "Change events emitted to the realtime feed.",
		}, []string{"table", "type"}),
		stripeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kazi_stripe_errors_total",
			Help: "Failed Stripe API calls.",
		}, []string{"operation"}),
		realtimeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kazi_realtime_connections",
			Help: "Open realtime websocket connections.",
		}),
	}
}

// Handler отдаёт метрики реестра.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) URLClick() {
	m.urlClicks.Inc()
}

func (m *Metrics) WorkflowExecution(status string) {
	m.workflowRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) RealtimeEvent(table, changeType string) {
	m.realtimeEvents.WithLabelValues(table, changeType).Inc()
}

func (m *Metrics) StripeError(operation string) {
	m.stripeErrors.WithLabelValues(operation).Inc()
}

func (m *Metrics) SetRealtimeConnections(n int) {
	m.realtimeSessions.Set(float64(n))
}
