package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"webmcp-inspector/internal/application/port/output"
)

var _ output.MetricsPort = (*PrometheusMetrics)(nil)

type PrometheusMetrics struct {
	registry     *prometheus.Registry
	toolCalls    *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	toolsChanged *prometheus.CounterVec
	targets      prometheus.Gauge
}

// NewPrometheusMetrics registers the inspector collectors on a private registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webmcp",
			Name:      "tool_calls_total",
			Help:      "Tool calls dispatched to pages, by outcome.",
		}, []string{"tool", "outcome"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "webmcp",
			Name:      "tool_call_duration_seconds",
			Help:      "Time spent waiting for in-page tool execution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		toolsChanged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webmcp",
			Name:      "tools_changed_total",
			Help:      "Tool list change notifications applied, by target.",
		}, []string{"target"}),
		targets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "webmcp",
			Name:      "attached_targets",
			Help:      "Browser tabs currently attached.",
		}),
	}
	m.registry.MustRegister(m.toolCalls, m.callDuration, m.toolsChanged, m.targets)
	return m
}

func (m *PrometheusMetrics) ToolCalled(name string, outcome string, elapsed time.Duration) {
	m.toolCalls.WithLabelValues(name, outcome).Inc()
	if elapsed > 0 {
		m.callDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	}
}

func (m *PrometheusMetrics) ToolsChanged(targetID string) {
	m.toolsChanged.WithLabelValues(targetID).Inc()
}

func (m *PrometheusMetrics) TargetsAttached(n int) {
	m.targets.Set(float64(n))
}

func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
