package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"toolgate/internal/domain"
)

type PrometheusMetrics struct {
	connectDuration *prometheus.HistogramVec
	liveSessions    prometheus.Gauge
	discoveryTools  *prometheus.CounterVec
	catalogSize     prometheus.Gauge
	searchDuration  prometheus.Histogram
	searchResults   prometheus.Histogram
	executeDuration *prometheus.HistogramVec
	gateSelected    *prometheus.HistogramVec
	gateTokens      *prometheus.HistogramVec
	advisorLatency  *prometheus.HistogramVec
	advisorTokens   *prometheus.CounterVec
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		connectDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolgate_connect_duration_seconds",
				Help:    "Duration of backend connect attempts in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"backend", "outcome"},
		),
		liveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolgate_live_sessions",
				Help: "Current number of live backend sessions",
			},
		),
		discoveryTools: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_discovered_tools_total",
				Help: "Total number of tools registered by discovery sweeps",
			},
			[]string{"backend"},
		),
		catalogSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolgate_catalog_size",
				Help: "Current number of tools in the catalog",
			},
		),
		searchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "toolgate_search_duration_seconds",
				Help:    "Duration of discovery searches in seconds",
				Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		searchResults: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "toolgate_search_results",
				Help:    "Number of matches returned per discovery search",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
		),
		executeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolgate_execute_duration_seconds",
				Help:    "Duration of forwarded tool executions in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"backend", "status"},
		),
		gateSelected: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolgate_gate_selected_tools",
				Help:    "Number of tools selected per gating request",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
			[]string{"policy"},
		),
		gateTokens: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolgate_gate_total_tokens",
				Help:    "Total estimated tokens per gating selection",
				Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
			[]string{"policy"},
		),
		advisorLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolgate_advisor_latency_seconds",
				Help:    "Latency of gating advisor model calls in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider", "model"},
		),
		advisorTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_advisor_tokens_total",
				Help: "Total number of tokens consumed by gating advisor calls",
			},
			[]string{"provider", "model"},
		),
	}
}

func (p *PrometheusMetrics) ObserveConnect(backend string, duration time.Duration, outcome domain.ConnectOutcome) {
	p.connectDuration.WithLabelValues(backend, string(outcome)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) SetLiveSessions(count int) {
	p.liveSessions.Set(float64(count))
}

func (p *PrometheusMetrics) ObserveDiscovery(backend string, duration time.Duration, registered int) {
	p.discoveryTools.WithLabelValues(backend).Add(float64(registered))
}

func (p *PrometheusMetrics) SetCatalogSize(count int) {
	p.catalogSize.Set(float64(count))
}

func (p *PrometheusMetrics) ObserveSearch(duration time.Duration, results int) {
	p.searchDuration.Observe(duration.Seconds())
	p.searchResults.Observe(float64(results))
}

func (p *PrometheusMetrics) ObserveExecute(backend string, duration time.Duration, status domain.ExecuteStatus) {
	p.executeDuration.WithLabelValues(backend, string(status)).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveGate(metric domain.GateMetric) {
	p.gateSelected.WithLabelValues(metric.Policy).Observe(float64(metric.Selected))
	p.gateTokens.WithLabelValues(metric.Policy).Observe(float64(metric.TotalTokens))
}

func (p *PrometheusMetrics) ObserveAdvisorLatency(provider string, model string, duration time.Duration) {
	p.advisorLatency.WithLabelValues(provider, model).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveAdvisorTokens(provider string, model string, tokens int) {
	p.advisorTokens.WithLabelValues(provider, model).Add(float64(tokens))
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
