package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsRegistry holds all Prometheus metrics for the registry service
type MetricsRegistry struct {
	reg *prometheus.Registry

	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight *prometheus.GaugeVec

	// Cache Metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Ledger Metrics
	RegistrationsTotal  *prometheus.CounterVec
	LedgerCounter       prometheus.Gauge
	RegistrationReverts prometheus.Counter

	// Validator Metrics
	ValidatorRunsTotal *prometheus.CounterVec
	ValidatorDuration  prometheus.Histogram

	// Agent Metrics
	AgentTurnsTotal     *prometheus.CounterVec
	AgentToolCallsTotal *prometheus.CounterVec

	// Indexer Metrics
	EventsIndexedTotal *prometheus.CounterVec
}

// NewMetricsRegistry initializes a registry with its own Prometheus
// collector set, so several instances can coexist in one process.
func NewMetricsRegistry() *MetricsRegistry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &MetricsRegistry{
		reg: reg,

		// HTTP Metrics
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightreg_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flightreg_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flightreg_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"endpoint"},
		),

		// Cache Metrics
		CacheHitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightreg_cache_hits_total",
				Help: "Total cache hits by cache name",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightreg_cache_misses_total",
				Help: "Total cache misses by cache name",
			},
			[]string{"cache"},
		),

		// Ledger Metrics
		RegistrationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightreg_registrations_total",
				Help: "Successful flight registrations by event variant",
			},
			[]string{"event"},
		),
		LedgerCounter: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "flightreg_ledger_drone_id",
				Help: "Current value of the ledger flight counter",
			},
		),
		RegistrationReverts: f.NewCounter(
			prometheus.CounterOpts{
				Name: "flightreg_registration_reverts_total",
				Help: "Registrations that failed to commit",
			},
		),

		// Validator Metrics
		ValidatorRunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightreg_validator_runs_total",
				Help: "Validator invocations by outcome",
			},
			[]string{"outcome"},
		),
		ValidatorDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "flightreg_validator_duration_seconds",
				Help:    "Validator round trip time in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),

		// Agent Metrics
		AgentTurnsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightreg_agent_turns_total",
				Help: "Agent gateway turns by outcome",
			},
			[]string{"outcome"},
		),
		AgentToolCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightreg_agent_tool_calls_total",
				Help: "Agent tool invocations by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),

		// Indexer Metrics
		EventsIndexedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightreg_events_indexed_total",
				Help: "Ledger events consumed from the stream by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Handler serves this registry in the Prometheus exposition format.
func (m *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *MetricsRegistry) Gatherer() prometheus.Gatherer {
	return m.reg
}
