package metrics

import (
	"net/http"
	"time"

	"turnstileguard/internal/gate"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "turnstileguard"

// Metrics implements gate.Metrics on a private Prometheus registry
type Metrics struct {
	config   gate.MetricsConfig
	registry *prometheus.Registry

	decisions            *prometheus.CounterVec
	verifications        *prometheus.CounterVec
	verificationDuration prometheus.Histogram
	sessionErrors        *prometheus.CounterVec
}

// NewMetrics creates and registers the gate collectors
func NewMetrics(config gate.MetricsConfig) (*Metrics, error) {
	m := &Metrics{
		config:   config,
		registry: prometheus.NewRegistry(),

		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Gate decisions by outcome and the rule that produced them",
			},
			[]string{"decision", "reason"},
		),
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verifications_total",
				Help:      "Challenge token verifications by result",
			},
			[]string{"result"},
		),
		verificationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "verification_duration_seconds",
				Help:      "Time spent calling the verification endpoint",
				Buckets:   prometheus.DefBuckets,
			},
		),
		sessionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_errors_total",
				Help:      "Session store failures by operation",
			},
			[]string{"operation"},
		),
	}

	collectorsToRegister := []prometheus.Collector{
		m.decisions,
		m.verifications,
		m.verificationDuration,
		m.sessionErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range collectorsToRegister {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// IncDecisions counts a gate decision
func (m *Metrics) IncDecisions(decision gate.DecisionKind, reason string) {
	m.decisions.WithLabelValues(decision.String(), reason).Inc()
}

// IncVerifications counts a verification result
func (m *Metrics) IncVerifications(result string) {
	m.verifications.WithLabelValues(result).Inc()
}

// ObserveVerificationDuration records verification latency
func (m *Metrics) ObserveVerificationDuration(duration time.Duration) {
	m.verificationDuration.Observe(duration.Seconds())
}

// IncSessionErrors counts a session store failure
func (m *Metrics) IncSessionErrors(operation string) {
	m.sessionErrors.WithLabelValues(operation).Inc()
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
