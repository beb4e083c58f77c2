package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics manages the Prometheus metrics.
type Metrics struct {
	FlowOutcomes         *prometheus.CounterVec
	FlowDuration         *prometheus.HistogramVec
	TokenExchanges       *prometheus.CounterVec
	TokenExchangeLatency prometheus.Histogram
	EntitlementRequests  *prometheus.CounterVec
	EntitlementLatency   *prometheus.HistogramVec
	Decisions            *prometheus.CounterVec
	Releases             *prometheus.CounterVec
	SignatureFailures    *prometheus.CounterVec
}

// NewMetrics creates the Prometheus metrics and registers them with reg.
// A nil reg registers with the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		FlowOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitle_signon_flows_total",
				Help: "Total number of interactive sign-on attempts by outcome.",
			},
			[]string{"outcome"},
		),
		FlowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entitle_signon_flow_duration_seconds",
				Help:    "Wall time of interactive sign-on attempts.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),
		TokenExchanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitle_token_exchanges_total",
				Help: "Total number of authorization code exchanges.",
			},
			[]string{"result"},
		),
		TokenExchangeLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "entitle_token_exchange_latency_seconds",
				Help:    "Latency of authorization code exchanges.",
				Buckets: prometheus.DefBuckets,
			},
		),
		EntitlementRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitle_entitlement_requests_total",
				Help: "Total number of entitlement service round trips.",
			},
			[]string{"operation", "format", "result"},
		),
		EntitlementLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "entitle_entitlement_latency_seconds",
				Help:    "Latency of entitlement service round trips.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		Decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitle_decisions_total",
				Help: "Total number of decoded authorization decisions.",
			},
			[]string{"operation", "verdict"},
		),
		Releases: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitle_releases_total",
				Help: "Total number of consumed grant releases by outcome.",
			},
			[]string{"outcome"},
		),
		SignatureFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitle_signature_failures_total",
				Help: "Total number of decisions that failed signature verification.",
			},
			[]string{"reason"},
		),
	}
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordFlowOutcome records the end state of a sign-on attempt.
func (m *Metrics) RecordFlowOutcome(outcome string, duration time.Duration) {
	m.FlowOutcomes.WithLabelValues(outcome).Inc()
	m.FlowDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordTokenExchange records an authorization code exchange.
func (m *Metrics) RecordTokenExchange(success bool, duration time.Duration) {
	m.TokenExchanges.WithLabelValues(result(success)).Inc()
	m.TokenExchangeLatency.Observe(duration.Seconds())
}

// RecordEntitlementRequest records an entitlement service round trip.
func (m *Metrics) RecordEntitlementRequest(operation, format string, success bool, duration time.Duration) {
	m.EntitlementRequests.WithLabelValues(operation, format, result(success)).Inc()
	m.EntitlementLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordDecision records a decoded decision.
func (m *Metrics) RecordDecision(operation string, granted bool) {
	verdict := "denied"
	if granted {
		verdict = "granted"
	}
	m.Decisions.WithLabelValues(operation, verdict).Inc()
}

// RecordRelease records the outcome of a release.
func (m *Metrics) RecordRelease(outcome string) {
	m.Releases.WithLabelValues(outcome).Inc()
}

// RecordSignatureFailure records a verification failure.
func (m *Metrics) RecordSignatureFailure(reason string) {
	m.SignatureFailures.WithLabelValues(reason).Inc()
}
