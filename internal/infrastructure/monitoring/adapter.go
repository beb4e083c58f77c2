// Package monitoring provides the zap logger, the Prometheus metrics and the
// OpenTelemetry tracing used across the client.
package monitoring

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/turtacn/entitle/internal/domain/service"
)

// MetricsAdapter implements the domain's service.Metrics interface, sending metrics to a Prometheus backend.
// MetricsAdapter 实现了域的 service.Metrics 接口，将指标发送到 Prometheus 后端。
type MetricsAdapter struct {
	metrics *Metrics
}

// NewMetricsAdapter creates a new adapter that wraps a concrete Prometheus Metrics object.
// NewMetricsAdapter 创建一个包装具体 Prometheus Metrics 对象的新适配器。
func NewMetricsAdapter(metrics *Metrics) service.Metrics {
	return &MetricsAdapter{metrics: metrics}
}

func (a *MetricsAdapter) RecordFlowOutcome(outcome string, duration time.Duration) {
	a.metrics.RecordFlowOutcome(outcome, duration)
}

func (a *MetricsAdapter) RecordTokenExchange(success bool, duration time.Duration) {
	a.metrics.RecordTokenExchange(success, duration)
}

func (a *MetricsAdapter) RecordEntitlementRequest(operation, format string, success bool, duration time.Duration) {
	a.metrics.RecordEntitlementRequest(operation, format, success, duration)
}

func (a *MetricsAdapter) RecordDecision(operation string, granted bool) {
	a.metrics.RecordDecision(operation, granted)
}

func (a *MetricsAdapter) RecordRelease(outcome string) {
	a.metrics.RecordRelease(outcome)
}

func (a *MetricsAdapter) RecordSignatureFailure(reason string) {
	a.metrics.RecordSignatureFailure(reason)
}

// WriteTextfile writes everything gathered by g to path in the node exporter
// textfile format. Short-lived commands use it instead of a scrape endpoint.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	path = os.ExpandEnv(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, g)
}
