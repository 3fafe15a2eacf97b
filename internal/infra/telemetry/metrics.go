package telemetry

import (
	"time"

	"toolgate/internal/domain"
)

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) ObserveConnect(_ string, _ time.Duration, _ domain.ConnectOutcome) {}

func (n *NoopMetrics) SetLiveSessions(_ int) {}

func (n *NoopMetrics) ObserveDiscovery(_ string, _ time.Duration, _ int) {}

func (n *NoopMetrics) SetCatalogSize(_ int) {}

func (n *NoopMetrics) ObserveSearch(_ time.Duration, _ int) {}

func (n *NoopMetrics) ObserveExecute(_ string, _ time.Duration, _ domain.ExecuteStatus) {}

func (n *NoopMetrics) ObserveGate(_ domain.GateMetric) {}

func (n *NoopMetrics) ObserveAdvisorLatency(_ string, _ string, _ time.Duration) {}

func (n *NoopMetrics) ObserveAdvisorTokens(_ string, _ string, _ int) {}

var _ domain.Metrics = (*NoopMetrics)(nil)
