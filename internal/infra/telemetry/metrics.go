package telemetry

import (
	"time"

	"mgmtd/internal/domain"
)

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) ObserveRequest(_ string, _ int, _ time.Duration) {}

func (n *NoopMetrics) SetInFlight(_ int) {}

func (n *NoopMetrics) ObserveAccessRecord() {}

func (n *NoopMetrics) ObserveDump(_ string, _ error) {}

func (n *NoopMetrics) ObserveLevelChange(_ string) {}

var _ domain.Metrics = (*NoopMetrics)(nil)
