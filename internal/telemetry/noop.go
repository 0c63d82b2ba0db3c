package telemetry

import "context"

// NoopClient is used whenever telemetry is disabled.
type NoopClient struct{}

func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

func (n *NoopClient) AddMetric(context.Context, Metric) error { return nil }

func (n *NoopClient) Close() error { return nil }
