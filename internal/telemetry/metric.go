package telemetry

import (
	"context"
	"maps"
	"sync"
	"time"
)

type contextKey string

const (
	commandMetricsKey contextKey = "commandMetrics"
	clientContextKey  contextKey = "telemetryClient"
)

// Dimensions attached to every metric of an invocation.
const (
	DimensionCommand   = "command"
	DimensionNetwork   = "network"
	DimensionMode      = "mode"
	DimensionOS        = "os"
	DimensionArch      = "arch"
	DimensionErrorKind = "errorKind"
	DimensionSimulated = "simulated"
)

const (
	MetricInvocation  = "Invocation"
	MetricSuccess     = "Success"
	MetricFailure     = "Failure"
	MetricDuration    = "DurationMilliseconds"
	MetricTransaction = "Transaction"
)

type Metric struct {
	Value      float64           `json:"value"`
	Name       string            `json:"name"`
	Dimensions map[string]string `json:"dimensions"`
}

// CommandMetrics collects what one taskctl invocation reports. Command-wide
// dimensions such as the network or service mode are often only known after
// the first metric was recorded, so they are merged in at flush time.
type CommandMetrics struct {
	mu         sync.Mutex
	start      time.Time
	dimensions map[string]string
	metrics    []Metric
}

func NewCommandMetrics(command string) *CommandMetrics {
	return &CommandMetrics{
		start:      time.Now(),
		dimensions: map[string]string{DimensionCommand: command},
	}
}

func (m *CommandMetrics) SetDimension(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimensions[key] = value
}

// SetMode records whether the service ran against the live ledger or the simulation.
func (m *CommandMetrics) SetMode(mode string) {
	m.SetDimension(DimensionMode, mode)
}

func (m *CommandMetrics) SetNetwork(name string) {
	m.SetDimension(DimensionNetwork, name)
}

// Record adds a metric; dims override the command dimensions for this metric only.
func (m *CommandMetrics) Record(name string, value float64, dims map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = append(m.metrics, Metric{Name: name, Value: value, Dimensions: maps.Clone(dims)})
}

func (m *CommandMetrics) Elapsed() time.Duration {
	return time.Since(m.start)
}

// Snapshot returns every recorded metric with the command dimensions applied.
func (m *CommandMetrics) Snapshot() []Metric {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Metric, 0, len(m.metrics))
	for _, metric := range m.metrics {
		dims := maps.Clone(m.dimensions)
		maps.Copy(dims, metric.Dimensions)
		out = append(out, Metric{Name: metric.Name, Value: metric.Value, Dimensions: dims})
	}
	return out
}

func WithCommandMetrics(ctx context.Context, metrics *CommandMetrics) context.Context {
	return context.WithValue(ctx, commandMetricsKey, metrics)
}

func CommandMetricsFromContext(ctx context.Context) (*CommandMetrics, bool) {
	metrics, ok := ctx.Value(commandMetricsKey).(*CommandMetrics)
	return metrics, ok && metrics != nil
}
