package telemetry

import (
	"context"
	"testing"

	"github.com/dandelion-network/taskctl/pkg/config"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	metrics []Metric
}

func (r *recordingClient) AddMetric(_ context.Context, m Metric) error {
	r.metrics = append(r.metrics, m)
	return nil
}

func (r *recordingClient) Close() error { return nil }

func (r *recordingClient) byName(name string) (Metric, bool) {
	for _, m := range r.metrics {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

func TestInitDisabledUsesNoop(t *testing.T) {
	t.Setenv(config.EnvPrefix+"TELEMETRY_ENABLED", "")

	Init(&config.TelemetryConfig{Enabled: false, ApiKey: "phc_test"})
	_, ok := GetGlobalClient().(*NoopClient)
	assert.True(t, ok)

	Init(nil)
	_, ok = GetGlobalClient().(*NoopClient)
	assert.True(t, ok)
}

func TestEnvOverridesConfig(t *testing.T) {
	t.Setenv(config.EnvPrefix+"TELEMETRY_ENABLED", "0")
	assert.False(t, isTelemetryEnabled(&config.TelemetryConfig{Enabled: true}))

	t.Setenv(config.EnvPrefix+"TELEMETRY_ENABLED", "true")
	assert.True(t, isTelemetryEnabled(nil))

	t.Setenv(config.EnvPrefix+"POSTHOG_KEY", "phc_env")
	assert.Equal(t, "phc_env", getPostHogAPIKey(&config.TelemetryConfig{ApiKey: "phc_cfg"}))
}

func TestCommandMetrics(t *testing.T) {
	client := &recordingClient{}
	ctx := ContextWithClient(context.Background(), client)
	ctx = StartCommand(ctx, "task create")

	metrics, ok := CommandMetricsFromContext(ctx)
	require.True(t, ok)
	metrics.SetNetwork("testnet")
	metrics.SetMode("simulation")

	FinishCommand(ctx, taskErrors.New(taskErrors.KindInvalidBidAttempt, "placeBid", "already bid by 0xb"))

	invocation, ok := client.byName(MetricInvocation)
	require.True(t, ok)
	assert.Equal(t, "testnet", invocation.Dimensions[DimensionNetwork], "dimensions set later still apply")
	assert.Equal(t, "simulation", invocation.Dimensions[DimensionMode])

	failure, ok := client.byName(MetricFailure)
	require.True(t, ok)
	assert.Equal(t, "task create", failure.Dimensions[DimensionCommand])
	assert.Equal(t, "InvalidBidAttempt", failure.Dimensions[DimensionErrorKind])
	for _, v := range failure.Dimensions {
		assert.NotContains(t, v, "0xb", "error text is never sent")
	}
	_, ok = client.byName(MetricDuration)
	assert.True(t, ok)
	_, ok = client.byName(MetricSuccess)
	assert.False(t, ok)
}

func TestRecordTransactions(t *testing.T) {
	client := &recordingClient{}
	ctx := ContextWithClient(context.Background(), client)
	ctx = StartCommand(ctx, "deploy init")

	RecordTransactions(ctx, &types.TxResult{Simulated: true}, nil, &types.TxResult{})
	FinishCommand(ctx, nil)

	var simulated, live int
	for _, m := range client.metrics {
		if m.Name != MetricTransaction {
			continue
		}
		assert.Empty(t, m.Dimensions[DimensionErrorKind])
		switch m.Dimensions[DimensionSimulated] {
		case "true":
			simulated++
		case "false":
			live++
		}
	}
	assert.Equal(t, 1, simulated)
	assert.Equal(t, 1, live)
	success, ok := client.byName(MetricSuccess)
	require.True(t, ok)
	_, hasKind := success.Dimensions[DimensionErrorKind]
	assert.False(t, hasKind)
}

func TestCommandMetrics_RecordDoesNotAliasDimensions(t *testing.T) {
	m := NewCommandMetrics("status")
	dims := map[string]string{"k": "v"}
	m.Record("X", 1, dims)
	dims["k"] = "changed"

	snap := m.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "v", snap[0].Dimensions["k"])
	assert.Equal(t, "status", snap[0].Dimensions[DimensionCommand])
}

func TestFinishWithoutContextIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { FinishCommand(context.Background(), nil) })
	assert.NotPanics(t, func() { RecordTransactions(context.Background(), &types.TxResult{}) })

	_, ok := CommandMetricsFromContext(context.Background())
	assert.False(t, ok)
}

func TestAnonymousIDIsStable(t *testing.T) {
	id := getAnonymousID()
	assert.Len(t, id, 16)
	assert.Equal(t, id, getAnonymousID())
}
