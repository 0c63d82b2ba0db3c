// Package telemetry sends anonymous, opt-in usage metrics. Nothing is sent
// unless telemetry is enabled in the config or via TASKCTL_TELEMETRY_ENABLED.
package telemetry

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/dandelion-network/taskctl/pkg/config"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/denisbrodbeck/machineid"
)

const namespace = "Taskctl"

var (
	embeddedTelemetryApiKey string // Set by build flags
	globalClient            Client = NewNoopClient()
)

func Init(cfg *config.TelemetryConfig) {
	client, err := NewPostHogClient(cfg, namespace)
	if err != nil || client == nil {
		globalClient = NewNoopClient()
	} else {
		globalClient = client
	}
}

func GetGlobalClient() Client {
	return globalClient
}

func Close() {
	if globalClient != nil {
		_ = globalClient.Close()
	}
}

func ContextWithClient(ctx context.Context, client Client) context.Context {
	return context.WithValue(ctx, clientContextKey, client)
}

func ClientFromContext(ctx context.Context) (Client, bool) {
	client, ok := ctx.Value(clientContextKey).(Client)
	return client, ok
}

// StartCommand attaches a fresh CommandMetrics for the named command.
func StartCommand(ctx context.Context, command string) context.Context {
	metrics := NewCommandMetrics(command)
	metrics.SetDimension(DimensionOS, runtime.GOOS)
	metrics.SetDimension(DimensionArch, runtime.GOARCH)
	metrics.Record(MetricInvocation, 1, nil)
	return WithCommandMetrics(ctx, metrics)
}

// RecordTransactions counts submitted writes, split by simulated or live.
func RecordTransactions(ctx context.Context, results ...*types.TxResult) {
	metrics, ok := CommandMetricsFromContext(ctx)
	if !ok {
		return
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		metrics.Record(MetricTransaction, 1, map[string]string{DimensionSimulated: strconv.FormatBool(r.Simulated)})
	}
}

// FinishCommand records the outcome and duration of the command started by
// StartCommand and flushes every metric to the context's client. A failure
// carries its error kind, never its text.
func FinishCommand(ctx context.Context, actionError error) {
	metrics, ok := CommandMetricsFromContext(ctx)
	if !ok {
		return
	}
	if actionError != nil {
		metrics.Record(MetricFailure, 1, map[string]string{DimensionErrorKind: taskErrors.KindOf(actionError).String()})
	} else {
		metrics.Record(MetricSuccess, 1, nil)
	}
	metrics.Record(MetricDuration, float64(metrics.Elapsed().Milliseconds()), nil)

	client, ok := ClientFromContext(ctx)
	if !ok {
		return
	}
	for _, metric := range metrics.Snapshot() {
		_ = client.AddMetric(ctx, metric)
	}
}

func getAnonymousID() string {
	id, err := machineid.ProtectedID(namespace)
	if err != nil {
		hostname, _ := os.Hostname()
		id = fmt.Sprintf("%s-%s-%s", runtime.GOOS, runtime.GOARCH, hostname)
	}

	hash := sha256.Sum256([]byte(id))
	return fmt.Sprintf("%x", hash[:8])
}
