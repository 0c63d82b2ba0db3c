package telemetry

import (
	"context"
	"os"

	"github.com/dandelion-network/taskctl/pkg/config"
	"github.com/posthog/posthog-go"
)

const defaultPostHogEndpoint = "https://us.i.posthog.com"

type PostHogClient struct {
	namespace  string
	client     posthog.Client
	distinctID string
}

// NewPostHogClient returns nil, nil when telemetry is off or no API key is known.
func NewPostHogClient(cfg *config.TelemetryConfig, namespace string) (*PostHogClient, error) {
	if !isTelemetryEnabled(cfg) {
		return nil, nil
	}

	apiKey := getPostHogAPIKey(cfg)
	if apiKey == "" {
		return nil, nil
	}

	client, err := posthog.NewWithConfig(apiKey, posthog.Config{
		Endpoint: getPostHogEndpoint(),
	})
	if err != nil {
		return nil, err
	}

	return &PostHogClient{
		namespace:  namespace,
		client:     client,
		distinctID: getAnonymousID(),
	}, nil
}

func (c *PostHogClient) AddMetric(_ context.Context, metric Metric) error {
	if c == nil || c.client == nil {
		return nil
	}

	props := posthog.NewProperties().
		Set("metric_name", metric.Name).
		Set("metric_value", metric.Value)
	for k, v := range metric.Dimensions {
		props.Set(k, v)
	}

	return c.client.Enqueue(posthog.Capture{
		DistinctId: c.distinctID,
		Event:      c.namespace,
		Properties: props,
	})
}

func (c *PostHogClient) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func isTelemetryEnabled(cfg *config.TelemetryConfig) bool {
	if envVal := os.Getenv(config.EnvPrefix + "TELEMETRY_ENABLED"); envVal != "" {
		return envVal == "true" || envVal == "1"
	}
	return cfg != nil && cfg.Enabled
}

func getPostHogAPIKey(cfg *config.TelemetryConfig) string {
	if key := os.Getenv(config.EnvPrefix + "POSTHOG_KEY"); key != "" {
		return key
	}
	if cfg != nil && cfg.ApiKey != "" {
		return cfg.ApiKey
	}
	return embeddedTelemetryApiKey
}

func getPostHogEndpoint() string {
	if endpoint := os.Getenv(config.EnvPrefix + "POSTHOG_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	return defaultPostHogEndpoint
}
