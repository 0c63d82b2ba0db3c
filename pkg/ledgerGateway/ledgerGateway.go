// Package ledgerGateway is a thin client for the Aptos node REST API used by
// the task modules.
//
// Reads (view calls, account resources, ledger info) are retried under a
// bounded exponential backoff when the failure is network-level: timeouts,
// refused or reset connections, and 502/503/504 from a fronting proxy. A
// ledger rejection (4xx carrying a ledger error body) is returned
// immediately. Nothing that moves funds is ever retried: Submit and
// SubmitSigned surface their failure as-is.
//
// Example usage:
//
//	cfg := ledgerGateway.DefaultConfig()
//	cfg.BaseURL = "https://fullnode.testnet.aptoslabs.com/v1"
//	gw, err := ledgerGateway.NewLedgerGateway(cfg, logger)
//
//	values, err := gw.View(ctx, "0xa1b3...::TaskFactory::view_get_task", nil, []any{"0"})
package ledgerGateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds the configuration for the ledger gateway.
type Config struct {
	// BaseURL is the node REST root including the version segment, e.g. ".../v1"
	BaseURL string
	// Timeout bounds a single HTTP request
	Timeout time.Duration
	// Retry applies to read-only calls only
	Retry *RetryConfig
	// ReadsPerSecond limits read calls against the node; zero disables limiting
	ReadsPerSecond float64
	ReadBurst      int
	// PollInterval is the delay between confirmation status queries
	PollInterval time.Duration
	// FaucetURL is empty on networks without a faucet
	FaucetURL string
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "https://fullnode.testnet.aptoslabs.com/v1",
		Timeout:        30 * time.Second,
		Retry:          DefaultRetryConfig(),
		ReadsPerSecond: 10,
		ReadBurst:      5,
		PollInterval:   time.Second,
	}
}

type LedgerGateway struct {
	logger     *zap.Logger
	httpClient *http.Client
	config     *Config
	limiter    *rate.Limiter
	metrics    *Metrics
	sleep      func(ctx context.Context, d time.Duration) error
}

type Option func(*LedgerGateway)

func WithHttpClient(c *http.Client) Option {
	return func(g *LedgerGateway) {
		g.httpClient = c
	}
}

func WithMetrics(m *Metrics) Option {
	return func(g *LedgerGateway) {
		g.metrics = m
	}
}

// WithSleeper replaces the backoff sleep, for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(g *LedgerGateway) {
		g.sleep = sleep
	}
}

// NewLedgerGateway creates a gateway. Both cfg and logger must be non-nil.
func NewLedgerGateway(cfg *Config, logger *zap.Logger, opts ...Option) (*LedgerGateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Retry == nil {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	g := &LedgerGateway{
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		sleep:      sleepContext,
	}
	if cfg.ReadsPerSecond > 0 {
		burst := cfg.ReadBurst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.ReadsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(g)
	}

	logger.Sugar().Debugw("Created ledger gateway",
		zap.String("baseURL", cfg.BaseURL),
		zap.Duration("timeout", cfg.Timeout),
		zap.Int("maxRetries", cfg.Retry.MaxRetries),
	)
	return g, nil
}

func (g *LedgerGateway) BaseURL() string {
	return g.config.BaseURL
}

// doRequest issues one HTTP request and decodes a 2xx JSON body into out.
// Status codes >= 400 become *LedgerError.
func (g *LedgerGateway) doRequest(ctx context.Context, endpoint, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	g.logger.Sugar().Debugw("Ledger request",
		zap.String("endpoint", endpoint),
		zap.String("method", method),
		zap.String("url", url),
	)

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.metrics.observe(endpoint, "transport_error", time.Since(start))
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		g.metrics.observe(endpoint, "transport_error", time.Since(start))
		return err
	}

	g.logger.Sugar().Debugw("Ledger response",
		zap.String("endpoint", endpoint),
		zap.Int("status_code", resp.StatusCode),
		zap.Int("bytes", len(data)),
	)

	if resp.StatusCode >= 400 {
		g.metrics.observe(endpoint, fmt.Sprintf("http_%d", resp.StatusCode), time.Since(start))
		return handleHTTPError(resp.StatusCode, data)
	}
	g.metrics.observe(endpoint, "ok", time.Since(start))

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return taskErrors.Wrap(taskErrors.KindMalformedLedgerData, endpoint, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func (g *LedgerGateway) url(path string) string {
	return strings.TrimSuffix(g.config.BaseURL, "/") + path
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
