package ledgerGateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"go.uber.org/zap"
)

// RetryConfig contains configuration for read retry behavior
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts after the first call
	MaxRetries int
	// InitialDelay is the initial delay between retries
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration
	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// withRetry runs a read-only call under the retry policy.
func (g *LedgerGateway) withRetry(ctx context.Context, op, endpoint string, fn func(ctx context.Context) error) error {
	r := g.config.Retry
	delay := r.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !isRetryableError(err) {
			return classify(ctx, op, err)
		}

		lastErr = err
		if attempt == r.MaxRetries {
			break
		}

		g.metrics.retry(endpoint)
		g.logger.Sugar().Warnw("Ledger read failed, retrying",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := g.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		delay = time.Duration(float64(delay) * r.BackoffMultiplier)
		if delay > r.MaxDelay {
			delay = r.MaxDelay
		}
	}

	return taskErrors.Wrap(taskErrors.KindNetworkTransient, op,
		fmt.Errorf("failed after %d attempts: %w", r.MaxRetries+1, lastErr))
}

// isRetryableError reports whether err is a network-level failure worth
// retrying for an idempotent read.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var le *LedgerError
	if errors.As(err, &le) {
		switch le.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	errStr := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"connection timeout",
		"no such host",
		"network is unreachable",
		"Client.Timeout exceeded",
	} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}
