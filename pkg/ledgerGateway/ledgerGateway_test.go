package ledgerGateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dandelion-network/taskctl/pkg/logger"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestGateway(t *testing.T, serverURL string, opts ...Option) *LedgerGateway {
	t.Helper()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.BaseURL = serverURL
	cfg.Timeout = 2 * time.Second
	cfg.ReadsPerSecond = 0
	cfg.PollInterval = 5 * time.Millisecond

	gw, err := NewLedgerGateway(cfg, l, append([]Option{WithSleeper(noSleep)}, opts...)...)
	require.NoError(t, err)
	return gw
}

func TestNewLedgerGateway(t *testing.T) {
	l := zap.NewNop()

	t.Run("nil config", func(t *testing.T) {
		_, err := NewLedgerGateway(nil, l)
		assert.EqualError(t, err, "cfg cannot be nil")
	})
	t.Run("nil logger", func(t *testing.T) {
		_, err := NewLedgerGateway(DefaultConfig(), nil)
		assert.EqualError(t, err, "logger cannot be nil")
	})
	t.Run("missing base url", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.BaseURL = ""
		_, err := NewLedgerGateway(cfg, l)
		assert.Error(t, err)
	})
}

func TestView(t *testing.T) {
	t.Run("posts the view request and returns values", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/view", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)

			var req ViewRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "0x1::TaskFactory::view_get_task", req.Function)
			assert.Equal(t, []string{}, req.TypeArguments)
			assert.Equal(t, []any{"4"}, req.Arguments)

			_, _ = w.Write([]byte(`[{"title":"t"}]`))
		}))
		defer server.Close()

		gw := newTestGateway(t, server.URL)
		values, err := gw.View(context.Background(), "0x1::TaskFactory::view_get_task", nil, []any{"4"})
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.JSONEq(t, `{"title":"t"}`, string(values[0]))
	})

	t.Run("times out twice then succeeds", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) <= 2 {
				select {
				case <-r.Context().Done():
				case <-time.After(time.Second):
				}
				return
			}
			_, _ = w.Write([]byte(`["42"]`))
		}))
		defer server.Close()

		gw := newTestGateway(t, server.URL)
		gw.httpClient.Timeout = 50 * time.Millisecond

		values, err := gw.View(context.Background(), "0x1::TaskFactory::view_get_all_tasks", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
		assert.Equal(t, `"42"`, string(values[0]))
	})

	t.Run("ledger rejection is not retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"function not found","error_code":"invalid_input","vm_error_code":null}`))
		}))
		defer server.Close()

		gw := newTestGateway(t, server.URL)
		_, err := gw.View(context.Background(), "0x1::Nope::nope", nil, nil)
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		assert.ErrorIs(t, err, taskErrors.ErrExecutionFailed)

		var le *LedgerError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, "invalid_input", le.ErrorCode)
		assert.Equal(t, http.StatusBadRequest, le.StatusCode)
	})

	t.Run("gateway errors exhaust retries", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		reg := prometheus.NewRegistry()
		metrics := NewMetrics(reg)
		gw := newTestGateway(t, server.URL, WithMetrics(metrics))

		_, err := gw.View(context.Background(), "0x1::TaskFactory::view_get_task", nil, []any{"0"})
		assert.ErrorIs(t, err, taskErrors.ErrNetworkTransient)
		assert.Equal(t, int32(DefaultRetryConfig().MaxRetries+1), atomic.LoadInt32(&calls))
		assert.Equal(t, float64(DefaultRetryConfig().MaxRetries), testutil.ToFloat64(metrics.retries.WithLabelValues("view")))
	})

	t.Run("cancelled context is surfaced as-is", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// the server only notices the client going away once the body is consumed
			_, _ = io.Copy(io.Discard, r.Body)
			<-r.Context().Done()
		}))
		defer server.Close()

		gw := newTestGateway(t, server.URL)
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		_, err := gw.View(ctx, "0x1::TaskFactory::view_get_task", nil, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("non array body is malformed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"not":"an array"}`))
		}))
		defer server.Close()

		gw := newTestGateway(t, server.URL)
		_, err := gw.View(context.Background(), "0x1::TaskFactory::view_get_task", nil, nil)
		assert.ErrorIs(t, err, taskErrors.ErrMalformedLedgerData)
	})
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), expected: true},
		{name: "reset", err: errors.New("read: connection reset by peer"), expected: true},
		{name: "dns", err: errors.New("dial tcp: lookup node: no such host"), expected: true},
		{name: "bad gateway", err: &LedgerError{StatusCode: http.StatusBadGateway}, expected: true},
		{name: "bad request", err: &LedgerError{StatusCode: http.StatusBadRequest}, expected: false},
		{name: "not found", err: &LedgerError{StatusCode: http.StatusNotFound}, expected: false},
		{name: "other", err: errors.New("invalid argument"), expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryableError(tt.err))
		})
	}
}

func TestAccountResource_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/0x1/resource/0x1::coin::CoinStore%3C0x1::aptos_coin::AptosCoin%3E", r.URL.EscapedPath())
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Resource not found","error_code":"resource_not_found"}`))
	}))
	defer server.Close()

	gw := newTestGateway(t, server.URL)
	_, err := gw.AccountResource(context.Background(), "0x1", "0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, taskErrors.ErrNotFound)
}

func TestLedgerInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		_, _ = w.Write([]byte(`{"chain_id":2,"epoch":"100","ledger_version":"555","ledger_timestamp":"1700000000000000"}`))
	}))
	defer server.Close()

	gw := newTestGateway(t, server.URL)
	info, err := gw.LedgerInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(2), info.ChainId)
	assert.Equal(t, "555", info.LedgerVersion)
}

type fakeSigner struct {
	calls int
	hash  string
	err   error
}

func (f *fakeSigner) SignAndSubmit(ctx context.Context, payload *EntryFunctionPayload) (string, error) {
	f.calls++
	return f.hash, f.err
}

func TestSubmit(t *testing.T) {
	gw := newTestGateway(t, "http://unused.invalid")
	payload := NewEntryFunctionPayload("0x1::TaskFactory::open_bidding", "1")

	t.Run("returns the signer's hash", func(t *testing.T) {
		s := &fakeSigner{hash: "0xabc"}
		hash, err := gw.Submit(context.Background(), payload, s)
		require.NoError(t, err)
		assert.Equal(t, "0xabc", hash)
		assert.Equal(t, 1, s.calls)
	})

	t.Run("never retries a failed submission", func(t *testing.T) {
		s := &fakeSigner{err: taskErrors.Wrap(taskErrors.KindNetworkTransient, "relay", errors.New("connection reset"))}
		_, err := gw.Submit(context.Background(), payload, s)
		assert.ErrorIs(t, err, taskErrors.ErrNetworkTransient)
		assert.Equal(t, 1, s.calls)
	})

	t.Run("wallet rejection keeps its kind", func(t *testing.T) {
		s := &fakeSigner{err: taskErrors.New(taskErrors.KindUserRejected, "sign", "declined")}
		_, err := gw.Submit(context.Background(), payload, s)
		assert.ErrorIs(t, err, taskErrors.ErrUserRejected)
	})

	t.Run("no signer", func(t *testing.T) {
		_, err := gw.Submit(context.Background(), payload, nil)
		assert.ErrorIs(t, err, taskErrors.ErrWalletUnavailable)
	})
}

func TestSubmitSigned_NotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	gw := newTestGateway(t, server.URL)
	_, err := gw.SubmitSigned(context.Background(), &SignedTransaction{})
	assert.ErrorIs(t, err, taskErrors.ErrNetworkTransient)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestWaitForConfirmation(t *testing.T) {
	t.Run("pending then committed", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/transactions/by_hash/0xfeed", r.URL.Path)
			switch atomic.AddInt32(&calls, 1) {
			case 1:
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"message":"Transaction not found","error_code":"transaction_not_found"}`))
			case 2:
				_, _ = w.Write([]byte(`{"type":"pending_transaction","hash":"0xfeed"}`))
			default:
				_, _ = w.Write([]byte(`{"type":"user_transaction","hash":"0xfeed","version":"77","success":true,"vm_status":"Executed successfully","gas_used":"12","events":[{"type":"0x1::TaskFactory::TaskCreated","data":{"task_id":"3"}}]}`))
			}
		}))
		defer server.Close()

		gw := newTestGateway(t, server.URL)
		receipt, err := gw.WaitForConfirmation(context.Background(), "0xfeed", time.Second)
		require.NoError(t, err)
		assert.True(t, receipt.Success)
		assert.Equal(t, "77", receipt.Version)
		require.Len(t, receipt.Events, 1)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("committed but failed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"type":"user_transaction","hash":"0xbad","success":false,"vm_status":"Move abort in 0x1::TaskFactory: E_NOT_CREATOR(0x3)"}`))
		}))
		defer server.Close()

		gw := newTestGateway(t, server.URL)
		receipt, err := gw.WaitForConfirmation(context.Background(), "0xbad", time.Second)
		assert.ErrorIs(t, err, taskErrors.ErrExecutionFailed)
		assert.NotErrorIs(t, err, taskErrors.ErrConfirmationTimeout)
		require.NotNil(t, receipt)
		assert.Contains(t, receipt.VmStatus, "E_NOT_CREATOR")
	})

	t.Run("still pending at timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"type":"pending_transaction","hash":"0xslow"}`))
		}))
		defer server.Close()

		gw := newTestGateway(t, server.URL)
		_, err := gw.WaitForConfirmation(context.Background(), "0xslow", 50*time.Millisecond)
		assert.ErrorIs(t, err, taskErrors.ErrConfirmationTimeout)
		assert.NotErrorIs(t, err, taskErrors.ErrExecutionFailed)
	})

	t.Run("read limit slower than poll interval still times out as pending", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			_, _ = w.Write([]byte(`{"type":"pending_transaction","hash":"0xslow"}`))
		}))
		defer server.Close()

		cfg := DefaultConfig()
		cfg.BaseURL = server.URL
		cfg.Timeout = 2 * time.Second
		cfg.ReadsPerSecond = 1
		cfg.ReadBurst = 1
		cfg.PollInterval = 5 * time.Millisecond
		gw, err := NewLedgerGateway(cfg, zap.NewNop(), WithSleeper(noSleep))
		require.NoError(t, err)

		timeout := 300 * time.Millisecond
		start := time.Now()
		_, err = gw.WaitForConfirmation(context.Background(), "0xslow", timeout)
		assert.ErrorIs(t, err, taskErrors.ErrConfirmationTimeout)
		assert.Equal(t, taskErrors.KindConfirmationTimeout, taskErrors.KindOf(err))
		assert.GreaterOrEqual(t, time.Since(start), timeout-20*time.Millisecond, "must wait out the deadline")
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "throttled polls never reach the node")
	})
}

func TestFundAccount_NoFaucet(t *testing.T) {
	gw := newTestGateway(t, "http://unused.invalid")
	_, err := gw.FundAccount(context.Background(), "0x1", 100)
	assert.ErrorIs(t, err, ErrNoFaucet)
}
