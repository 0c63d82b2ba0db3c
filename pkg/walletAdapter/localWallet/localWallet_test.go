package localWallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dandelion-network/taskctl/pkg/ledgerGateway"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var signingMessage = []byte("aptos-signing-message")

// fakeNode serves the endpoints the wallet needs and verifies the submitted signature.
type fakeNode struct {
	t         *testing.T
	submitted atomic.Int32
	last      ledgerGateway.SignedTransaction
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/estimate_gas_price":
		_, _ = w.Write([]byte(`{"gas_estimate":100}`))
	case r.Method == http.MethodGet:
		_, _ = w.Write([]byte(`{"sequence_number":"7","authentication_key":"0x00"}`))
	case r.URL.Path == "/transactions/encode_submission":
		_ = json.NewEncoder(w).Encode(hexutil.Encode(signingMessage))
	case r.URL.Path == "/transactions":
		n.submitted.Add(1)
		assert.NoError(n.t, json.NewDecoder(r.Body).Decode(&n.last))

		pub, err := hexutil.Decode(n.last.Signature.PublicKey)
		assert.NoError(n.t, err)
		sig, err := hexutil.Decode(n.last.Signature.Signature)
		assert.NoError(n.t, err)
		if !ed25519.Verify(pub, signingMessage, sig) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"invalid signature","error_code":"invalid_signature"}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"type":"pending_transaction","hash":"0xabc"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestWallet(t *testing.T, opts ...Option) (*LocalWallet, *fakeNode) {
	t.Helper()
	node := &fakeNode{t: t}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	gwCfg := ledgerGateway.DefaultConfig()
	gwCfg.BaseURL = srv.URL
	gwCfg.ReadsPerSecond = 0
	gw, err := ledgerGateway.NewLedgerGateway(gwCfg, zap.NewNop())
	require.NoError(t, err)

	w, err := NewLocalWallet(&Config{
		PrivateKey: rfc8032Seed,
		Network:    types.Network{Name: "testnet", ChainId: 2},
	}, gw, zap.NewNop(), opts...)
	require.NoError(t, err)
	return w, node
}

func TestNewLocalWallet(t *testing.T) {
	_, err := NewLocalWallet(nil, nil, zap.NewNop())
	assert.EqualError(t, err, "cfg cannot be nil")

	w, err := NewLocalWallet(&Config{}, &ledgerGateway.LedgerGateway{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, w.Available())

	_, err = NewLocalWallet(&Config{PrivateKey: "0x01"}, &ledgerGateway.LedgerGateway{}, zap.NewNop())
	assert.ErrorIs(t, err, taskErrors.ErrWalletUnavailable)
}

func TestConnect(t *testing.T) {
	w, _ := newTestWallet(t)

	_, err := w.Account(context.Background())
	assert.ErrorIs(t, err, taskErrors.ErrWalletUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = w.Connect(ctx)
	require.ErrorIs(t, err, context.Canceled)
	_, err = w.Account(context.Background())
	assert.Error(t, err, "cancelled connect must leave the wallet disconnected")

	account, network, err := w.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0x63c5215e87770d17b9f4cd47c777e322f4eb152cfd2054c1080fd9d57c48913b", account.Address)
	assert.Equal(t, "testnet", network.Name)

	var disconnected int
	w.Events().OnDisconnected(func() { disconnected++ })
	require.NoError(t, w.Disconnect(context.Background()))
	require.NoError(t, w.Disconnect(context.Background()))
	assert.Equal(t, 1, disconnected)
}

func TestSignAndSubmit(t *testing.T) {
	t.Run("signs the node encoded message", func(t *testing.T) {
		fixed := time.Unix(1700000000, 0)
		w, node := newTestWallet(t, WithClock(func() time.Time { return fixed }))
		_, _, err := w.Connect(context.Background())
		require.NoError(t, err)

		payload := ledgerGateway.NewEntryFunctionPayload("0x1::TaskFactory::open_bidding", "1")
		hash, err := w.SignAndSubmit(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, "0xabc", hash)

		assert.Equal(t, int32(1), node.submitted.Load())
		assert.Equal(t, "7", node.last.SequenceNumber)
		assert.Equal(t, "100", node.last.GasUnitPrice)
		assert.Equal(t, "200000", node.last.MaxGasAmount)
		assert.Equal(t, "1700000600", node.last.ExpirationTimestampSecs)
		assert.Equal(t, "ed25519_signature", node.last.Signature.Type)
	})

	t.Run("not connected", func(t *testing.T) {
		w, node := newTestWallet(t)
		_, err := w.SignAndSubmit(context.Background(), ledgerGateway.NewEntryFunctionPayload("0x1::m::f"))
		assert.ErrorIs(t, err, taskErrors.ErrWalletUnavailable)
		assert.Zero(t, node.submitted.Load())
	})

	t.Run("declined by approver", func(t *testing.T) {
		w, node := newTestWallet(t, WithApprover(func(context.Context, *ledgerGateway.EntryFunctionPayload) (bool, error) {
			return false, nil
		}))
		_, _, err := w.Connect(context.Background())
		require.NoError(t, err)

		_, err = w.SignAndSubmit(context.Background(), ledgerGateway.NewEntryFunctionPayload("0x1::m::f"))
		assert.ErrorIs(t, err, taskErrors.ErrUserRejected)
		assert.Zero(t, node.submitted.Load())
	})

	t.Run("cancelled while the approver waits", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		w, node := newTestWallet(t, WithApprover(func(ctx context.Context, _ *ledgerGateway.EntryFunctionPayload) (bool, error) {
			cancel()
			<-ctx.Done()
			return false, errors.New("prompt interrupted")
		}))
		_, _, err := w.Connect(context.Background())
		require.NoError(t, err)

		_, err = w.SignAndSubmit(ctx, ledgerGateway.NewEntryFunctionPayload("0x1::m::f"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, taskErrors.ErrUserRejected)
		assert.Equal(t, taskErrors.KindUnknown, taskErrors.KindOf(err))
		assert.Zero(t, node.submitted.Load())
	})
}

func TestSwitchAccountAndNetwork(t *testing.T) {
	w, _ := newTestWallet(t)
	_, _, err := w.Connect(context.Background())
	require.NoError(t, err)

	var accounts []types.Account
	var networks []types.Network
	w.Events().OnAccountChanged(func(a types.Account) { accounts = append(accounts, a) })
	w.Events().OnNetworkChanged(func(n types.Network) { networks = append(networks, n) })

	require.NoError(t, w.SwitchAccount("0x0101010101010101010101010101010101010101010101010101010101010101"))
	w.SwitchNetwork(types.Network{Name: "devnet", ChainId: 0})

	require.Len(t, accounts, 1)
	current, err := w.Account(context.Background())
	require.NoError(t, err)
	assert.Equal(t, accounts[0], *current)

	require.Len(t, networks, 1)
	n, err := w.Network(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "devnet", n.Name)

	assert.Error(t, w.SwitchAccount("bad"))
	assert.Len(t, accounts, 1)
}
