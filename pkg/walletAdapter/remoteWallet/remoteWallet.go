// Package remoteWallet talks to an external wallet over a JSON-RPC 2.0 bridge.
//
// The bridge holds the keys and asks its holder to approve every connect and
// signing request. A declined request surfaces as a UserRejected error; any
// other bridge error is returned as a *WalletError.
//
// Example usage:
//
//	w, err := remoteWallet.NewRemoteWallet(&remoteWallet.Config{
//		BridgeURL: "http://localhost:8765",
//	}, logger)
//	account, network, err := w.Connect(ctx)
//	hash, err := w.SignAndSubmit(ctx, payload)
package remoteWallet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dandelion-network/taskctl/pkg/ledgerGateway"
	"github.com/dandelion-network/taskctl/pkg/taskCodec"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/dandelion-network/taskctl/pkg/walletAdapter"
	"go.uber.org/zap"
)

const Name = "remote"

type Config struct {
	// BridgeURL is the JSON-RPC endpoint of the wallet bridge. Empty disables the wallet.
	BridgeURL string
	// Timeout bounds each bridge request. Signing waits on a human, so keep it generous.
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Timeout: 2 * time.Minute,
	}
}

type RemoteWallet struct {
	logger     *zap.Logger
	httpClient *http.Client
	config     *Config
	requestID  int64
	events     *walletAdapter.EventHub

	mu        sync.Mutex
	account   *types.Account
	network   *types.Network
	connected bool
}

func NewRemoteWallet(cfg *Config, logger *zap.Logger) (*RemoteWallet, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &RemoteWallet{
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		events:     walletAdapter.NewEventHub(),
	}, nil
}

// SetHttpClient replaces the HTTP client used for bridge requests.
func (w *RemoteWallet) SetHttpClient(client *http.Client) {
	w.httpClient = client
}

func (w *RemoteWallet) Name() string { return Name }

func (w *RemoteWallet) Available() bool { return w.config.BridgeURL != "" }

func (w *RemoteWallet) Events() *walletAdapter.EventHub { return w.events }

func (w *RemoteWallet) Connect(ctx context.Context) (*types.Account, *types.Network, error) {
	if !w.Available() {
		return nil, nil, taskErrors.New(taskErrors.KindWalletUnavailable, "connect", "no wallet bridge configured")
	}

	var res connectResult
	if err := w.call(ctx, MethodConnect, nil, &res); err != nil {
		if errors.Is(err, taskErrors.ErrNetworkTransient) {
			return nil, nil, taskErrors.Wrap(taskErrors.KindWalletUnavailable, "connect", err)
		}
		return nil, nil, err
	}
	if res.Account.Address == "" {
		return nil, nil, taskErrors.New(taskErrors.KindMalformedLedgerData, "connect", "bridge returned no account")
	}

	account, err := toAccount(res.Account)
	if err != nil {
		return nil, nil, err
	}
	network := toNetwork(res.Network)

	w.mu.Lock()
	w.account, w.network, w.connected = &account, &network, true
	w.mu.Unlock()

	w.logger.Sugar().Infow("Remote wallet connected",
		zap.String("address", account.Address),
		zap.String("network", network.Name),
	)
	return &account, &network, nil
}

func (w *RemoteWallet) Account(ctx context.Context) (*types.Account, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return nil, taskErrors.New(taskErrors.KindWalletUnavailable, "account", "wallet not connected")
	}
	a := *w.account
	return &a, nil
}

func (w *RemoteWallet) Network(ctx context.Context) (*types.Network, error) {
	w.mu.Lock()
	if w.connected {
		n := *w.network
		w.mu.Unlock()
		return &n, nil
	}
	w.mu.Unlock()

	var res networkResult
	if err := w.call(ctx, MethodNetwork, nil, &res); err != nil {
		return nil, err
	}
	n := toNetwork(res)
	return &n, nil
}

func (w *RemoteWallet) SignAndSubmit(ctx context.Context, payload *ledgerGateway.EntryFunctionPayload) (string, error) {
	w.mu.Lock()
	connected := w.connected
	w.mu.Unlock()
	if !connected {
		return "", taskErrors.New(taskErrors.KindWalletUnavailable, "signAndSubmit", "wallet not connected")
	}

	var res signAndSubmitResult
	params := map[string]any{"payload": payload}
	if err := w.call(ctx, MethodSignAndSubmit, params, &res); err != nil {
		return "", err
	}
	if res.Hash == "" {
		return "", taskErrors.New(taskErrors.KindMalformedLedgerData, "signAndSubmit", "bridge returned no transaction hash")
	}
	return res.Hash, nil
}

func (w *RemoteWallet) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	was := w.connected
	w.connected = false
	w.account = nil
	w.mu.Unlock()
	if !was {
		return nil
	}

	err := w.call(ctx, MethodDisconnect, nil, nil)
	w.events.EmitDisconnected()
	if err != nil {
		w.logger.Sugar().Warnw("Wallet bridge disconnect failed", zap.Error(err))
	}
	return err
}

// Watch polls the bridge every interval and emits account, network, and
// disconnect events when the bridge state drifts from the cached one. It
// returns when ctx is done.
func (w *RemoteWallet) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *RemoteWallet) poll(ctx context.Context) {
	w.mu.Lock()
	connected := w.connected
	w.mu.Unlock()
	if !connected {
		return
	}

	var acc accountResult
	if err := w.call(ctx, MethodAccount, nil, &acc); err != nil {
		w.logger.Sugar().Debugw("Wallet bridge account poll failed", zap.Error(err))
		return
	}
	if acc.Address == "" {
		w.mu.Lock()
		w.connected = false
		w.account = nil
		w.mu.Unlock()
		w.events.EmitDisconnected()
		return
	}

	account, err := toAccount(acc)
	if err != nil {
		w.logger.Sugar().Warnw("Wallet bridge returned a bad account", zap.Error(err))
		return
	}

	var nw networkResult
	if err := w.call(ctx, MethodNetwork, nil, &nw); err != nil {
		w.logger.Sugar().Debugw("Wallet bridge network poll failed", zap.Error(err))
		return
	}
	network := toNetwork(nw)

	w.mu.Lock()
	accountChanged := w.account == nil || w.account.Address != account.Address
	networkChanged := w.network == nil || w.network.Name != network.Name || w.network.ChainId != network.ChainId
	w.account, w.network = &account, &network
	w.mu.Unlock()

	if accountChanged {
		w.events.EmitAccountChanged(account)
	}
	if networkChanged {
		w.events.EmitNetworkChanged(network)
	}
}

func toAccount(a accountResult) (types.Account, error) {
	addr, err := taskCodec.NormalizeAddress(a.Address)
	if err != nil {
		return types.Account{}, taskErrors.Wrap(taskErrors.KindMalformedLedgerData, "walletAccount", err)
	}
	return types.Account{Address: addr, PublicKey: a.PublicKey}, nil
}

func toNetwork(n networkResult) types.Network {
	return types.Network{
		Name:    n.Name,
		ChainId: n.ChainId,
		NodeUrl: n.Url,
	}
}
