// Package walletAdapterTest provides an in-memory wallet for tests of
// components that depend on walletAdapter.IWalletAdapter.
package walletAdapterTest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dandelion-network/taskctl/pkg/ledgerGateway"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/dandelion-network/taskctl/pkg/walletAdapter"
)

// FakeWallet records submitted payloads and hands out sequential hashes.
// Set SubmitFn to intercept submissions; set ConnectErr to fail Connect.
type FakeWallet struct {
	mu        sync.Mutex
	account   types.Account
	network   types.Network
	connected bool
	counter   int
	payloads  []*ledgerGateway.EntryFunctionPayload
	events    *walletAdapter.EventHub

	ConnectErr error
	SubmitFn   func(ctx context.Context, payload *ledgerGateway.EntryFunctionPayload) (string, error)
}

func NewFakeWallet(address string, network types.Network) *FakeWallet {
	return &FakeWallet{
		account: types.Account{Address: address},
		network: network,
		events:  walletAdapter.NewEventHub(),
	}
}

func (f *FakeWallet) Name() string    { return "fake" }
func (f *FakeWallet) Available() bool { return true }

func (f *FakeWallet) Events() *walletAdapter.EventHub { return f.events }

func (f *FakeWallet) Connect(ctx context.Context) (*types.Account, *types.Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if f.ConnectErr != nil {
		return nil, nil, f.ConnectErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	a, n := f.account, f.network
	return &a, &n, nil
}

func (f *FakeWallet) Account(ctx context.Context) (*types.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil, taskErrors.New(taskErrors.KindWalletUnavailable, "account", "wallet not connected")
	}
	a := f.account
	return &a, nil
}

func (f *FakeWallet) Network(ctx context.Context) (*types.Network, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.network
	return &n, nil
}

func (f *FakeWallet) Disconnect(ctx context.Context) error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.events.EmitDisconnected()
	return nil
}

func (f *FakeWallet) SignAndSubmit(ctx context.Context, payload *ledgerGateway.EntryFunctionPayload) (string, error) {
	f.mu.Lock()
	if !f.connected {
		f.mu.Unlock()
		return "", taskErrors.New(taskErrors.KindWalletUnavailable, "signAndSubmit", "wallet not connected")
	}
	f.payloads = append(f.payloads, payload)
	f.counter++
	hash := fmt.Sprintf("0x%064x", f.counter)
	fn := f.SubmitFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, payload)
	}
	return hash, nil
}

// SwitchAccount changes the active account and emits the change event.
func (f *FakeWallet) SwitchAccount(address string) {
	f.mu.Lock()
	f.account = types.Account{Address: address}
	a := f.account
	f.mu.Unlock()
	f.events.EmitAccountChanged(a)
}

func (f *FakeWallet) SwitchNetwork(n types.Network) {
	f.mu.Lock()
	f.network = n
	f.mu.Unlock()
	f.events.EmitNetworkChanged(n)
}

// Payloads returns every payload passed to SignAndSubmit, in order.
func (f *FakeWallet) Payloads() []*ledgerGateway.EntryFunctionPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*ledgerGateway.EntryFunctionPayload(nil), f.payloads...)
}
