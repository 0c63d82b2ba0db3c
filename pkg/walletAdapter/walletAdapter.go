package walletAdapter

import (
	"context"

	"github.com/dandelion-network/taskctl/pkg/ledgerGateway"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
)

// IWalletAdapter is the single wallet capability the client depends on.
type IWalletAdapter interface {
	ledgerGateway.Signer

	// Name identifies the implementation, e.g. "local" or "remote".
	Name() string

	// Available reports whether the wallet can be used in this environment at all.
	Available() bool

	// Connect asks the wallet for access. It fails with WalletUnavailable when
	// the wallet cannot be reached and UserRejected when the holder declines.
	// A cancelled ctx leaves the adapter disconnected.
	Connect(ctx context.Context) (*types.Account, *types.Network, error)

	Account(ctx context.Context) (*types.Account, error)
	Network(ctx context.Context) (*types.Network, error)
	Disconnect(ctx context.Context) error

	// Events exposes account, network, and disconnect notifications.
	Events() *EventHub
}

// Resolve picks the first available wallet. It runs once at startup so
// callers depend on one implementation only.
func Resolve(candidates ...IWalletAdapter) (IWalletAdapter, error) {
	for _, c := range candidates {
		if c != nil && c.Available() {
			return c, nil
		}
	}
	return nil, taskErrors.New(taskErrors.KindWalletUnavailable, "resolveWallet", "no compatible wallet configured")
}
