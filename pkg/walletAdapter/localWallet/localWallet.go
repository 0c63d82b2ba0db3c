// Package localWallet is a wallet backed by an Ed25519 key held in process
// memory. Transactions are encoded by the node, signed locally, and relayed
// through the ledger gateway.
package localWallet

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dandelion-network/taskctl/pkg/ledgerGateway"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/dandelion-network/taskctl/pkg/walletAdapter"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

const (
	Name = "local"

	defaultMaxGasAmount     = 200000
	defaultExpirationWindow = 10 * time.Minute
	signatureTypeEd25519    = "ed25519_signature"
)

// Relay is the subset of the ledger gateway used to build and relay transactions.
type Relay interface {
	Account(ctx context.Context, address string) (*ledgerGateway.AccountInfo, error)
	EstimateGasPrice(ctx context.Context) (uint64, error)
	EncodeSubmission(ctx context.Context, tx *ledgerGateway.UnsignedTransaction) ([]byte, error)
	SubmitSigned(ctx context.Context, tx *ledgerGateway.SignedTransaction) (string, error)
}

// Approver is asked before every signature. Returning false rejects the transaction.
type Approver func(ctx context.Context, payload *ledgerGateway.EntryFunctionPayload) (bool, error)

type Config struct {
	PrivateKey       string
	Mnemonic         string
	AccountIndex     uint32
	Network          types.Network
	MaxGasAmount     uint64
	ExpirationWindow time.Duration
}

type LocalWallet struct {
	logger   *zap.Logger
	config   *Config
	relay    Relay
	approver Approver
	events   *walletAdapter.EventHub
	now      func() time.Time

	mu        sync.Mutex
	key       ed25519.PrivateKey
	account   types.Account
	network   types.Network
	connected bool
}

type Option func(*LocalWallet)

func WithApprover(a Approver) Option {
	return func(w *LocalWallet) {
		w.approver = a
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *LocalWallet) {
		w.now = now
	}
}

// NewLocalWallet loads the key from cfg. A config with neither a private key
// nor a mnemonic yields a wallet that reports itself unavailable.
func NewLocalWallet(cfg *Config, relay Relay, logger *zap.Logger, opts ...Option) (*LocalWallet, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if relay == nil {
		return nil, fmt.Errorf("relay cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.MaxGasAmount == 0 {
		cfg.MaxGasAmount = defaultMaxGasAmount
	}
	if cfg.ExpirationWindow <= 0 {
		cfg.ExpirationWindow = defaultExpirationWindow
	}

	w := &LocalWallet{
		logger:  logger,
		config:  cfg,
		relay:   relay,
		events:  walletAdapter.NewEventHub(),
		now:     time.Now,
		network: cfg.Network,
	}
	for _, opt := range opts {
		opt(w)
	}

	var err error
	switch {
	case cfg.PrivateKey != "":
		w.key, err = ParsePrivateKey(cfg.PrivateKey)
	case cfg.Mnemonic != "":
		w.key, err = KeyFromMnemonic(cfg.Mnemonic, cfg.AccountIndex)
	}
	if err != nil {
		return nil, taskErrors.Wrap(taskErrors.KindWalletUnavailable, "newLocalWallet", err)
	}
	if w.key != nil {
		w.account = accountOf(w.key)
	}
	return w, nil
}

func (w *LocalWallet) Name() string { return Name }

func (w *LocalWallet) Available() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.key != nil
}

func (w *LocalWallet) Events() *walletAdapter.EventHub { return w.events }

func (w *LocalWallet) Connect(ctx context.Context) (*types.Account, *types.Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.key == nil {
		return nil, nil, taskErrors.New(taskErrors.KindWalletUnavailable, "connect", "no key configured")
	}
	w.connected = true

	w.logger.Sugar().Infow("Local wallet connected",
		zap.String("address", w.account.Address),
		zap.String("network", w.network.Name),
	)
	account, network := w.account, w.network
	return &account, &network, nil
}

func (w *LocalWallet) Account(ctx context.Context) (*types.Account, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return nil, taskErrors.New(taskErrors.KindWalletUnavailable, "account", "wallet not connected")
	}
	account := w.account
	return &account, nil
}

func (w *LocalWallet) Network(ctx context.Context) (*types.Network, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	network := w.network
	return &network, nil
}

func (w *LocalWallet) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	was := w.connected
	w.connected = false
	w.mu.Unlock()

	if was {
		w.events.EmitDisconnected()
	}
	return nil
}

// SwitchAccount replaces the active key and notifies subscribers.
func (w *LocalWallet) SwitchAccount(privateKey string) error {
	key, err := ParsePrivateKey(privateKey)
	if err != nil {
		return taskErrors.Wrap(taskErrors.KindWalletUnavailable, "switchAccount", err)
	}
	w.mu.Lock()
	w.key = key
	w.account = accountOf(key)
	account := w.account
	w.mu.Unlock()

	w.events.EmitAccountChanged(account)
	return nil
}

func (w *LocalWallet) SwitchNetwork(n types.Network) {
	w.mu.Lock()
	w.network = n
	w.mu.Unlock()
	w.events.EmitNetworkChanged(n)
}

// SignAndSubmit builds, signs, and relays the transaction for payload.
func (w *LocalWallet) SignAndSubmit(ctx context.Context, payload *ledgerGateway.EntryFunctionPayload) (string, error) {
	w.mu.Lock()
	key, account, connected := w.key, w.account, w.connected
	w.mu.Unlock()

	if !connected || key == nil {
		return "", taskErrors.New(taskErrors.KindWalletUnavailable, "signAndSubmit", "wallet not connected")
	}

	if w.approver != nil {
		ok, err := w.approver(ctx, payload)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if err != nil {
			return "", taskErrors.Wrap(taskErrors.KindUserRejected, "signAndSubmit", err)
		}
		if !ok {
			return "", taskErrors.New(taskErrors.KindUserRejected, "signAndSubmit", "transaction declined")
		}
	}

	info, err := w.relay.Account(ctx, account.Address)
	if err != nil {
		return "", taskErrors.WithOp("signAndSubmit", err)
	}
	gasPrice, err := w.relay.EstimateGasPrice(ctx)
	if err != nil {
		return "", taskErrors.WithOp("signAndSubmit", err)
	}

	unsigned := ledgerGateway.UnsignedTransaction{
		Sender:                  account.Address,
		SequenceNumber:          info.SequenceNumber,
		MaxGasAmount:            strconv.FormatUint(w.config.MaxGasAmount, 10),
		GasUnitPrice:            strconv.FormatUint(gasPrice, 10),
		ExpirationTimestampSecs: strconv.FormatInt(w.now().Add(w.config.ExpirationWindow).Unix(), 10),
		Payload:                 payload,
	}

	message, err := w.relay.EncodeSubmission(ctx, &unsigned)
	if err != nil {
		return "", taskErrors.WithOp("signAndSubmit", err)
	}

	signed := &ledgerGateway.SignedTransaction{
		UnsignedTransaction: unsigned,
		Signature: &ledgerGateway.Signature{
			Type:      signatureTypeEd25519,
			PublicKey: account.PublicKey,
			Signature: hexutil.Encode(ed25519.Sign(key, message)),
		},
	}

	w.logger.Sugar().Debugw("Relaying signed transaction",
		zap.String("sender", account.Address),
		zap.String("function", payload.Function),
		zap.String("sequenceNumber", info.SequenceNumber),
	)
	return w.relay.SubmitSigned(ctx, signed)
}

func accountOf(key ed25519.PrivateKey) types.Account {
	pub := key.Public().(ed25519.PublicKey)
	return types.Account{
		Address:   AddressFromPublicKey(pub),
		PublicKey: hexutil.Encode(pub),
	}
}
