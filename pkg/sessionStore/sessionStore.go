// Package sessionStore holds the state of one user session: the wallet
// connection, the account balance, and the transactions submitted so far. It
// reacts to wallet events so that an account or network switch never leaves
// stale task data behind.
package sessionStore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dandelion-network/taskctl/pkg/contractService"
	"github.com/dandelion-network/taskctl/pkg/sessionStore/storage"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/dandelion-network/taskctl/pkg/walletAdapter"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecentLimit is the size of the short history view.
const RecentLimit = 10

const defaultHandlerTimeout = 30 * time.Second

type State struct {
	Connected bool                 `json:"connected"`
	Account   *types.Account       `json:"account,omitempty"`
	Network   *types.Network       `json:"network,omitempty"`
	Balance   string               `json:"balance"`
	Mode      contractService.Mode `json:"mode"`
	LastError string               `json:"lastError,omitempty"`
}

type SessionStore struct {
	service contractService.IContractService
	wallet  walletAdapter.IWalletAdapter
	history storage.TxHistoryStore
	logger  *zap.Logger

	clock          func() time.Time
	handlerTimeout time.Duration

	mu          sync.RWMutex
	state       State
	unsubscribe []func()
}

type Option func(*SessionStore)

func WithClock(clock func() time.Time) Option {
	return func(s *SessionStore) {
		s.clock = clock
	}
}

// WithHandlerTimeout bounds the ledger calls made while handling a wallet event.
func WithHandlerTimeout(d time.Duration) Option {
	return func(s *SessionStore) {
		s.handlerTimeout = d
	}
}

func NewSessionStore(
	service contractService.IContractService,
	wallet walletAdapter.IWalletAdapter,
	history storage.TxHistoryStore,
	logger *zap.Logger,
	opts ...Option,
) (*SessionStore, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if wallet == nil {
		return nil, fmt.Errorf("wallet cannot be nil")
	}
	if history == nil {
		return nil, fmt.Errorf("history cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	s := &SessionStore{
		service:        service,
		wallet:         wallet,
		history:        history,
		logger:         logger,
		clock:          time.Now,
		handlerTimeout: defaultHandlerTimeout,
		state:          State{Balance: zeroBalance, Mode: service.Mode()},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

const zeroBalance = "0.00000000"

// Connect connects the wallet, resets the service for the new account and
// loads its balance. Wallet events are handled from the first connect on.
func (s *SessionStore) Connect(ctx context.Context) (*State, error) {
	account, network, err := s.wallet.Connect(ctx)
	if err != nil {
		s.setError(err)
		return s.State(), err
	}
	s.subscribe()

	s.mu.Lock()
	s.state.Connected = true
	s.state.Account = account
	s.state.Network = network
	s.mu.Unlock()

	s.logger.Sugar().Infow("Wallet connected",
		zap.String("wallet", s.wallet.Name()),
		zap.String("account", account.Address),
		zap.String("network", network.Name),
	)

	if err := s.resetForAccount(ctx); err != nil {
		return s.State(), err
	}
	return s.State(), nil
}

// Disconnect disconnects the wallet and drops all session data.
func (s *SessionStore) Disconnect(ctx context.Context) error {
	err := s.wallet.Disconnect(ctx)
	s.handleDisconnected()
	return err
}

// State returns a snapshot of the session.
func (s *SessionStore) State() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.Account != nil {
		a := *st.Account
		st.Account = &a
	}
	if st.Network != nil {
		n := *st.Network
		st.Network = &n
	}
	return &st
}

// RefreshBalance reloads the balance of the connected account.
func (s *SessionStore) RefreshBalance(ctx context.Context) (string, error) {
	if !s.State().Connected {
		return zeroBalance, taskErrors.New(taskErrors.KindWalletUnavailable, "refreshBalance", "wallet not connected")
	}
	balance, err := s.service.GetBalance(ctx, "")
	if err != nil {
		s.setError(err)
		return "", err
	}
	s.mu.Lock()
	s.state.Balance = balance
	s.mu.Unlock()
	return balance, nil
}

func (s *SessionStore) Close() error {
	s.mu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	for _, fn := range unsub {
		fn()
	}
	return s.history.Close()
}

func (s *SessionStore) subscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		return
	}
	events := s.wallet.Events()
	s.unsubscribe = []func(){
		events.OnAccountChanged(s.handleAccountChanged),
		events.OnNetworkChanged(s.handleNetworkChanged),
		events.OnDisconnected(s.handleDisconnected),
	}
}

// handleAccountChanged treats a new account exactly like a fresh connect.
func (s *SessionStore) handleAccountChanged(a types.Account) {
	if a.Address == "" {
		s.handleDisconnected()
		return
	}
	s.mu.Lock()
	s.state.Connected = true
	s.state.Account = &a
	s.state.Balance = zeroBalance
	s.mu.Unlock()

	s.logger.Sugar().Infow("Wallet account changed", zap.String("account", a.Address))

	ctx, cancel := context.WithTimeout(context.Background(), s.handlerTimeout)
	defer cancel()
	_ = s.resetForAccount(ctx)
}

func (s *SessionStore) handleNetworkChanged(n types.Network) {
	s.mu.Lock()
	s.state.Network = &n
	s.mu.Unlock()

	s.logger.Sugar().Infow("Wallet network changed",
		zap.String("network", n.Name),
		zap.Uint8("chainId", n.ChainId),
	)

	ctx, cancel := context.WithTimeout(context.Background(), s.handlerTimeout)
	defer cancel()
	_ = s.resetForAccount(ctx)
}

func (s *SessionStore) handleDisconnected() {
	s.service.ClearCache()
	s.mu.Lock()
	wasConnected := s.state.Connected
	s.state = State{Balance: zeroBalance, Mode: s.service.Mode()}
	s.mu.Unlock()
	if wasConnected {
		s.logger.Sugar().Infow("Wallet disconnected")
	}
}

// resetForAccount drops cached tasks, re-probes the deployment and reloads
// the balance.
func (s *SessionStore) resetForAccount(ctx context.Context) error {
	mode, err := s.service.Reset(ctx)
	s.mu.Lock()
	s.state.Mode = mode
	s.mu.Unlock()
	if err != nil {
		s.setError(err)
		return err
	}
	if _, err := s.RefreshBalance(ctx); err != nil {
		s.logger.Sugar().Warnw("Failed to load balance", zap.Error(err))
	}
	return nil
}

func (s *SessionStore) setError(err error) {
	s.mu.Lock()
	s.state.LastError = err.Error()
	s.mu.Unlock()
}

func (s *SessionStore) historyAccount() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Account != nil && s.state.Account.Address != "" {
		return s.state.Account.Address
	}
	return contractService.SimulatedCaller
}

// record appends the outcome of a write to the history. Writes that never
// reached a ledger (failed preconditions, rejected signatures, cancellations)
// are not recorded.
func (s *SessionStore) record(ctx context.Context, action string, result *types.TxResult, err error) {
	var status storage.TxStatus
	switch {
	case err == nil && result != nil && result.Simulated:
		status = storage.TxStatusSimulated
	case err == nil:
		status = storage.TxStatusConfirmed
	case errors.Is(err, taskErrors.ErrExecutionFailed):
		status = storage.TxStatusFailed
	case errors.Is(err, taskErrors.ErrConfirmationTimeout):
		status = storage.TxStatusPending
	default:
		s.setError(err)
		return
	}

	rec := &storage.TxRecord{
		Id:        uuid.NewString(),
		Account:   s.historyAccount(),
		Action:    action,
		Status:    status,
		CreatedAt: s.clock().UTC(),
	}
	if result != nil {
		rec.Hash = result.Hash
		rec.TaskId = result.TaskId
		rec.Simulated = result.Simulated
	}
	if err != nil {
		rec.Error = err.Error()
		s.setError(err)
	}

	if appendErr := s.history.Append(ctx, rec); appendErr != nil {
		s.logger.Sugar().Warnw("Failed to record transaction",
			zap.String("action", action),
			zap.String("hash", rec.Hash),
			zap.Error(appendErr),
		)
	}

	if status == storage.TxStatusConfirmed && s.State().Connected {
		if _, err := s.RefreshBalance(ctx); err != nil {
			s.logger.Sugar().Debugw("Balance refresh after write failed", zap.Error(err))
		}
	}
}

func (s *SessionStore) write(ctx context.Context, action string, fn func() (*types.TxResult, error)) (*types.TxResult, error) {
	result, err := fn()
	s.record(ctx, action, result, err)
	return result, err
}

// History returns up to limit records of the current account, newest first.
func (s *SessionStore) History(ctx context.Context, limit int) ([]*storage.TxRecord, error) {
	return s.history.List(ctx, s.historyAccount(), limit)
}

func (s *SessionStore) RecentHistory(ctx context.Context) ([]*storage.TxRecord, error) {
	return s.History(ctx, RecentLimit)
}

func (s *SessionStore) ClearHistory(ctx context.Context) error {
	return s.history.Clear(ctx, s.historyAccount())
}
