// Package contractService drives the task lifecycle on the ledger. Every
// write checks its state-machine precondition locally before anything is
// signed, then submits, waits for confirmation, and invalidates the cached
// task before returning. When the task modules are not deployed the service
// runs against an in-memory simulation and tags every result as simulated.
package contractService

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dandelion-network/taskctl/pkg/contentStore"
	"github.com/dandelion-network/taskctl/pkg/deploymentProbe"
	"github.com/dandelion-network/taskctl/pkg/ledgerGateway"
	"github.com/dandelion-network/taskctl/pkg/taskCodec"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/dandelion-network/taskctl/pkg/walletAdapter"
	"go.uber.org/zap"
)

const DefaultModuleAddress = "0xa1b3e0179d015222a7dfae11a029f96b173f0bf5b4747fd6c2d057dead2b921b"

// SimulatedCaller signs simulated transactions when no wallet is connected.
const SimulatedCaller = "0x0000000000000000000000000000000000000000000000000000000000005157"

type Mode string

const (
	ModeLive       Mode = "live"
	ModeSimulation Mode = "simulation"
)

type IContractService interface {
	Initialize(ctx context.Context) (Mode, error)
	Reset(ctx context.Context) (Mode, error)
	Mode() Mode
	ClearCache()

	CreateTask(ctx context.Context, req *CreateTaskRequest) (*types.TxResult, error)
	OpenBidding(ctx context.Context, id uint64) (*types.TxResult, error)
	PlaceBid(ctx context.Context, id uint64, deposit string) (*types.TxResult, error)
	SelectWinner(ctx context.Context, id uint64, winner string) (*types.TxResult, error)
	RequestVerification(ctx context.Context, id uint64) (*types.TxResult, error)
	ConfirmCompletion(ctx context.Context, id uint64, approve bool) (*types.TxResult, error)
	RaiseDispute(ctx context.Context, id uint64) (*types.TxResult, error)
	CancelTask(ctx context.Context, id uint64) (*types.TxResult, error)
	DepositFunds(ctx context.Context, id uint64, amount string) (*types.TxResult, error)
	ReleaseFunds(ctx context.Context, id uint64) (*types.TxResult, error)
	StakeAsJuror(ctx context.Context, amount string) (*types.TxResult, error)
	Vote(ctx context.Context, disputeId uint64, candidate string) (*types.TxResult, error)
	InitializeContracts(ctx context.Context, params *InitParams) ([]*types.TxResult, error)

	GetTask(ctx context.Context, id uint64) (*types.Task, error)
	GetAllTasks(ctx context.Context) ([]*types.Task, error)
	Refresh(ctx context.Context) ([]*types.Task, error)
	GetBids(ctx context.Context, id uint64) ([]types.Bid, error)
	GetBalance(ctx context.Context, address string) (string, error)
	GetNetworkStatus(ctx context.Context) (*types.LedgerStatus, error)
}

type Config struct {
	ModuleAddress       string
	ConfirmationTimeout time.Duration
	// ForceSimulation skips the deployment probe and always simulates.
	ForceSimulation bool
	Clock           func() time.Time
}

func DefaultConfig() *Config {
	return &Config{
		ModuleAddress:       DefaultModuleAddress,
		ConfirmationTimeout: ledgerGateway.DefaultConfirmationTimeout,
		Clock:               time.Now,
	}
}

type ContractService struct {
	config  *Config
	logger  *zap.Logger
	gw      Gateway
	wallet  walletAdapter.IWalletAdapter
	probe   deploymentProbe.IDeploymentProbe
	content contentStore.IContentStore

	live      *liveLedger
	simulated *simulatedLedger
	cache     *taskCache
	locks     *keyedLocks

	mu   sync.RWMutex
	mode Mode
}

// NewContractService wires the service. wallet may be nil for read-only use;
// content may be nil when no content store is configured.
func NewContractService(
	cfg *Config,
	gw Gateway,
	wallet walletAdapter.IWalletAdapter,
	probe deploymentProbe.IDeploymentProbe,
	content contentStore.IContentStore,
	logger *zap.Logger,
) (*ContractService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway cannot be nil")
	}
	if probe == nil {
		return nil, fmt.Errorf("probe cannot be nil")
	}
	addr, err := taskCodec.NormalizeAddress(cfg.ModuleAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid module address: %w", err)
	}
	cfg.ModuleAddress = addr
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.ConfirmationTimeout <= 0 {
		cfg.ConfirmationTimeout = ledgerGateway.DefaultConfirmationTimeout
	}
	if content == nil {
		content = contentStore.NewNoopStore()
	}

	sim, err := newSimulatedLedger(cfg.Clock, logger)
	if err != nil {
		return nil, err
	}

	s := &ContractService{
		config:  cfg,
		logger:  logger,
		gw:      gw,
		wallet:  wallet,
		probe:   probe,
		content: content,
		live: &liveLedger{
			gw:       gw,
			wallet:   wallet,
			payloads: payloads{address: addr},
			timeout:  cfg.ConfirmationTimeout,
			logger:   logger,
		},
		simulated: sim,
		cache:     newTaskCache(),
		locks:     newKeyedLocks(),
		mode:      ModeLive,
	}
	if cfg.ForceSimulation {
		s.mode = ModeSimulation
	}
	return s, nil
}

// Initialize probes the module address and selects the mode. A probe that
// fails for any reason other than cancellation selects simulation.
func (s *ContractService) Initialize(ctx context.Context) (Mode, error) {
	mode := ModeLive
	if s.config.ForceSimulation {
		mode = ModeSimulation
	} else {
		deployed, err := s.probe.IsDeployed(ctx, s.config.ModuleAddress)
		if err != nil {
			if ctx.Err() != nil {
				return s.Mode(), ctx.Err()
			}
			s.logger.Sugar().Warnw("Deployment probe failed, falling back to simulation",
				zap.String("moduleAddress", s.config.ModuleAddress),
				zap.Error(err),
			)
		}
		if !deployed {
			mode = ModeSimulation
		}
	}

	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()

	s.logger.Sugar().Infow("Contract service mode selected",
		zap.String("mode", string(mode)),
		zap.String("moduleAddress", s.config.ModuleAddress),
	)
	return mode, nil
}

// Reset drops every cached task and re-runs the deployment probe. It is
// called on connect and on every account or network change.
func (s *ContractService) Reset(ctx context.Context) (Mode, error) {
	s.cache.clear()
	return s.Initialize(ctx)
}

func (s *ContractService) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *ContractService) ClearCache() {
	s.cache.clear()
}

func (s *ContractService) backend() ledger {
	if s.Mode() == ModeSimulation {
		return s.simulated
	}
	return s.live
}

func (s *ContractService) calls() payloads {
	return payloads{address: s.config.ModuleAddress}
}

func (s *ContractService) now() int64 {
	return s.config.Clock().Unix()
}

// caller returns the normalized address of the connected account. Simulation
// tolerates a missing wallet; live mode does not.
func (s *ContractService) caller(ctx context.Context, op string) (string, error) {
	if s.wallet == nil {
		if s.Mode() == ModeSimulation {
			return SimulatedCaller, nil
		}
		return "", taskErrors.New(taskErrors.KindWalletUnavailable, op, "no wallet configured")
	}
	account, err := s.wallet.Account(ctx)
	if err != nil {
		if s.Mode() == ModeSimulation {
			return SimulatedCaller, nil
		}
		return "", taskErrors.WithOp(op, err)
	}
	addr, err := taskCodec.NormalizeAddress(account.Address)
	if err != nil {
		return "", taskErrors.Wrap(taskErrors.KindWalletUnavailable, op, err)
	}
	return addr, nil
}

// execute submits payload on the active backend. The task's cache entry is
// dropped after confirmation, and also when the ledger rejected the
// transaction or its outcome is unknown, since local data is then suspect.
// A cancelled or failed submission leaves the cache untouched.
func (s *ContractService) execute(ctx context.Context, caller, action string, taskId *uint64, payload *ledgerGateway.EntryFunctionPayload) (*types.TxResult, error) {
	result, err := s.backend().submit(ctx, caller, action, payload)
	if err != nil {
		if taskErrors.KindOf(err) == taskErrors.KindExecutionFailed || taskErrors.KindOf(err) == taskErrors.KindConfirmationTimeout {
			if taskId != nil {
				s.cache.invalidate(*taskId)
			}
		}
		s.logger.Sugar().Warnw("Transaction failed",
			zap.String("action", action),
			zap.String("function", payload.Function),
			zap.Error(err),
		)
		return result, taskErrors.WithOp(action, err)
	}

	if taskId != nil {
		s.cache.invalidate(*taskId)
		if result.TaskId == nil {
			id := *taskId
			result.TaskId = &id
		}
	}
	return result, nil
}
