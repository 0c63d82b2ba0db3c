package main

import (
	"context"
	"fmt"

	"github.com/dandelion-network/taskctl/internal/output"
	"github.com/dandelion-network/taskctl/internal/telemetry"
	"github.com/dandelion-network/taskctl/pkg/config"
	"github.com/dandelion-network/taskctl/pkg/contentStore"
	"github.com/dandelion-network/taskctl/pkg/contractService"
	"github.com/dandelion-network/taskctl/pkg/deploymentProbe"
	"github.com/dandelion-network/taskctl/pkg/ledgerGateway"
	"github.com/dandelion-network/taskctl/pkg/logger"
	"github.com/dandelion-network/taskctl/pkg/sessionStore"
	"github.com/dandelion-network/taskctl/pkg/sessionStore/storage"
	"github.com/dandelion-network/taskctl/pkg/sessionStore/storage/badger"
	"github.com/dandelion-network/taskctl/pkg/sessionStore/storage/memory"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/dandelion-network/taskctl/pkg/walletAdapter"
	"github.com/dandelion-network/taskctl/pkg/walletAdapter/localWallet"
	"github.com/dandelion-network/taskctl/pkg/walletAdapter/remoteWallet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	flagOutput = "output"
	flagYes    = "yes"
)

// taskWriter is the write surface shared by the session and the bare service.
type taskWriter interface {
	CreateTask(ctx context.Context, req *contractService.CreateTaskRequest) (*types.TxResult, error)
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
	InitializeContracts(ctx context.Context, params *contractService.InitParams) ([]*types.TxResult, error)
}

// app holds everything a command needs. wallet and session are nil when no
// wallet is configured; reads and simulated writes still work.
type app struct {
	cmd       *cobra.Command
	cfg       *config.TaskctlConfig
	network   *config.NetworkConfig
	logger    *zap.Logger
	formatter *output.Formatter
	registry  *prometheus.Registry

	gateway *ledgerGateway.LedgerGateway
	probe   *deploymentProbe.DeploymentProbe
	content contentStore.IContentStore
	wallet  walletAdapter.IWalletAdapter
	history storage.TxHistoryStore
	service *contractService.ContractService
	session *sessionStore.SessionStore

	assumeYes bool
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg := Config
	if cfg == nil {
		cfg = config.NewTaskctlConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return nil, err
	}

	format, _ := cmd.Flags().GetString(flagOutput)
	formatter := output.NewFormatter(format)
	if err := formatter.Validate(); err != nil {
		return nil, err
	}
	assumeYes, _ := cmd.Flags().GetBool(flagYes)

	network, err := cfg.ResolveNetwork()
	if err != nil {
		return nil, err
	}

	a := &app{
		cmd:       cmd,
		cfg:       cfg,
		network:   network,
		logger:    l,
		formatter: formatter,
		registry:  prometheus.NewRegistry(),
		assumeYes: assumeYes,
	}

	gwCfg := ledgerGateway.DefaultConfig()
	gwCfg.BaseURL = network.NodeUrl
	gwCfg.FaucetURL = network.FaucetUrl
	gwCfg.ReadsPerSecond = cfg.RateLimit
	a.gateway, err = ledgerGateway.NewLedgerGateway(gwCfg, l, ledgerGateway.WithMetrics(ledgerGateway.NewMetrics(a.registry)))
	if err != nil {
		return nil, err
	}

	a.probe, err = deploymentProbe.NewDeploymentProbe(a.gateway, deploymentProbe.DefaultConfig(), l)
	if err != nil {
		return nil, err
	}

	if a.content, err = newContentStore(cfg.Content, l); err != nil {
		return nil, err
	}

	if a.wallet, err = a.resolveWallet(); err != nil {
		return nil, err
	}

	a.service, err = contractService.NewContractService(&contractService.Config{
		ModuleAddress:       cfg.ModuleAddress,
		ConfirmationTimeout: cfg.ConfirmationTimeout,
		ForceSimulation:     cfg.Simulate,
	}, a.gateway, a.wallet, a.probe, a.content, l)
	if err != nil {
		return nil, err
	}

	if a.history, err = newHistoryStore(cfg.Storage); err != nil {
		return nil, err
	}

	if a.wallet != nil {
		a.session, err = sessionStore.NewSessionStore(a.service, a.wallet, a.history, l)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// start connects the wallet when there is one and selects the service mode.
func (a *app) start(ctx context.Context) error {
	if a.session != nil {
		_, err := a.session.Connect(ctx)
		return err
	}
	_, err := a.service.Initialize(ctx)
	return err
}

func (a *app) writer() taskWriter {
	if a.session != nil {
		return a.session
	}
	return a.service
}

func (a *app) close() {
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.logger.Sugar().Warnw("Failed to close session", zap.Error(err))
		}
	} else if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Sugar().Warnw("Failed to close history store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *app) resolveWallet() (walletAdapter.IWalletAdapter, error) {
	wc := a.cfg.Wallet
	network := types.Network{
		Name:    a.network.Name,
		ChainId: uint8(a.network.ChainId),
		NodeUrl: a.network.NodeUrl,
	}

	if wc.Type == config.WalletTypeLocal && wc.PrivateKey == "" && wc.Mnemonic == "" && output.IsInteractive() {
		key, err := output.InputHiddenString("Private key", "hex ed25519 private key, never stored", func(s string) error {
			_, err := localWallet.ParsePrivateKey(s)
			return err
		})
		if err != nil {
			return nil, err
		}
		wc.PrivateKey = key
	}

	var candidates []walletAdapter.IWalletAdapter
	if wc.Type == "" || wc.Type == config.WalletTypeLocal {
		local, err := localWallet.NewLocalWallet(&localWallet.Config{
			PrivateKey:   wc.PrivateKey,
			Mnemonic:     wc.Mnemonic,
			AccountIndex: wc.AccountIndex,
			Network:      network,
		}, a.gateway, a.logger, localWallet.WithApprover(a.approve))
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, local)
	}
	if wc.Type == "" || wc.Type == config.WalletTypeRemote {
		rcfg := remoteWallet.DefaultConfig()
		rcfg.BridgeURL = wc.BridgeUrl
		remote, err := remoteWallet.NewRemoteWallet(rcfg, a.logger)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, remote)
	}
	w, err := walletAdapter.Resolve(candidates...)
	if err != nil {
		a.logger.Sugar().Debugw("No wallet available, continuing without one", zap.Error(err))
		return nil, nil
	}
	return w, nil
}

// approve asks before the local wallet signs. Non-interactive sessions
// require --yes.
func (a *app) approve(ctx context.Context, payload *ledgerGateway.EntryFunctionPayload) (bool, error) {
	if a.assumeYes {
		return true, nil
	}
	if !output.IsInteractive() {
		return false, taskErrors.New(taskErrors.KindUserRejected, "approve", "refusing to sign without a terminal, pass --yes")
	}
	return output.Confirm(fmt.Sprintf("Sign and submit %s on %s?", payload.Function, a.network.Name))
}

func newContentStore(cc *config.ContentConfig, l *zap.Logger) (contentStore.IContentStore, error) {
	if cc == nil || cc.GatewayUrl == "" {
		return contentStore.NewNoopStore(), nil
	}
	return contentStore.NewIpfsGateway(&contentStore.IpfsConfig{
		GatewayURL: cc.GatewayUrl,
		ApiURL:     cc.ApiUrl,
		Timeout:    cc.Timeout,
	}, l)
}

func newHistoryStore(sc *config.StorageConfig) (storage.TxHistoryStore, error) {
	switch sc.Type {
	case config.StorageTypeMemory:
		return memory.NewInMemoryHistoryStore(), nil
	case config.StorageTypeBadger:
		return badger.NewBadgerHistoryStore(&badger.Config{
			Dir:      sc.BadgerConfig.Dir,
			InMemory: sc.BadgerConfig.InMemory,
		})
	default:
		return nil, fmt.Errorf("unknown storage type: %s", sc.Type)
	}
}

// runWith builds the app, starts it and runs fn inside a telemetry scope.
func runWith(fn func(ctx context.Context, a *app, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		telemetry.Init(a.cfg.Telemetry)
		ctx := telemetry.ContextWithClient(cmd.Context(), telemetry.GetGlobalClient())
		ctx = telemetry.StartCommand(ctx, cmd.CommandPath())

		err = a.start(ctx)
		if metrics, ok := telemetry.CommandMetricsFromContext(ctx); ok {
			metrics.SetNetwork(a.network.Name)
			metrics.SetMode(string(a.service.Mode()))
		}
		if err != nil {
			telemetry.FinishCommand(ctx, err)
			return err
		}
		err = fn(ctx, a, args)
		telemetry.FinishCommand(ctx, err)
		return err
	}
}

// describeError adds the error kind so scripted callers can tell failures apart.
func describeError(err error) string {
	kind := taskErrors.KindOf(err)
	if kind == taskErrors.KindUnknown {
		return err.Error()
	}
	return fmt.Sprintf("[%s] %v", kind, err)
}
