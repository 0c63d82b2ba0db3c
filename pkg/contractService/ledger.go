package contractService

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dandelion-network/taskctl/pkg/ledgerGateway"
	"github.com/dandelion-network/taskctl/pkg/taskCodec"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/dandelion-network/taskctl/pkg/walletAdapter"
	"go.uber.org/zap"
)

// Gateway is the subset of *ledgerGateway.LedgerGateway the service uses.
type Gateway interface {
	View(ctx context.Context, function string, typeArgs []string, args []any) ([]json.RawMessage, error)
	Submit(ctx context.Context, payload *ledgerGateway.EntryFunctionPayload, signer ledgerGateway.Signer) (string, error)
	WaitForConfirmation(ctx context.Context, hash string, timeout time.Duration) (*types.Receipt, error)
	AccountResource(ctx context.Context, address, resourceType string) (*ledgerGateway.Resource, error)
	LedgerInfo(ctx context.Context) (*types.LedgerStatus, error)
}

// ledger is the backend a ContractService runs against: the live node or the
// in-memory simulation.
type ledger interface {
	submit(ctx context.Context, sender, action string, payload *ledgerGateway.EntryFunctionPayload) (*types.TxResult, error)
	viewTask(ctx context.Context, id uint64) (*types.Task, error)
	viewAllTasks(ctx context.Context) ([]*types.Task, error)
}

type liveLedger struct {
	gw       Gateway
	wallet   walletAdapter.IWalletAdapter
	payloads payloads
	timeout  time.Duration
	logger   *zap.Logger
}

// submit signs through the wallet and waits for confirmation. An
// ExecutionFailed error is returned together with the result and its receipt.
func (l *liveLedger) submit(ctx context.Context, sender, action string, payload *ledgerGateway.EntryFunctionPayload) (*types.TxResult, error) {
	hash, err := l.gw.Submit(ctx, payload, l.wallet)
	if err != nil {
		return nil, err
	}
	l.logger.Sugar().Infow("Transaction submitted",
		zap.String("action", action),
		zap.String("sender", sender),
		zap.String("hash", hash),
	)

	result := &types.TxResult{Action: action, Hash: hash}
	receipt, err := l.gw.WaitForConfirmation(ctx, hash, l.timeout)
	result.Receipt = receipt
	if err != nil {
		if errors.Is(err, taskErrors.ErrConfirmationTimeout) {
			l.logger.Sugar().Warnw("Transaction not confirmed in time, it may still commit",
				zap.String("action", action),
				zap.String("hash", hash),
			)
		}
		return result, err
	}
	return result, nil
}

func (l *liveLedger) viewTask(ctx context.Context, id uint64) (*types.Task, error) {
	values, err := l.gw.View(ctx, l.payloads.function(moduleTaskFactory, fnViewGetTask), nil,
		[]any{taskCodec.EncodeU64Arg(id)})
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, taskErrors.New(taskErrors.KindNotFound, "getTask", "task %d not found", id)
	}
	return taskCodec.DecodeTaskRecord(id, values[0])
}

func (l *liveLedger) viewAllTasks(ctx context.Context) ([]*types.Task, error) {
	values, err := l.gw.View(ctx, l.payloads.function(moduleTaskFactory, fnViewGetAllTasks), nil, nil)
	if err != nil {
		return nil, err
	}
	return taskCodec.DecodeTaskList(values)
}
