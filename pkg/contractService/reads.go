package contractService

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dandelion-network/taskctl/pkg/contentStore"
	"github.com/dandelion-network/taskctl/pkg/taskCodec"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/dandelion-network/taskctl/pkg/unitConverter"
	"go.uber.org/zap"
)

const CoinStoreType = "0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>"

// GetTask serves from the cache, loading and enriching the task on a miss.
func (s *ContractService) GetTask(ctx context.Context, id uint64) (*types.Task, error) {
	if t, ok := s.cache.get(id); ok {
		return t, nil
	}
	since := s.cache.generation()
	t, err := s.backend().viewTask(ctx, id)
	if err != nil {
		return nil, taskErrors.WithOp("getTask", err)
	}
	s.enrich(ctx, t)
	s.cache.put(t, since)
	return t.Clone(), nil
}

func (s *ContractService) GetAllTasks(ctx context.Context) ([]*types.Task, error) {
	if tasks, ok := s.cache.list(); ok {
		return tasks, nil
	}
	return s.Refresh(ctx)
}

// Refresh reloads every task from the backend, bypassing and then replacing the cache.
func (s *ContractService) Refresh(ctx context.Context) ([]*types.Task, error) {
	since := s.cache.generation()
	tasks, err := s.backend().viewAllTasks(ctx)
	if err != nil {
		return nil, taskErrors.WithOp("getAllTasks", err)
	}
	for _, t := range tasks {
		s.enrich(ctx, t)
	}
	s.cache.putList(tasks, since)

	out := make([]*types.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Clone())
	}
	return out, nil
}

// GetBids lists the recorded bidders of a task in bid order.
func (s *ContractService) GetBids(ctx context.Context, id uint64) ([]types.Bid, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	bids := make([]types.Bid, 0, len(t.Participants))
	for i, p := range t.Participants {
		bids = append(bids, types.Bid{TaskId: id, Bidder: p, Index: i})
	}
	return bids, nil
}

// GetBalance returns the APT balance of address, or of the connected
// account when address is empty. An account without a coin store has a zero
// balance.
func (s *ContractService) GetBalance(ctx context.Context, address string) (string, error) {
	const op = "getBalance"
	if address == "" {
		if s.wallet == nil {
			return "", taskErrors.New(taskErrors.KindWalletUnavailable, op, "no address given and no wallet configured")
		}
		account, err := s.wallet.Account(ctx)
		if err != nil {
			return "", taskErrors.WithOp(op, err)
		}
		address = account.Address
	}
	addr, err := taskCodec.NormalizeAddress(address)
	if err != nil {
		return "", taskErrors.Wrap(taskErrors.KindInvalidState, op, err)
	}

	resource, err := s.gw.AccountResource(ctx, addr, CoinStoreType)
	if err != nil {
		if errors.Is(err, taskErrors.ErrNotFound) {
			return unitConverter.ToDisplayUnitsUint64(0), nil
		}
		return "", taskErrors.WithOp(op, err)
	}

	var store struct {
		Coin struct {
			Value string `json:"value"`
		} `json:"coin"`
	}
	if err := json.Unmarshal(resource.Data, &store); err != nil {
		return "", taskErrors.Wrap(taskErrors.KindMalformedLedgerData, op, err)
	}
	balance, err := unitConverter.ToDisplayUnits(store.Coin.Value)
	if err != nil {
		return "", taskErrors.Wrap(taskErrors.KindMalformedLedgerData, op, err)
	}
	return balance, nil
}

func (s *ContractService) GetNetworkStatus(ctx context.Context) (*types.LedgerStatus, error) {
	status, err := s.gw.LedgerInfo(ctx)
	if err != nil {
		return nil, taskErrors.WithOp("getNetworkStatus", err)
	}
	return status, nil
}

// enrich resolves the content document of a task whose description is a
// content reference. Failures leave the on-ledger fields as they are.
func (s *ContractService) enrich(ctx context.Context, t *types.Task) {
	if t.ContentRef == "" {
		ref, err := contentStore.ValidateRef(t.Description)
		if err != nil {
			return
		}
		t.ContentRef = ref
	}
	doc, err := s.content.Get(ctx, t.ContentRef)
	if err != nil {
		s.logger.Sugar().Debugw("Task content unavailable",
			zap.Uint64("taskId", t.Id),
			zap.String("ref", t.ContentRef),
			zap.Error(err),
		)
		return
	}
	t.Content = doc
}

func eventTaskId(e types.Event) (uint64, bool) {
	var data struct {
		TaskId json.RawMessage `json:"task_id"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil || data.TaskId == nil {
		return 0, false
	}
	id, err := taskCodec.DecodeU64(data.TaskId)
	return id, err == nil
}
