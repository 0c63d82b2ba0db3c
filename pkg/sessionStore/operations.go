package sessionStore

import (
	"context"

	"github.com/dandelion-network/taskctl/pkg/contractService"
	"github.com/dandelion-network/taskctl/pkg/types"
)

func (s *SessionStore) Tasks(ctx context.Context) ([]*types.Task, error) {
	return s.service.GetAllTasks(ctx)
}

func (s *SessionStore) Task(ctx context.Context, id uint64) (*types.Task, error) {
	return s.service.GetTask(ctx, id)
}

func (s *SessionStore) RefreshTasks(ctx context.Context) ([]*types.Task, error) {
	return s.service.Refresh(ctx)
}

func (s *SessionStore) Bids(ctx context.Context, id uint64) ([]types.Bid, error) {
	return s.service.GetBids(ctx, id)
}

func (s *SessionStore) CreateTask(ctx context.Context, req *contractService.CreateTaskRequest) (*types.TxResult, error) {
	return s.write(ctx, contractService.ActionCreateTask, func() (*types.TxResult, error) {
		return s.service.CreateTask(ctx, req)
	})
}

func (s *SessionStore) OpenBidding(ctx context.Context, id uint64) (*types.TxResult, error) {
	return s.write(ctx, contractService.ActionOpenBidding, func() (*types.TxResult, error) {
		return s.service.OpenBidding(ctx, id)
	})
}

func (s *SessionStore) PlaceBid(ctx context.Context, id uint64, deposit string) (*types.TxResult, error) {
	return s.write(ctx, contractService.ActionPlaceBid, func() (*types.TxResult, error) {
		return s.service.PlaceBid(ctx, id, deposit)
	})
}

func (s *SessionStore) SelectWinner(ctx context.Context, id uint64, winner string) (*types.TxResult, error) {
	return s.write(ctx, contractService.ActionSelectWinner, func() (*types.TxResult, error) {
		return s.service.SelectWinner(ctx, id, winner)
	})
}

func (s *SessionStore) RequestVerification(ctx context.Context, id uint64) (*types.TxResult, error) {
	return s.write(ctx, contractService.ActionRequestVerification, func() (*types.TxResult, error) {
		return s.service.RequestVerification(ctx, id)
	})
}

func (s *SessionStore) ConfirmCompletion(ctx context.Context, id uint64, approve bool) (*types.TxResult, error) {
	action := contractService.ActionConfirmCompletion
	if !approve {
		action = contractService.ActionRejectCompletion
	}
	return s.write(ctx, action, func() (*types.TxResult, error) {
		return s.service.ConfirmCompletion(ctx, id, approve)
	})
}

func (s *SessionStore) RaiseDispute(ctx context.Context, id uint64) (*types.TxResult, error) {
	return s.write(ctx, contractService.ActionRaiseDispute, func() (*types.TxResult, error) {
		return s.service.RaiseDispute(ctx, id)
	})
}

func (s *SessionStore) CancelTask(ctx context.Context, id uint64) (*types.TxResult, error) {
	return s.write(ctx, contractService.ActionCancelTask, func() (*types.TxResult, error) {
		return s.service.CancelTask(ctx, id)
	})
}

func (s *SessionStore) DepositFunds(ctx context.Context, id uint64, amount string) (*types.TxResult, error) {
	return s.write(ctx, contractService.ActionDepositFunds, func() (*types.TxResult, error) {
		return s.service.DepositFunds(ctx, id, amount)
	})
}

func (s *SessionStore) ReleaseFunds(ctx context.Context, id uint64) (*types.TxResult, error) {
	return s.write(ctx, contractService.ActionReleaseFunds, func() (*types.TxResult, error) {
		return s.service.ReleaseFunds(ctx, id)
	})
}

func (s *SessionStore) StakeAsJuror(ctx context.Context, amount string) (*types.TxResult, error) {
	return s.write(ctx, contractService.ActionStakeAsJuror, func() (*types.TxResult, error) {
		return s.service.StakeAsJuror(ctx, amount)
	})
}

func (s *SessionStore) Vote(ctx context.Context, disputeId uint64, candidate string) (*types.TxResult, error) {
	return s.write(ctx, contractService.ActionVote, func() (*types.TxResult, error) {
		return s.service.Vote(ctx, disputeId, candidate)
	})
}

// InitializeContracts records one history entry per init transaction that
// reached the ledger.
func (s *SessionStore) InitializeContracts(ctx context.Context, params *contractService.InitParams) ([]*types.TxResult, error) {
	results, err := s.service.InitializeContracts(ctx, params)
	for _, r := range results {
		s.record(ctx, r.Action, r, nil)
	}
	if err != nil {
		s.record(ctx, "initializeContracts", nil, err)
	}
	return results, err
}
