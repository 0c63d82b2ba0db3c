package contractService

import (
	"context"
	"strings"
	"time"

	"github.com/dandelion-network/taskctl/pkg/contentStore"
	"github.com/dandelion-network/taskctl/pkg/ledgerGateway"
	"github.com/dandelion-network/taskctl/pkg/taskCodec"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/dandelion-network/taskctl/pkg/unitConverter"
	"go.uber.org/zap"
)

type CreateTaskRequest struct {
	Title string
	// Description is published to the content store when ContentRef is empty
	// and a writable store is configured; otherwise it is stored on the ledger.
	Description string
	ContentRef  string
	// Reward is a decimal amount in APT.
	Reward string
	// Deadline is a unix timestamp in seconds and must be in the future.
	Deadline int64

	// TaskType, BiddingPeriod (hours) and DevelopmentPeriod (days) are
	// carried in the published content document only.
	TaskType          uint8
	BiddingPeriod     uint64
	DevelopmentPeriod uint64
}

type InitParams struct {
	BidDeposit       string
	MinStake         string
	JurorsPerDispute uint64
	JurorCooldown    time.Duration
}

func DefaultInitParams() *InitParams {
	return &InitParams{
		BidDeposit:       "1",
		MinStake:         "1",
		JurorsPerDispute: 3,
		JurorCooldown:    24 * time.Hour,
	}
}

func (s *ContractService) CreateTask(ctx context.Context, req *CreateTaskRequest) (*types.TxResult, error) {
	const op = ActionCreateTask
	if req == nil {
		return nil, taskErrors.New(taskErrors.KindInvalidInput, op, "request cannot be nil")
	}
	if req.Deadline <= s.now() {
		return nil, taskErrors.New(taskErrors.KindInvalidAmount, op, "deadline must be in the future")
	}
	rewardOcta, err := positiveOcta(op, req.Reward)
	if err != nil {
		return nil, err
	}
	contentRef := req.ContentRef
	if contentRef != "" {
		ref, err := contentStore.ValidateRef(contentRef)
		if err != nil {
			return nil, taskErrors.Wrap(taskErrors.KindInvalidInput, op, err)
		}
		contentRef = ref
	}

	caller, err := s.caller(ctx, op)
	if err != nil {
		return nil, err
	}

	description := s.publishDescription(ctx, req, contentRef)
	payload := s.calls().createTask(taskCodec.EncodeText(req.Title), taskCodec.EncodeText(description), rewardOcta, req.Deadline)

	s.logger.Sugar().Infow("Creating task",
		zap.String("title", req.Title),
		zap.String("rewardOcta", rewardOcta),
		zap.Int64("deadline", req.Deadline),
		zap.String("mode", string(s.Mode())),
	)

	result, err := s.execute(ctx, caller, op, nil, payload)
	if err != nil {
		return result, err
	}
	s.cache.invalidateList()

	if result.TaskId == nil {
		result.TaskId = s.resolveNewTaskId(ctx, result.Receipt)
	}
	return result, nil
}

// publishDescription returns the on-ledger description: the content
// reference when there is one, else the plain text. req is not modified.
func (s *ContractService) publishDescription(ctx context.Context, req *CreateTaskRequest, contentRef string) string {
	if contentRef != "" {
		return contentRef
	}
	if req.Description == "" || s.Mode() == ModeSimulation {
		return req.Description
	}
	ref, err := s.content.Put(ctx, &types.ContentDocument{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		s.logger.Sugar().Debugw("Content store unavailable, storing description on ledger", zap.Error(err))
		return req.Description
	}
	return ref
}

// resolveNewTaskId reads the id from a task creation event, falling back to
// the newest task in a fresh listing.
func (s *ContractService) resolveNewTaskId(ctx context.Context, receipt *types.Receipt) *uint64 {
	if receipt != nil {
		for _, e := range receipt.Events {
			if !strings.Contains(e.Type, "TaskCreated") && !strings.Contains(e.Type, "TaskEvent") {
				continue
			}
			if id, ok := eventTaskId(e); ok {
				return &id
			}
		}
	}

	tasks, err := s.GetAllTasks(ctx)
	if err != nil || len(tasks) == 0 {
		s.logger.Sugar().Warnw("Could not determine new task id", zap.Error(err))
		return nil
	}
	newest := tasks[0].Id
	for _, t := range tasks[1:] {
		if t.Id > newest {
			newest = t.Id
		}
	}
	return &newest
}

func (s *ContractService) OpenBidding(ctx context.Context, id uint64) (*types.TxResult, error) {
	return s.taskOp(ctx, ActionOpenBidding, id,
		func(t *types.Task, caller string) error {
			if caller != t.Creator {
				return taskErrors.New(taskErrors.KindUnauthorized, ActionOpenBidding, "only the creator may open bidding")
			}
			if t.Status != types.StatusCreated {
				return taskErrors.New(taskErrors.KindInvalidState, ActionOpenBidding, "task %d is %s, not Created", id, t.Status)
			}
			return nil
		},
		func(t *types.Task) *ledgerGateway.EntryFunctionPayload {
			return s.calls().taskCall(moduleTaskFactory, fnOpenBidding, id)
		},
	)
}

func (s *ContractService) PlaceBid(ctx context.Context, id uint64, deposit string) (*types.TxResult, error) {
	const op = ActionPlaceBid
	depositOcta, err := positiveOcta(op, deposit)
	if err != nil {
		return nil, err
	}
	return s.taskOp(ctx, op, id,
		func(t *types.Task, caller string) error {
			switch {
			case t.Status != types.StatusBidding:
				return taskErrors.New(taskErrors.KindInvalidBidAttempt, op, "task %d is not open for bidding", id)
			case caller == t.Creator:
				return taskErrors.New(taskErrors.KindInvalidBidAttempt, op, "own task")
			case t.HasParticipant(caller):
				return taskErrors.New(taskErrors.KindInvalidBidAttempt, op, "already bid")
			case t.Deadline > 0 && s.now() > t.Deadline:
				return taskErrors.New(taskErrors.KindInvalidBidAttempt, op, "bidding window closed")
			}
			return nil
		},
		func(t *types.Task) *ledgerGateway.EntryFunctionPayload {
			return s.calls().taskCall(moduleBiddingSystem, fnPlaceBid, id, depositOcta)
		},
	)
}

func (s *ContractService) SelectWinner(ctx context.Context, id uint64, winner string) (*types.TxResult, error) {
	const op = ActionSelectWinner
	winner, err := taskCodec.NormalizeAddress(winner)
	if err != nil {
		return nil, taskErrors.Wrap(taskErrors.KindInvalidWinner, op, err)
	}
	return s.taskOp(ctx, op, id,
		func(t *types.Task, caller string) error {
			switch {
			case caller != t.Creator:
				return taskErrors.New(taskErrors.KindUnauthorized, op, "only the creator may select a winner")
			case t.Status != types.StatusBidding:
				return taskErrors.New(taskErrors.KindInvalidState, op, "task %d is %s, not Bidding", id, t.Status)
			case !t.HasParticipant(winner):
				return taskErrors.New(taskErrors.KindInvalidWinner, op, "%s did not bid on task %d", taskCodec.ShortAddress(winner), id)
			}
			return nil
		},
		func(t *types.Task) *ledgerGateway.EntryFunctionPayload {
			idx := uint64(t.ParticipantIndex(winner))
			return s.calls().taskCall(moduleBiddingSystem, fnSelectWinner, id, taskCodec.EncodeU64Arg(idx))
		},
	)
}

func (s *ContractService) RequestVerification(ctx context.Context, id uint64) (*types.TxResult, error) {
	const op = ActionRequestVerification
	return s.taskOp(ctx, op, id,
		func(t *types.Task, caller string) error {
			if t.Winner == "" || caller != t.Winner {
				return taskErrors.New(taskErrors.KindUnauthorized, op, "only the selected winner may request verification")
			}
			if t.Status != types.StatusInProgress {
				return taskErrors.New(taskErrors.KindInvalidState, op, "task %d is %s, not InProgress", id, t.Status)
			}
			return nil
		},
		func(t *types.Task) *ledgerGateway.EntryFunctionPayload {
			return s.calls().taskCall(moduleTaskFactory, fnRequestVerification, id)
		},
	)
}

// ConfirmCompletion approves or rejects delivered work. A rejection moves the
// task to Disputed.
func (s *ContractService) ConfirmCompletion(ctx context.Context, id uint64, approve bool) (*types.TxResult, error) {
	op, fn := ActionConfirmCompletion, fnCompleteTask
	if !approve {
		op, fn = ActionRejectCompletion, fnRejectCompletion
	}
	return s.taskOp(ctx, op, id,
		func(t *types.Task, caller string) error {
			if caller != t.Creator {
				return taskErrors.New(taskErrors.KindUnauthorized, op, "only the creator may confirm completion")
			}
			if t.Status != types.StatusPendingEmployerConfirmation {
				return taskErrors.New(taskErrors.KindInvalidState, op, "task %d is %s, not PendingEmployerConfirmation", id, t.Status)
			}
			return nil
		},
		func(t *types.Task) *ledgerGateway.EntryFunctionPayload {
			return s.calls().taskCall(moduleTaskFactory, fn, id)
		},
	)
}

func (s *ContractService) RaiseDispute(ctx context.Context, id uint64) (*types.TxResult, error) {
	const op = ActionRaiseDispute
	return s.taskOp(ctx, op, id,
		func(t *types.Task, caller string) error {
			if caller != t.Creator && (t.Winner == "" || caller != t.Winner) {
				return taskErrors.New(taskErrors.KindUnauthorized, op, "only the creator or the winner may raise a dispute")
			}
			if !ValidTransition(t.Status, types.StatusDisputed) {
				return taskErrors.New(taskErrors.KindInvalidState, op, "task %d cannot be disputed while %s", id, t.Status)
			}
			if !disputeWindowOpen(t, s.now()) {
				return taskErrors.New(taskErrors.KindDisputeWindowClosed, op, "dispute window for task %d closed at %d", id, t.DisputeDeadline)
			}
			return nil
		},
		func(t *types.Task) *ledgerGateway.EntryFunctionPayload {
			return s.calls().taskCall(moduleDisputeDAO, fnRaiseDispute, id)
		},
	)
}

func (s *ContractService) CancelTask(ctx context.Context, id uint64) (*types.TxResult, error) {
	const op = ActionCancelTask
	return s.taskOp(ctx, op, id,
		func(t *types.Task, caller string) error {
			switch {
			case caller != t.Creator:
				return taskErrors.New(taskErrors.KindUnauthorized, op, "only the creator may cancel")
			case t.Locked:
				return taskErrors.New(taskErrors.KindTaskLocked, op, "task %d funds are locked", id)
			case t.Status != types.StatusCreated && t.Status != types.StatusBidding:
				return taskErrors.New(taskErrors.KindInvalidState, op, "task %d is %s and can no longer be cancelled", id, t.Status)
			}
			return nil
		},
		func(t *types.Task) *ledgerGateway.EntryFunctionPayload {
			return s.calls().taskCall(moduleTaskFactory, fnCancelTask, id)
		},
	)
}

func (s *ContractService) DepositFunds(ctx context.Context, id uint64, amount string) (*types.TxResult, error) {
	const op = ActionDepositFunds
	octa, err := positiveOcta(op, amount)
	if err != nil {
		return nil, err
	}
	return s.taskOp(ctx, op, id,
		func(t *types.Task, caller string) error {
			if caller != t.Creator {
				return taskErrors.New(taskErrors.KindUnauthorized, op, "only the creator may deposit funds")
			}
			if t.Status.IsTerminal() || t.Status.IsUnknown() {
				return taskErrors.New(taskErrors.KindInvalidState, op, "task %d is %s", id, t.Status)
			}
			return nil
		},
		func(t *types.Task) *ledgerGateway.EntryFunctionPayload {
			return s.calls().taskCall(moduleEscrow, fnDepositFunds, id, octa)
		},
	)
}

func (s *ContractService) ReleaseFunds(ctx context.Context, id uint64) (*types.TxResult, error) {
	const op = ActionReleaseFunds
	return s.taskOp(ctx, op, id,
		func(t *types.Task, caller string) error {
			if caller != t.Creator {
				return taskErrors.New(taskErrors.KindUnauthorized, op, "only the creator may release funds")
			}
			if t.Winner == "" {
				return taskErrors.New(taskErrors.KindInvalidWinner, op, "task %d has no winner", id)
			}
			return nil
		},
		func(t *types.Task) *ledgerGateway.EntryFunctionPayload {
			return s.calls().taskCall(moduleEscrow, fnReleaseFunds, id, t.Winner)
		},
	)
}

func (s *ContractService) StakeAsJuror(ctx context.Context, amount string) (*types.TxResult, error) {
	const op = ActionStakeAsJuror
	octa, err := positiveOcta(op, amount)
	if err != nil {
		return nil, err
	}
	caller, err := s.caller(ctx, op)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, caller, op, nil, s.calls().entry(moduleDisputeDAO, fnStakeAsJuror, octa))
}

func (s *ContractService) Vote(ctx context.Context, disputeId uint64, candidate string) (*types.TxResult, error) {
	const op = ActionVote
	candidate, err := taskCodec.NormalizeAddress(candidate)
	if err != nil {
		return nil, taskErrors.Wrap(taskErrors.KindInvalidInput, op, err)
	}
	caller, err := s.caller(ctx, op)
	if err != nil {
		return nil, err
	}
	payload := s.calls().entry(moduleDisputeDAO, fnVote, taskCodec.EncodeU64Arg(disputeId), candidate)
	return s.execute(ctx, caller, op, nil, payload)
}

// InitializeContracts runs the one-time init entry function of every module.
// Transactions are sent in order and the first failure stops the sequence.
func (s *ContractService) InitializeContracts(ctx context.Context, params *InitParams) ([]*types.TxResult, error) {
	const op = "initializeContracts"
	if params == nil {
		params = DefaultInitParams()
	}
	deposit, err := positiveOcta(op, params.BidDeposit)
	if err != nil {
		return nil, err
	}
	minStake, err := positiveOcta(op, params.MinStake)
	if err != nil {
		return nil, err
	}
	caller, err := s.caller(ctx, op)
	if err != nil {
		return nil, err
	}
	if caller != s.config.ModuleAddress {
		return nil, taskErrors.New(taskErrors.KindUnauthorized, op, "only the module owner may initialize contracts")
	}

	steps := []struct {
		action  string
		payload *ledgerGateway.EntryFunctionPayload
	}{
		{ActionInitTaskFactory, s.calls().entry(moduleTaskFactory, fnInit)},
		{ActionInitBiddingSystem, s.calls().entry(moduleBiddingSystem, fnInit, deposit)},
		{ActionInitEscrow, s.calls().entry(moduleEscrow, fnInit)},
		{ActionInitDisputeDAO, s.calls().entry(moduleDisputeDAO, fnInit,
			minStake,
			taskCodec.EncodeU64Arg(params.JurorsPerDispute),
			taskCodec.EncodeU64Arg(uint64(params.JurorCooldown.Seconds())),
		)},
	}

	results := make([]*types.TxResult, 0, len(steps))
	for _, step := range steps {
		result, err := s.execute(ctx, caller, step.action, nil, step.payload)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// taskOp runs one mutation of task id under its lock: load, check the
// precondition, submit, invalidate. A failed check never reaches the wallet.
func (s *ContractService) taskOp(
	ctx context.Context,
	op string,
	id uint64,
	check func(t *types.Task, caller string) error,
	build func(t *types.Task) *ledgerGateway.EntryFunctionPayload,
) (*types.TxResult, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	caller, err := s.caller(ctx, op)
	if err != nil {
		return nil, err
	}
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, taskErrors.WithOp(op, err)
	}
	if err := check(task, caller); err != nil {
		s.logger.Sugar().Debugw("Precondition failed",
			zap.String("action", op),
			zap.Uint64("taskId", id),
			zap.Error(err),
		)
		return nil, err
	}
	return s.execute(ctx, caller, op, &id, build(task))
}

func positiveOcta(op, amount string) (string, error) {
	octa, err := unitConverter.ToLedgerUnits(amount)
	if err != nil {
		return "", taskErrors.WithOp(op, err)
	}
	if !unitConverter.IsPositive(octa) {
		return "", taskErrors.New(taskErrors.KindInvalidAmount, op, "amount must be positive")
	}
	if _, err := unitConverter.ToUint64(octa); err != nil {
		return "", taskErrors.WithOp(op, err)
	}
	return octa, nil
}
