package contractService

import (
	"fmt"

	"github.com/dandelion-network/taskctl/pkg/ledgerGateway"
	"github.com/dandelion-network/taskctl/pkg/taskCodec"
)

const (
	moduleTaskFactory   = "TaskFactory"
	moduleBiddingSystem = "BiddingSystem"
	moduleEscrow        = "Escrow"
	moduleDisputeDAO    = "DisputeDAO"
)

// Action names recorded on every TxResult.
const (
	ActionCreateTask          = "createTask"
	ActionOpenBidding         = "openBidding"
	ActionPlaceBid            = "placeBid"
	ActionSelectWinner        = "selectWinner"
	ActionRequestVerification = "requestVerification"
	ActionConfirmCompletion   = "confirmCompletion"
	ActionRejectCompletion    = "rejectCompletion"
	ActionRaiseDispute        = "raiseDispute"
	ActionCancelTask          = "cancelTask"
	ActionDepositFunds        = "depositFunds"
	ActionReleaseFunds        = "releaseFunds"
	ActionStakeAsJuror        = "stakeAsJuror"
	ActionVote                = "vote"
	ActionInitTaskFactory     = "initTaskFactory"
	ActionInitBiddingSystem   = "initBiddingSystem"
	ActionInitEscrow          = "initEscrow"
	ActionInitDisputeDAO      = "initDisputeDAO"
)

// entry function names, keyed by module
const (
	fnCreateTask          = "create_task"
	fnOpenBidding         = "open_bidding"
	fnPlaceBid            = "place_bid"
	fnSelectWinner        = "select_winner"
	fnRequestVerification = "request_verification"
	fnCompleteTask        = "complete_task"
	fnRejectCompletion    = "reject_completion"
	fnRaiseDispute        = "raise_dispute"
	fnCancelTask          = "cancel_task"
	fnDepositFunds        = "deposit_funds"
	fnReleaseFunds        = "release_funds"
	fnStakeAsJuror        = "stake_as_juror"
	fnVote                = "vote"
	fnInit                = "init"

	fnViewGetTask     = "view_get_task"
	fnViewGetAllTasks = "view_get_all_tasks"
)

// payloads builds entry function payloads against one module address.
type payloads struct {
	address string
}

func (p payloads) function(module, name string) string {
	return fmt.Sprintf("%s::%s::%s", p.address, module, name)
}

func (p payloads) entry(module, name string, args ...any) *ledgerGateway.EntryFunctionPayload {
	return ledgerGateway.NewEntryFunctionPayload(p.function(module, name), args...)
}

func (p payloads) createTask(title, description []byte, rewardOcta string, deadline int64) *ledgerGateway.EntryFunctionPayload {
	return p.entry(moduleTaskFactory, fnCreateTask,
		taskCodec.EncodeBytesArg(title),
		taskCodec.EncodeBytesArg(description),
		rewardOcta,
		taskCodec.EncodeU64Arg(uint64(deadline)),
	)
}

func (p payloads) taskCall(module, name string, id uint64, extra ...any) *ledgerGateway.EntryFunctionPayload {
	args := append([]any{taskCodec.EncodeU64Arg(id)}, extra...)
	return p.entry(module, name, args...)
}
