package contractService

import (
	"github.com/dandelion-network/taskctl/pkg/types"
)

// transitions is the task status graph. Removed is handled separately since
// it is reachable from every non-terminal state.
var transitions = map[types.TaskStatus][]types.TaskStatus{
	types.StatusCreated: {
		types.StatusBidding,
		types.StatusCancelled,
	},
	types.StatusBidding: {
		types.StatusInProgress,
		types.StatusDisputed,
		types.StatusCancelled,
	},
	types.StatusInProgress: {
		types.StatusPendingEmployerConfirmation,
		types.StatusDisputed,
	},
	types.StatusPendingEmployerConfirmation: {
		types.StatusCompleted,
		types.StatusDisputed,
	},
	types.StatusDisputed: {
		types.StatusDisputeResolution,
	},
	types.StatusDisputeResolution: {
		types.StatusCompleted,
		types.StatusCancelled,
	},
}

// ValidTransition reports whether a task may move from one status to another.
// Unknown statuses have no valid edges in either direction.
func ValidTransition(from, to types.TaskStatus) bool {
	if from.IsUnknown() || to.IsUnknown() || from.IsTerminal() {
		return false
	}
	if to == types.StatusRemoved {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidPath reports whether an observed status sequence only follows valid
// edges. Repeated observations of the same status are allowed.
func ValidPath(path []types.TaskStatus) bool {
	for i := 1; i < len(path); i++ {
		if path[i] == path[i-1] {
			continue
		}
		if !ValidTransition(path[i-1], path[i]) {
			return false
		}
	}
	return true
}

// disputeWindowOpen treats a zero deadline as "not declared yet" and leaves
// the decision to the ledger.
func disputeWindowOpen(t *types.Task, now int64) bool {
	return t.DisputeDeadline == 0 || now <= t.DisputeDeadline
}
