package contractService

import (
	"testing"

	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name     string
		from, to types.TaskStatus
		expected bool
	}{
		{"open bidding", types.StatusCreated, types.StatusBidding, true},
		{"select winner", types.StatusBidding, types.StatusInProgress, true},
		{"request verification", types.StatusInProgress, types.StatusPendingEmployerConfirmation, true},
		{"confirm", types.StatusPendingEmployerConfirmation, types.StatusCompleted, true},
		{"reject goes to dispute", types.StatusPendingEmployerConfirmation, types.StatusDisputed, true},
		{"reject never returns to in progress", types.StatusPendingEmployerConfirmation, types.StatusInProgress, false},
		{"dispute resolution", types.StatusDisputed, types.StatusDisputeResolution, true},
		{"resolved completed", types.StatusDisputeResolution, types.StatusCompleted, true},
		{"resolved cancelled", types.StatusDisputeResolution, types.StatusCancelled, true},
		{"cancel created", types.StatusCreated, types.StatusCancelled, true},
		{"cancel bidding", types.StatusBidding, types.StatusCancelled, true},
		{"cancel in progress", types.StatusInProgress, types.StatusCancelled, false},
		{"remove non-terminal", types.StatusInProgress, types.StatusRemoved, true},
		{"remove terminal", types.StatusCompleted, types.StatusRemoved, false},
		{"terminal is final", types.StatusCancelled, types.StatusBidding, false},
		{"skip bidding", types.StatusCreated, types.StatusInProgress, false},
		{"unknown source", types.UnknownStatus(42), types.StatusBidding, false},
		{"unknown target", types.StatusCreated, types.UnknownStatus(42), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidTransition(tt.from, tt.to))
		})
	}
}

func TestValidPath(t *testing.T) {
	assert.True(t, ValidPath([]types.TaskStatus{
		types.StatusCreated, types.StatusCreated, types.StatusBidding,
		types.StatusInProgress, types.StatusPendingEmployerConfirmation, types.StatusCompleted,
	}))
	assert.True(t, ValidPath(nil))
	assert.False(t, ValidPath([]types.TaskStatus{
		types.StatusBidding, types.StatusCreated,
	}))
}

func TestDisputeWindowOpen(t *testing.T) {
	assert.True(t, disputeWindowOpen(&types.Task{}, 1000))
	assert.True(t, disputeWindowOpen(&types.Task{DisputeDeadline: 1000}, 1000))
	assert.False(t, disputeWindowOpen(&types.Task{DisputeDeadline: 999}, 1000))
}
