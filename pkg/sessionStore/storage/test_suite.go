package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSuite defines a test suite that all history store implementations must pass
type TestSuite struct {
	NewStore func() (TxHistoryStore, error)
}

// Run executes all storage interface compliance tests
func (s *TestSuite) Run(t *testing.T) {
	t.Run("AppendAndList", s.testAppendAndList)
	t.Run("Cap", s.testCap)
	t.Run("AccountIsolation", s.testAccountIsolation)
	t.Run("Clear", s.testClear)
	t.Run("Validation", s.testValidation)
	t.Run("Lifecycle", s.testLifecycle)
	t.Run("ConcurrentAccess", s.testConcurrentAccess)
}

func newRecord(account, action string, taskId uint64) *TxRecord {
	return &TxRecord{
		Id:        uuid.NewString(),
		Account:   account,
		Action:    action,
		Hash:      fmt.Sprintf("0x%064x", taskId+1),
		TaskId:    &taskId,
		Status:    TxStatusConfirmed,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func (s *TestSuite) testAppendAndList(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	records, err := store.List(ctx, "0xa", 0)
	require.NoError(t, err)
	assert.Empty(t, records)

	first := newRecord("0xa", "createTask", 1)
	second := newRecord("0xa", "openBidding", 1)
	third := newRecord("0xa", "placeBid", 2)
	third.Simulated = true
	third.Status = TxStatusSimulated
	for _, r := range []*TxRecord{first, second, third} {
		require.NoError(t, store.Append(ctx, r))
	}

	records, err = store.List(ctx, "0xa", 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, third.Id, records[0].Id)
	assert.Equal(t, second.Id, records[1].Id)
	assert.Equal(t, first.Id, records[2].Id)
	assert.True(t, records[0].Simulated)
	assert.Equal(t, TxStatusSimulated, records[0].Status)
	assert.Equal(t, uint64(2), *records[0].TaskId)
	assert.True(t, third.CreatedAt.Equal(records[0].CreatedAt))

	limited, err := store.List(ctx, "0xa", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, third.Id, limited[0].Id)

	// returned records are copies
	*records[0].TaskId = 99
	again, err := store.List(ctx, "0xa", 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), *again[0].TaskId)
}

func (s *TestSuite) testCap(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	var ids []string
	for i := 0; i < MaxHistory+5; i++ {
		r := newRecord("0xcap", "stakeAsJuror", uint64(i))
		ids = append(ids, r.Id)
		require.NoError(t, store.Append(ctx, r))
	}

	records, err := store.List(ctx, "0xcap", 0)
	require.NoError(t, err)
	require.Len(t, records, MaxHistory)
	assert.Equal(t, ids[len(ids)-1], records[0].Id)
	assert.Equal(t, ids[5], records[MaxHistory-1].Id)
}

func (s *TestSuite) testAccountIsolation(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, newRecord("0xa", "createTask", 1)))
	require.NoError(t, store.Append(ctx, newRecord("0xab", "createTask", 2)))

	a, err := store.List(ctx, "0xa", 0)
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.Equal(t, "0xa", a[0].Account)

	ab, err := store.List(ctx, "0xab", 0)
	require.NoError(t, err)
	require.Len(t, ab, 1)
	assert.Equal(t, "0xab", ab[0].Account)
}

func (s *TestSuite) testClear(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, newRecord("0xa", "createTask", 1)))
	require.NoError(t, store.Append(ctx, newRecord("0xb", "createTask", 2)))
	require.NoError(t, store.Clear(ctx, "0xa"))

	a, err := store.List(ctx, "0xa", 0)
	require.NoError(t, err)
	assert.Empty(t, a)

	b, err := store.List(ctx, "0xb", 0)
	require.NoError(t, err)
	assert.Len(t, b, 1)

	// clearing an unknown account is not an error
	assert.NoError(t, store.Clear(ctx, "0xunknown"))
}

func (s *TestSuite) testValidation(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	assert.ErrorIs(t, store.Append(ctx, nil), ErrInvalidRecord)
	assert.ErrorIs(t, store.Append(ctx, &TxRecord{Id: "x"}), ErrInvalidRecord)
	assert.ErrorIs(t, store.Append(ctx, &TxRecord{Account: "0xa"}), ErrInvalidRecord)
}

func (s *TestSuite) testLifecycle(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Close())
	// second close is a no-op
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Append(ctx, newRecord("0xa", "createTask", 1)), ErrStoreClosed)
	_, err = store.List(ctx, "0xa", 0)
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Clear(ctx, "0xa"), ErrStoreClosed)
}

func (s *TestSuite) testConcurrentAccess(t *testing.T) {
	store, err := s.NewStore()
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	const workers, perWorker = 8, 10
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			account := fmt.Sprintf("0x%d", w%2)
			for i := 0; i < perWorker; i++ {
				assert.NoError(t, store.Append(ctx, newRecord(account, "placeBid", uint64(i))))
				_, err := store.List(ctx, account, 5)
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	for _, account := range []string{"0x0", "0x1"} {
		records, err := store.List(ctx, account, 0)
		require.NoError(t, err)
		assert.Len(t, records, workers/2*perWorker)
	}
}
