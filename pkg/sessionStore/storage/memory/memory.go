package memory

import (
	"context"
	"sync"

	"github.com/dandelion-network/taskctl/pkg/sessionStore/storage"
)

// InMemoryHistoryStore implements TxHistoryStore interface with in-memory storage
type InMemoryHistoryStore struct {
	mu       sync.RWMutex
	closed   bool
	accounts map[string][]*storage.TxRecord
}

// NewInMemoryHistoryStore creates a new in-memory history store
func NewInMemoryHistoryStore() *InMemoryHistoryStore {
	return &InMemoryHistoryStore{
		accounts: make(map[string][]*storage.TxRecord),
	}
}

// Append stores a copy of record, dropping the oldest entries past the cap
func (s *InMemoryHistoryStore) Append(ctx context.Context, record *storage.TxRecord) error {
	if err := storage.ValidateRecord(record); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrStoreClosed
	}

	records := append(s.accounts[record.Account], record.Clone())
	if over := len(records) - storage.MaxHistory; over > 0 {
		records = append([]*storage.TxRecord(nil), records[over:]...)
	}
	s.accounts[record.Account] = records
	return nil
}

// List returns copies of the newest records first
func (s *InMemoryHistoryStore) List(ctx context.Context, account string, limit int) ([]*storage.TxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrStoreClosed
	}

	records := s.accounts[account]
	n := len(records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*storage.TxRecord, 0, n)
	for i := len(records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, records[i].Clone())
	}
	return out, nil
}

func (s *InMemoryHistoryStore) Clear(ctx context.Context, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrStoreClosed
	}
	delete(s.accounts, account)
	return nil
}

// Close marks the store as closed
func (s *InMemoryHistoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.accounts = nil
	return nil
}
