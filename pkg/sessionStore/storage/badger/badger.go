package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dandelion-network/taskctl/pkg/sessionStore/storage"
	badgerv3 "github.com/dgraph-io/badger/v3"
)

const (
	prefixTx    = "tx:%s:"      // account
	keyTx       = "tx:%s:%020d" // account, sequence
	keySequence = "seq:tx"
)

type Config struct {
	Dir string
	// InMemory keeps the database off disk; Dir is ignored.
	InMemory          bool
	ValueLogFileSize  int
	NumVersionsToKeep int
}

// BadgerHistoryStore implements the TxHistoryStore interface using BadgerDB.
// Keys are ordered by a persistent sequence so history order survives restarts.
type BadgerHistoryStore struct {
	db       *badgerv3.DB
	seq      *badgerv3.Sequence
	mu       sync.RWMutex
	writeMu  sync.Mutex
	closed   bool
	closeCh  chan struct{}
	gcTicker *time.Ticker
}

// NewBadgerHistoryStore opens (or creates) the database described by cfg
func NewBadgerHistoryStore(cfg *Config) (*BadgerHistoryStore, error) {
	if cfg == nil {
		return nil, errors.New("badger config is nil")
	}

	opts := badgerv3.DefaultOptions(cfg.Dir)
	opts.Logger = nil
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
		opts.Dir = ""
		opts.ValueDir = ""
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = int64(cfg.ValueLogFileSize)
	}
	if cfg.NumVersionsToKeep > 0 {
		opts.NumVersionsToKeep = cfg.NumVersionsToKeep
	}

	db, err := badgerv3.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	seq, err := db.GetSequence([]byte(keySequence), 100)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open history sequence: %w", err)
	}

	s := &BadgerHistoryStore{
		db:      db,
		seq:     seq,
		closeCh: make(chan struct{}),
	}

	if !cfg.InMemory {
		s.gcTicker = time.NewTicker(5 * time.Minute)
		go s.runGC()
	}
	return s, nil
}

func (s *BadgerHistoryStore) runGC() {
	for {
		select {
		case <-s.gcTicker.C:
			s.mu.RLock()
			if s.closed {
				s.mu.RUnlock()
				return
			}
			s.mu.RUnlock()
			_ = s.db.RunValueLogGC(0.5)
		case <-s.closeCh:
			return
		}
	}
}

func (s *BadgerHistoryStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Append writes record and trims the account to the newest MaxHistory entries
func (s *BadgerHistoryStore) Append(ctx context.Context, record *storage.TxRecord) error {
	if err := storage.ValidateRecord(record); err != nil {
		return err
	}
	if s.isClosed() {
		return storage.ErrStoreClosed
	}

	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal tx record: %w", err)
	}

	// appends are serialized so concurrent trims never conflict
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to allocate history sequence: %w", err)
	}
	key := []byte(fmt.Sprintf(keyTx, record.Account, n))

	err = s.db.Update(func(txn *badgerv3.Txn) error {
		existing, err := accountKeys(txn, record.Account)
		if err != nil {
			return err
		}
		if over := len(existing) + 1 - storage.MaxHistory; over > 0 {
			for _, k := range existing[:over] {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
		}
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("failed to append tx record: %w", err)
	}
	return nil
}

// List returns the newest records first
func (s *BadgerHistoryStore) List(ctx context.Context, account string, limit int) ([]*storage.TxRecord, error) {
	if s.isClosed() {
		return nil, storage.ErrStoreClosed
	}

	records := []*storage.TxRecord{}
	prefix := []byte(fmt.Sprintf(prefixTx, account))

	err := s.db.View(func(txn *badgerv3.Txn) error {
		opts := badgerv3.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(append([]byte{}, prefix...), 0xff)); it.ValidForPrefix(prefix); it.Next() {
			var r storage.TxRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				continue
			}
			records = append(records, &r)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tx records: %w", err)
	}
	return records, nil
}

func (s *BadgerHistoryStore) Clear(ctx context.Context, account string) error {
	if s.isClosed() {
		return storage.ErrStoreClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.db.Update(func(txn *badgerv3.Txn) error {
		keys, err := accountKeys(txn, account)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear tx history: %w", err)
	}
	return nil
}

// Close shuts down the store
func (s *BadgerHistoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.closeCh)
	if s.gcTicker != nil {
		s.gcTicker.Stop()
	}

	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return fmt.Errorf("failed to release history sequence: %w", err)
	}
	return s.db.Close()
}

// accountKeys returns the keys of account in sequence order, oldest first.
func accountKeys(txn *badgerv3.Txn, account string) ([][]byte, error) {
	opts := badgerv3.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(fmt.Sprintf(prefixTx, account))
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}
