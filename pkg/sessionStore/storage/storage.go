package storage

import (
	"context"
	"time"
)

// MaxHistory is the number of records kept per account. Older records are
// dropped on append.
const MaxHistory = 100

// TxHistoryStore persists the transactions submitted during a session, keyed
// by the account that signed them.
type TxHistoryStore interface {
	Append(ctx context.Context, record *TxRecord) error
	// List returns up to limit records for account, newest first. A limit of
	// zero or less returns every record.
	List(ctx context.Context, account string, limit int) ([]*TxRecord, error)
	Clear(ctx context.Context, account string) error

	Close() error
}

type TxStatus string

const (
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
	// TxStatusPending is recorded when confirmation timed out; the
	// transaction may still commit.
	TxStatusPending   TxStatus = "pending"
	TxStatusSimulated TxStatus = "simulated"
)

type TxRecord struct {
	Id        string    `json:"id"`
	Account   string    `json:"account"`
	Action    string    `json:"action"`
	Hash      string    `json:"hash,omitempty"`
	TaskId    *uint64   `json:"taskId,omitempty"`
	Simulated bool      `json:"simulated"`
	Status    TxStatus  `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a copy that shares no memory with r.
func (r *TxRecord) Clone() *TxRecord {
	c := *r
	if r.TaskId != nil {
		id := *r.TaskId
		c.TaskId = &id
	}
	return &c
}
