package storage

import "errors"

var (
	// ErrStoreClosed is returned when attempting to use a closed storage instance
	ErrStoreClosed = errors.New("storage is closed")

	// ErrInvalidRecord is returned for a nil record or one without an id or account
	ErrInvalidRecord = errors.New("invalid transaction record")
)

// ValidateRecord checks the fields every store requires.
func ValidateRecord(r *TxRecord) error {
	if r == nil || r.Id == "" || r.Account == "" {
		return ErrInvalidRecord
	}
	return nil
}
