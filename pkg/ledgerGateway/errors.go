package ledgerGateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dandelion-network/taskctl/pkg/taskErrors"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrNoFaucet            = errors.New("network has no faucet")
)

// LedgerError is an HTTP error response from the node. Aptos nodes return a
// body of the form {"message": ..., "error_code": ..., "vm_error_code": ...}.
type LedgerError struct {
	StatusCode  int    `json:"-"`
	Message     string `json:"message"`
	ErrorCode   string `json:"error_code"`
	VmErrorCode *int   `json:"vm_error_code,omitempty"`
}

func (e *LedgerError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("ledger error %d (%s): %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("ledger error %d: %s", e.StatusCode, e.Message)
}

func (e *LedgerError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

func handleHTTPError(statusCode int, responseData []byte) error {
	le := &LedgerError{}
	if err := json.Unmarshal(responseData, le); err != nil || le.Message == "" {
		le.Message = string(responseData)
	}
	le.StatusCode = statusCode
	return le
}

// classify attaches the failure kind for a read or submit that did not succeed.
// A failure caused by the caller's context is returned unkinded so that
// errors.Is(err, context.Canceled) keeps working.
func classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	if taskErrors.KindOf(err) != taskErrors.KindUnknown {
		return err
	}

	var le *LedgerError
	if errors.As(err, &le) {
		switch {
		case le.IsNotFound():
			return taskErrors.Wrap(taskErrors.KindNotFound, op, err)
		case le.StatusCode >= 500:
			return taskErrors.Wrap(taskErrors.KindNetworkTransient, op, err)
		default:
			return taskErrors.Wrap(taskErrors.KindExecutionFailed, op, err)
		}
	}
	if isRetryableError(err) {
		return taskErrors.Wrap(taskErrors.KindNetworkTransient, op, err)
	}
	return taskErrors.Wrap(taskErrors.KindUnknown, op, err)
}

// IsNotFound reports whether err is a 404 from the node.
func IsNotFound(err error) bool {
	var le *LedgerError
	return errors.As(err, &le) && le.IsNotFound()
}
