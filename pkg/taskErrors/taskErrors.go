// Package taskErrors defines the failure kinds surfaced by the task client.
// Every error returned across a package boundary carries exactly one Kind;
// callers match on it with errors.Is against the sentinels below.
package taskErrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindWalletUnavailable
	KindUserRejected
	KindUnauthorized
	KindInvalidBidAttempt
	KindInvalidWinner
	KindTaskLocked
	KindDisputeWindowClosed
	KindInvalidAmount
	KindMalformedLedgerData
	KindConfirmationTimeout
	KindExecutionFailed
	KindNetworkTransient
	KindInvalidState
	KindNotFound
	KindInvalidInput
)

var kindNames = map[Kind]string{
	KindUnknown:             "Unknown",
	KindWalletUnavailable:   "WalletUnavailable",
	KindUserRejected:        "UserRejected",
	KindUnauthorized:        "Unauthorized",
	KindInvalidBidAttempt:   "InvalidBidAttempt",
	KindInvalidWinner:       "InvalidWinner",
	KindTaskLocked:          "TaskLocked",
	KindDisputeWindowClosed: "DisputeWindowClosed",
	KindInvalidAmount:       "InvalidAmount",
	KindMalformedLedgerData: "MalformedLedgerData",
	KindConfirmationTimeout: "ConfirmationTimeout",
	KindExecutionFailed:     "ExecutionFailed",
	KindNetworkTransient:    "NetworkTransient",
	KindInvalidState:        "InvalidState",
	KindNotFound:            "NotFound",
	KindInvalidInput:        "InvalidInput",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var (
	ErrWalletUnavailable   = &Error{Kind: KindWalletUnavailable}
	ErrUserRejected        = &Error{Kind: KindUserRejected}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrInvalidBidAttempt   = &Error{Kind: KindInvalidBidAttempt}
	ErrInvalidWinner       = &Error{Kind: KindInvalidWinner}
	ErrTaskLocked          = &Error{Kind: KindTaskLocked}
	ErrDisputeWindowClosed = &Error{Kind: KindDisputeWindowClosed}
	ErrInvalidAmount       = &Error{Kind: KindInvalidAmount}
	ErrMalformedLedgerData = &Error{Kind: KindMalformedLedgerData}
	ErrConfirmationTimeout = &Error{Kind: KindConfirmationTimeout}
	ErrExecutionFailed     = &Error{Kind: KindExecutionFailed}
	ErrNetworkTransient    = &Error{Kind: KindNetworkTransient}

	// ErrInvalidState is a state-machine precondition that has no more specific kind,
	// e.g. opening bidding on a task that is already in progress.
	ErrInvalidState = &Error{Kind: KindInvalidState}
	ErrNotFound     = &Error{Kind: KindNotFound}

	// ErrInvalidInput is a caller-supplied argument that fails validation before
	// any ledger access, e.g. a malformed address or content reference.
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
)

// Error is a kinded failure. Op names the operation that failed ("placeBid"),
// Msg is a short human reason ("already bid").
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	var inner *Error
	if !errors.As(e.Err, &inner) || inner.Kind != e.Kind {
		b.WriteString(e.Kind.String())
		if e.Msg != "" || e.Err != nil {
			b.WriteString(": ")
		}
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
		if e.Err != nil {
			b.WriteString(": ")
		}
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality, so any *Error matches the sentinel of its kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithOp copies a kinded error under a new operation name, preserving its kind.
// Errors without a kind are wrapped as KindUnknown. Cancellation and deadline
// errors stay unkinded so callers can tell them apart from failures.
func WithOp(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		var te *Error
		if !errors.As(err, &te) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	var te *Error
	if errors.As(err, &te) {
		return &Error{Kind: te.Kind, Op: op, Err: err}
	}
	return &Error{Kind: KindUnknown, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}
