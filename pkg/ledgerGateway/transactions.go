package ledgerGateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

const (
	DefaultConfirmationTimeout = 30 * time.Second

	payloadTypeEntryFunction = "entry_function_payload"
	txTypePending            = "pending_transaction"
)

// EntryFunctionPayload is the JSON payload of a call to a module entry function.
type EntryFunctionPayload struct {
	Type          string   `json:"type"`
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

func NewEntryFunctionPayload(function string, args ...any) *EntryFunctionPayload {
	if args == nil {
		args = []any{}
	}
	return &EntryFunctionPayload{
		Type:          payloadTypeEntryFunction,
		Function:      function,
		TypeArguments: []string{},
		Arguments:     args,
	}
}

// UnsignedTransaction is the body of POST /transactions/encode_submission.
type UnsignedTransaction struct {
	Sender                  string                `json:"sender"`
	SequenceNumber          string                `json:"sequence_number"`
	MaxGasAmount            string                `json:"max_gas_amount"`
	GasUnitPrice            string                `json:"gas_unit_price"`
	ExpirationTimestampSecs string                `json:"expiration_timestamp_secs"`
	Payload                 *EntryFunctionPayload `json:"payload"`
}

type Signature struct {
	Type      string `json:"type"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

type SignedTransaction struct {
	UnsignedTransaction
	Signature *Signature `json:"signature"`
}

// Signer produces and relays a signed transaction for a payload. Wallets
// implement it; the gateway never holds keys.
type Signer interface {
	SignAndSubmit(ctx context.Context, payload *EntryFunctionPayload) (string, error)
}

// errPollThrottled means the read limiter had no token for this poll before
// the confirmation deadline. The transaction is treated as still pending.
var errPollThrottled = errors.New("confirmation poll throttled")

type transactionResponse struct {
	Type     string        `json:"type"`
	Hash     string        `json:"hash"`
	Version  string        `json:"version"`
	Success  bool          `json:"success"`
	VmStatus string        `json:"vm_status"`
	GasUsed  string        `json:"gas_used"`
	Events   []types.Event `json:"events"`
}

// Submit delegates signing to signer and returns the transaction hash. It is never retried.
func (g *LedgerGateway) Submit(ctx context.Context, payload *EntryFunctionPayload, signer Signer) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("payload cannot be nil")
	}
	if signer == nil {
		return "", taskErrors.New(taskErrors.KindWalletUnavailable, "submit", "no signer")
	}

	start := time.Now()
	hash, err := signer.SignAndSubmit(ctx, payload)
	if err != nil {
		g.metrics.observe("submit", "error", time.Since(start))
		g.logger.Sugar().Errorw("Failed to submit transaction",
			zap.String("function", payload.Function),
			zap.Error(err),
		)
		return "", err
	}
	g.metrics.observe("submit", "ok", time.Since(start))

	g.logger.Sugar().Infow("Submitted transaction",
		zap.String("function", payload.Function),
		zap.String("hash", hash),
	)
	return hash, nil
}

// EncodeSubmission returns the signing message for an unsigned transaction.
// It has no side effects and is retried like any read.
func (g *LedgerGateway) EncodeSubmission(ctx context.Context, tx *UnsignedTransaction) ([]byte, error) {
	var encoded string
	err := g.withRetry(ctx, "encodeSubmission", "encode_submission", func(ctx context.Context) error {
		return g.doRequest(ctx, "encode_submission", http.MethodPost, g.url("/transactions/encode_submission"), tx, &encoded)
	})
	if err != nil {
		return nil, err
	}
	msg, err := hexutil.Decode(encoded)
	if err != nil {
		return nil, taskErrors.Wrap(taskErrors.KindMalformedLedgerData, "encodeSubmission", err)
	}
	return msg, nil
}

// SubmitSigned relays a locally signed transaction. It is never retried.
func (g *LedgerGateway) SubmitSigned(ctx context.Context, tx *SignedTransaction) (string, error) {
	var pending transactionResponse
	if err := g.doRequest(ctx, "submit", http.MethodPost, g.url("/transactions"), tx, &pending); err != nil {
		return "", classify(ctx, "submitSigned", err)
	}
	if pending.Hash == "" {
		return "", taskErrors.New(taskErrors.KindMalformedLedgerData, "submitSigned", "node returned no transaction hash")
	}
	return pending.Hash, nil
}

// WaitForConfirmation polls the transaction until it is committed or timeout
// elapses. A transaction still pending at timeout is ConfirmationTimeout; one
// committed with success=false is ExecutionFailed and its receipt is returned
// alongside the error.
func (g *LedgerGateway) WaitForConfirmation(ctx context.Context, hash string, timeout time.Duration) (*types.Receipt, error) {
	if timeout <= 0 {
		timeout = DefaultConfirmationTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(g.config.PollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		tx, err := g.transactionByHash(waitCtx, hash)
		switch {
		case err == nil && tx.Type != txTypePending:
			receipt := &types.Receipt{
				Hash:     tx.Hash,
				Version:  tx.Version,
				Success:  tx.Success,
				VmStatus: tx.VmStatus,
				GasUsed:  tx.GasUsed,
				Events:   tx.Events,
			}
			if !tx.Success {
				return receipt, taskErrors.New(taskErrors.KindExecutionFailed, "waitForConfirmation",
					"transaction %s failed: %s", hash, tx.VmStatus)
			}
			g.logger.Sugar().Debugw("Transaction confirmed",
				zap.String("hash", hash),
				zap.String("version", tx.Version),
				zap.Int("attempt", attempt),
			)
			return receipt, nil
		case err == nil, errors.Is(err, ErrTransactionNotFound), errors.Is(err, errPollThrottled):
			// still pending
		case waitCtx.Err() != nil:
			// deadline or cancellation, handled below
		case isRetryableError(err):
			g.logger.Sugar().Warnw("Transient error while polling transaction",
				zap.String("hash", hash),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		default:
			return nil, classify(waitCtx, "waitForConfirmation", err)
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, fmt.Errorf("waitForConfirmation: %w", ctx.Err())
			}
			return nil, taskErrors.New(taskErrors.KindConfirmationTimeout, "waitForConfirmation",
				"transaction %s not committed after %s", hash, timeout)
		case <-ticker.C:
		}
	}
}

func (g *LedgerGateway) transactionByHash(ctx context.Context, hash string) (*transactionResponse, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			return nil, errPollThrottled
		}
	}
	var tx transactionResponse
	err := g.doRequest(ctx, "transaction_by_hash", http.MethodGet, g.url("/transactions/by_hash/"+hash), nil, &tx)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}
