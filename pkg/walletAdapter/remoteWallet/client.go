package remoteWallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"go.uber.org/zap"
)

// call performs one JSON-RPC request against the bridge and decodes its result.
func (w *RemoteWallet) call(ctx context.Context, method string, params any, result any) error {
	id := atomic.AddInt64(&w.requestID, 1)

	request := JSONRPCRequest{
		Jsonrpc: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	}
	requestData, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON-RPC request: %w", err)
	}

	url := strings.TrimSuffix(w.config.BridgeURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	w.logger.Sugar().Debugw("Making wallet bridge request",
		zap.String("method", method),
		zap.Int64("id", id),
	)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", method, ctx.Err())
		}
		return taskErrors.Wrap(taskErrors.KindNetworkTransient, method, err)
	}
	defer resp.Body.Close()

	responseData, err := io.ReadAll(resp.Body)
	if err != nil {
		return taskErrors.Wrap(taskErrors.KindNetworkTransient, method, err)
	}

	if resp.StatusCode >= 400 {
		return handleHTTPError(method, resp.StatusCode, responseData)
	}

	var rpcResponse JSONRPCResponse
	if err := json.Unmarshal(responseData, &rpcResponse); err != nil {
		return taskErrors.Wrap(taskErrors.KindMalformedLedgerData, method, err)
	}
	if rpcResponse.Error != nil {
		return rpcError(method, rpcResponse.Error)
	}

	if result != nil && len(rpcResponse.Result) > 0 {
		if err := json.Unmarshal(rpcResponse.Result, result); err != nil {
			return taskErrors.Wrap(taskErrors.KindMalformedLedgerData, method, err)
		}
	}
	return nil
}

func rpcError(method string, e *JSONRPCError) error {
	we := &WalletError{Code: e.Code, Message: e.Message}
	if e.Code == CodeUserRejected {
		return taskErrors.Wrap(taskErrors.KindUserRejected, method, we)
	}
	return taskErrors.Wrap(taskErrors.KindUnknown, method, we)
}

func handleHTTPError(method string, statusCode int, responseData []byte) error {
	we := &WalletError{
		Code:    statusCode,
		Message: fmt.Sprintf("HTTP error %d: %s", statusCode, string(responseData)),
	}
	if statusCode >= 500 {
		return taskErrors.Wrap(taskErrors.KindNetworkTransient, method, we)
	}
	return taskErrors.Wrap(taskErrors.KindUnknown, method, we)
}

// IsWalletError reports whether err carries a bridge error with the given code.
func IsWalletError(err error, code int) bool {
	var we *WalletError
	return errors.As(err, &we) && we.Code == code
}
