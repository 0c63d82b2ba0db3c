package remoteWallet

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC method names exposed by the wallet bridge.
const (
	MethodConnect       = "aptos_connect"
	MethodAccount       = "aptos_account"
	MethodNetwork       = "aptos_network"
	MethodSignAndSubmit = "aptos_signAndSubmitTransaction"
	MethodDisconnect    = "aptos_disconnect"
)

// CodeUserRejected is the bridge error code returned when the holder declines a request.
const CodeUserRejected = 4001

type JSONRPCRequest struct {
	Jsonrpc string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int64  `json:"id"`
}

type JSONRPCResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
	ID      int64           `json:"id"`
}

type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// WalletError is a bridge-reported failure other than a user rejection.
type WalletError struct {
	Code    int
	Message string
}

func (e *WalletError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

// accountResult is the result of aptos_connect and aptos_account.
type accountResult struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
}

// networkResult is the result of aptos_network.
type networkResult struct {
	Name    string `json:"name"`
	ChainId uint8  `json:"chainId"`
	Url     string `json:"url"`
}

type connectResult struct {
	Account accountResult `json:"account"`
	Network networkResult `json:"network"`
}

type signAndSubmitResult struct {
	Hash string `json:"hash"`
}
