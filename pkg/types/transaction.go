package types

import "encoding/json"

// TxResult is returned by every write operation. Simulated results never
// touched the ledger and carry no receipt.
type TxResult struct {
	Action    string   `json:"action"`
	Hash      string   `json:"hash"`
	TaskId    *uint64  `json:"taskId,omitempty"`
	Receipt   *Receipt `json:"receipt,omitempty"`
	Simulated bool     `json:"simulated"`
}

type Receipt struct {
	Hash     string  `json:"hash"`
	Version  string  `json:"version"`
	Success  bool    `json:"success"`
	VmStatus string  `json:"vm_status"`
	GasUsed  string  `json:"gas_used"`
	Events   []Event `json:"events"`
}

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Account struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey,omitempty"`
}

type Network struct {
	Name    string `json:"name"`
	ChainId uint8  `json:"chainId"`
	NodeUrl string `json:"url,omitempty"`
}

type LedgerStatus struct {
	ChainId         uint8  `json:"chainId"`
	Epoch           string `json:"epoch"`
	LedgerVersion   string `json:"ledgerVersion"`
	LedgerTimestamp string `json:"ledgerTimestamp"`
}
