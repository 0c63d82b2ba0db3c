package ledgerGateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/types"
	"go.uber.org/zap"
)

// ViewRequest is the body of POST /view.
type ViewRequest struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// Resource is a typed record published under an account.
type Resource struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type AccountInfo struct {
	SequenceNumber    string `json:"sequence_number"`
	AuthenticationKey string `json:"authentication_key"`
}

type ledgerInfoResponse struct {
	ChainId         uint8  `json:"chain_id"`
	Epoch           string `json:"epoch"`
	LedgerVersion   string `json:"ledger_version"`
	LedgerTimestamp string `json:"ledger_timestamp"`
}

// View calls a read-only module function and returns its return values.
func (g *LedgerGateway) View(ctx context.Context, function string, typeArgs []string, args []any) ([]json.RawMessage, error) {
	if typeArgs == nil {
		typeArgs = []string{}
	}
	if args == nil {
		args = []any{}
	}
	body := &ViewRequest{Function: function, TypeArguments: typeArgs, Arguments: args}

	var result []json.RawMessage
	err := g.withRetry(ctx, "view", "view", func(ctx context.Context) error {
		result = nil
		return g.doRequest(ctx, "view", http.MethodPost, g.url("/view"), body, &result)
	})
	if err != nil {
		g.logger.Sugar().Debugw("View call failed", zap.String("function", function), zap.Error(err))
		return nil, err
	}
	if result == nil {
		return nil, taskErrors.New(taskErrors.KindMalformedLedgerData, "view", "%s returned no values", function)
	}
	return result, nil
}

func (g *LedgerGateway) AccountResources(ctx context.Context, address string) ([]Resource, error) {
	var resources []Resource
	err := g.withRetry(ctx, "accountResources", "account_resources", func(ctx context.Context) error {
		resources = nil
		return g.doRequest(ctx, "account_resources", http.MethodGet,
			g.url("/accounts/"+address+"/resources"), nil, &resources)
	})
	if err != nil {
		return nil, err
	}
	return resources, nil
}

// AccountResource fetches one resource; a missing resource or account is kind NotFound.
func (g *LedgerGateway) AccountResource(ctx context.Context, address, resourceType string) (*Resource, error) {
	var resource Resource
	err := g.withRetry(ctx, "accountResource", "account_resource", func(ctx context.Context) error {
		return g.doRequest(ctx, "account_resource", http.MethodGet,
			g.url("/accounts/"+address+"/resource/"+url.PathEscape(resourceType)), nil, &resource)
	})
	if err != nil {
		return nil, err
	}
	return &resource, nil
}

func (g *LedgerGateway) Account(ctx context.Context, address string) (*AccountInfo, error) {
	var info AccountInfo
	err := g.withRetry(ctx, "account", "account", func(ctx context.Context) error {
		return g.doRequest(ctx, "account", http.MethodGet, g.url("/accounts/"+address), nil, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (g *LedgerGateway) LedgerInfo(ctx context.Context) (*types.LedgerStatus, error) {
	var info ledgerInfoResponse
	err := g.withRetry(ctx, "ledgerInfo", "ledger_info", func(ctx context.Context) error {
		return g.doRequest(ctx, "ledger_info", http.MethodGet, g.url("/"), nil, &info)
	})
	if err != nil {
		return nil, err
	}
	return &types.LedgerStatus{
		ChainId:         info.ChainId,
		Epoch:           info.Epoch,
		LedgerVersion:   info.LedgerVersion,
		LedgerTimestamp: info.LedgerTimestamp,
	}, nil
}

func (g *LedgerGateway) EstimateGasPrice(ctx context.Context) (uint64, error) {
	var estimate struct {
		GasEstimate uint64 `json:"gas_estimate"`
	}
	err := g.withRetry(ctx, "estimateGasPrice", "estimate_gas_price", func(ctx context.Context) error {
		return g.doRequest(ctx, "estimate_gas_price", http.MethodGet, g.url("/estimate_gas_price"), nil, &estimate)
	})
	if err != nil {
		return 0, err
	}
	return estimate.GasEstimate, nil
}

// FundAccount asks the network faucet to mint octa into address. It is not
// retried, since a duplicate request mints twice.
func (g *LedgerGateway) FundAccount(ctx context.Context, address string, octa uint64) ([]string, error) {
	if g.config.FaucetURL == "" {
		return nil, ErrNoFaucet
	}
	q := url.Values{}
	q.Set("amount", strconv.FormatUint(octa, 10))
	q.Set("address", address)
	endpoint := fmt.Sprintf("%s/mint?%s", g.config.FaucetURL, q.Encode())

	var hashes []string
	if err := g.doRequest(ctx, "faucet", http.MethodPost, endpoint, nil, &hashes); err != nil {
		return nil, classify(ctx, "fundAccount", err)
	}
	g.logger.Sugar().Infow("Faucet funded account",
		zap.String("address", address),
		zap.Uint64("octa", octa),
		zap.Strings("hashes", hashes),
	)
	return hashes, nil
}
