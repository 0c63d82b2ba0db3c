package main

import (
	"context"
	"fmt"

	"github.com/dandelion-network/taskctl/internal/output"
	"github.com/dandelion-network/taskctl/pkg/contractService"
	"github.com/dandelion-network/taskctl/pkg/sessionStore"
	"github.com/dandelion-network/taskctl/pkg/taskCodec"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/unitConverter"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the wallet connection, balance and service mode",
	Args:  cobra.NoArgs,
	RunE: runWith(func(ctx context.Context, a *app, args []string) error {
		state := &sessionStore.State{Balance: "0.00000000", Mode: a.service.Mode()}
		if a.session != nil {
			state = a.session.State()
		}
		return a.formatter.PrintState(state)
	}),
}

var balanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Show the APT balance of an account (default: the connected account)",
	Args:  cobra.MaximumNArgs(1),
	RunE: runWith(func(ctx context.Context, a *app, args []string) error {
		address := ""
		if len(args) == 1 {
			addr, err := taskCodec.NormalizeAddress(args[0])
			if err != nil {
				return err
			}
			address = addr
		}
		balance, err := a.service.GetBalance(ctx, address)
		if err != nil {
			return err
		}
		if a.formatter.Format() == output.FormatTable {
			fmt.Printf("%s APT\n", balance)
			return nil
		}
		return a.formatter.Print(map[string]string{"address": address, "balance": balance})
	}),
}

type networkView struct {
	Name            string `json:"name"`
	ChainId         uint8  `json:"chainId"`
	NodeUrl         string `json:"nodeUrl"`
	FaucetUrl       string `json:"faucetUrl,omitempty"`
	ModuleAddress   string `json:"moduleAddress"`
	Mode            string `json:"mode"`
	Epoch           string `json:"epoch"`
	LedgerVersion   string `json:"ledgerVersion"`
	LedgerTimestamp string `json:"ledgerTimestamp"`
}

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Show the configured network and the node's ledger status",
	Args:  cobra.NoArgs,
	RunE: runWith(func(ctx context.Context, a *app, args []string) error {
		status, err := a.service.GetNetworkStatus(ctx)
		if err != nil {
			return err
		}
		return a.formatter.Print(&networkView{
			Name:            a.network.Name,
			ChainId:         status.ChainId,
			NodeUrl:         a.network.NodeUrl,
			FaucetUrl:       a.network.FaucetUrl,
			ModuleAddress:   a.cfg.ModuleAddress,
			Mode:            string(a.service.Mode()),
			Epoch:           status.Epoch,
			LedgerVersion:   status.LedgerVersion,
			LedgerTimestamp: status.LedgerTimestamp,
		})
	}),
}

var faucetCmd = &cobra.Command{
	Use:   "faucet <amount>",
	Short: "Mint test APT into an account (testnet and devnet only)",
	Args:  cobra.ExactArgs(1),
	RunE: runWith(func(ctx context.Context, a *app, args []string) error {
		octa, err := unitConverter.ToLedgerUnits(args[0])
		if err != nil {
			return err
		}
		amount, err := unitConverter.ToUint64(octa)
		if err != nil {
			return err
		}

		address, _ := a.cmd.Flags().GetString("address")
		if address == "" {
			address, err = a.connectedAddress(false)
			if err != nil {
				return err
			}
		}
		if address, err = taskCodec.NormalizeAddress(address); err != nil {
			return err
		}

		hashes, err := a.gateway.FundAccount(ctx, address, amount)
		if err != nil {
			return err
		}
		return a.formatter.Print(map[string]any{"address": address, "amount": args[0], "hashes": hashes})
	}),
}

func init() {
	faucetCmd.Flags().String("address", "", "account to fund (default: the connected account)")
}

// connectedAddress returns the wallet account. With simulated set, the
// simulation caller stands in when no wallet is connected.
func (a *app) connectedAddress(simulated bool) (string, error) {
	if a.session != nil {
		if st := a.session.State(); st.Account != nil {
			return st.Account.Address, nil
		}
	}
	if simulated && a.service.Mode() == contractService.ModeSimulation {
		return contractService.SimulatedCaller, nil
	}
	return "", taskErrors.New(taskErrors.KindWalletUnavailable, "connectedAddress", "no wallet connected")
}
