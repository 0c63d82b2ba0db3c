package main

import (
	"context"

	"github.com/dandelion-network/taskctl/internal/telemetry"
	"github.com/dandelion-network/taskctl/pkg/contractService"
	"github.com/spf13/cobra"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Inspect and initialize the task modules",
}

var deployStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report which task modules are published at the module address",
	Args:  cobra.NoArgs,
	RunE: runWith(func(ctx context.Context, a *app, args []string) error {
		report, err := a.probe.Inspect(ctx, a.cfg.ModuleAddress)
		if err != nil {
			return err
		}
		return a.formatter.PrintReport(report)
	}),
}

var deployInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize every task module; the caller must own the module address",
	Args:  cobra.NoArgs,
	RunE: runWith(func(ctx context.Context, a *app, args []string) error {
		flags := a.cmd.Flags()
		params := contractService.DefaultInitParams()
		params.BidDeposit, _ = flags.GetString("bid-deposit")
		params.MinStake, _ = flags.GetString("min-stake")
		params.JurorsPerDispute, _ = flags.GetUint64("jurors")
		params.JurorCooldown, _ = flags.GetDuration("juror-cooldown")

		results, err := a.writer().InitializeContracts(ctx, params)
		telemetry.RecordTransactions(ctx, results...)
		if len(results) > 0 {
			if perr := a.formatter.PrintTxResults(results...); perr != nil {
				return perr
			}
		}
		return err
	}),
}

func init() {
	defaults := contractService.DefaultInitParams()
	deployInitCmd.Flags().String("bid-deposit", defaults.BidDeposit, "bid deposit in APT")
	deployInitCmd.Flags().String("min-stake", defaults.MinStake, "minimum juror stake in APT")
	deployInitCmd.Flags().Uint64("jurors", defaults.JurorsPerDispute, "jurors drawn per dispute")
	deployInitCmd.Flags().Duration("juror-cooldown", defaults.JurorCooldown, "cooldown between juror assignments")

	deployCmd.AddCommand(deployStatusCmd, deployInitCmd)
}
