package main

import (
	"context"

	"github.com/spf13/cobra"
)

var jurorCmd = &cobra.Command{
	Use:   "juror",
	Short: "Stake as a juror and vote on disputes",
}

var jurorStakeCmd = &cobra.Command{
	Use:   "stake <amount>",
	Short: "Stake APT to become eligible for dispute juries",
	Args:  cobra.ExactArgs(1),
	RunE: runWith(func(ctx context.Context, a *app, args []string) error {
		return printWrite(ctx, a)(a.writer().StakeAsJuror(ctx, args[0]))
	}),
}

var jurorVoteCmd = &cobra.Command{
	Use:   "vote <dispute-id> <candidate>",
	Short: "Vote for the party that should win a dispute",
	Args:  cobra.ExactArgs(2),
	RunE: runWith(func(ctx context.Context, a *app, args []string) error {
		id, err := parseTaskId(args[0])
		if err != nil {
			return err
		}
		return printWrite(ctx, a)(a.writer().Vote(ctx, id, args[1]))
	}),
}

func init() {
	jurorCmd.AddCommand(jurorStakeCmd, jurorVoteCmd)
}
