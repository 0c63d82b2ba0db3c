package main

import (
	"context"
	"fmt"

	"github.com/dandelion-network/taskctl/pkg/sessionStore/storage"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the transactions submitted by this account",
	Long: `Show the transactions submitted by this account, newest first.

With --storage-type=badger the history survives across invocations; the
default memory store only holds the current invocation.`,
	Args: cobra.NoArgs,
	RunE: runWith(func(ctx context.Context, a *app, args []string) error {
		if a.session == nil {
			return taskErrors.New(taskErrors.KindWalletUnavailable, "history", "history is kept per wallet account, configure a wallet")
		}
		flags := a.cmd.Flags()

		if clear, _ := flags.GetBool("clear"); clear {
			if err := a.session.ClearHistory(ctx); err != nil {
				return err
			}
			fmt.Println("History cleared")
			return nil
		}

		var records []*storage.TxRecord
		var err error
		if recent, _ := flags.GetBool("recent"); recent {
			records, err = a.session.RecentHistory(ctx)
		} else {
			limit, _ := flags.GetInt("limit")
			records, err = a.session.History(ctx, limit)
		}
		if err != nil {
			return err
		}
		return a.formatter.PrintHistory(records)
	}),
}

func init() {
	historyCmd.Flags().Bool("clear", false, "delete the recorded history of this account")
	historyCmd.Flags().Bool("recent", false, "show only the most recent transactions")
	historyCmd.Flags().Int("limit", 0, "show at most this many records, 0 shows all")
}
