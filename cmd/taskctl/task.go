package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dandelion-network/taskctl/internal/telemetry"
	"github.com/dandelion-network/taskctl/pkg/contractService"
	"github.com/dandelion-network/taskctl/pkg/types"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, inspect and move tasks through their lifecycle",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a task with a reward in APT",
	Args:  cobra.NoArgs,
	RunE: runWith(func(ctx context.Context, a *app, args []string) error {
		flags := a.cmd.Flags()
		req := &contractService.CreateTaskRequest{}
		req.Title, _ = flags.GetString("title")
		req.Description, _ = flags.GetString("description")
		req.ContentRef, _ = flags.GetString("content-ref")
		req.Reward, _ = flags.GetString("reward")
		req.TaskType, _ = flags.GetUint8("task-type")
		req.BiddingPeriod, _ = flags.GetUint64("bidding-period")
		req.DevelopmentPeriod, _ = flags.GetUint64("development-period")

		deadline, err := parseDeadline(flags.Lookup("deadline").Value.String(), time.Now())
		if err != nil {
			return err
		}
		req.Deadline = deadline

		return printWrite(ctx, a)(a.writer().CreateTask(ctx, req))
	}),
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every task",
	Args:  cobra.NoArgs,
	RunE: runWith(func(ctx context.Context, a *app, args []string) error {
		refresh, _ := a.cmd.Flags().GetBool("refresh")
		var tasks []*types.Task
		var err error
		if refresh {
			tasks, err = a.service.Refresh(ctx)
		} else {
			tasks, err = a.service.GetAllTasks(ctx)
		}
		if err != nil {
			return err
		}
		a.formatter.Title(fmt.Sprintf("TASKS (%s)", a.service.Mode()))
		return a.formatter.PrintTasks(tasks)
	}),
}

var taskGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE: runWith(func(ctx context.Context, a *app, args []string) error {
		id, err := parseTaskId(args[0])
		if err != nil {
			return err
		}
		task, err := a.service.GetTask(ctx, id)
		if err != nil {
			return err
		}
		return a.formatter.PrintTask(task)
	}),
}

var taskBidsCmd = &cobra.Command{
	Use:   "bids <id>",
	Short: "List the bids placed on a task",
	Args:  cobra.ExactArgs(1),
	RunE: runWith(func(ctx context.Context, a *app, args []string) error {
		id, err := parseTaskId(args[0])
		if err != nil {
			return err
		}
		bids, err := a.service.GetBids(ctx, id)
		if err != nil {
			return err
		}
		return a.formatter.PrintBids(bids)
	}),
}

var taskOpenBiddingCmd = idCommand("open-bidding <id>", "Open a created task for bids",
	func(ctx context.Context, w taskWriter, id uint64, args []string) (*types.TxResult, error) {
		return w.OpenBidding(ctx, id)
	})

var taskBidCmd = idCommand("bid <id> <deposit>", "Bid on a task, locking a deposit in APT",
	func(ctx context.Context, w taskWriter, id uint64, args []string) (*types.TxResult, error) {
		return w.PlaceBid(ctx, id, args[0])
	})

var taskSelectWinnerCmd = idCommand("select-winner <id> <bidder>", "Award a task to one of its bidders",
	func(ctx context.Context, w taskWriter, id uint64, args []string) (*types.TxResult, error) {
		return w.SelectWinner(ctx, id, args[0])
	})

var taskRequestVerificationCmd = idCommand("request-verification <id>", "Submit finished work for the creator to confirm",
	func(ctx context.Context, w taskWriter, id uint64, args []string) (*types.TxResult, error) {
		return w.RequestVerification(ctx, id)
	})

var taskConfirmCmd = idCommand("confirm <id>", "Accept the submitted work and complete the task",
	func(ctx context.Context, w taskWriter, id uint64, args []string) (*types.TxResult, error) {
		return w.ConfirmCompletion(ctx, id, true)
	})

var taskRejectCmd = idCommand("reject <id>", "Reject the submitted work, opening a dispute",
	func(ctx context.Context, w taskWriter, id uint64, args []string) (*types.TxResult, error) {
		return w.ConfirmCompletion(ctx, id, false)
	})

var taskDisputeCmd = idCommand("dispute <id>", "Raise a dispute while the dispute window is open",
	func(ctx context.Context, w taskWriter, id uint64, args []string) (*types.TxResult, error) {
		return w.RaiseDispute(ctx, id)
	})

var taskCancelCmd = idCommand("cancel <id>", "Cancel a task that has no winner yet",
	func(ctx context.Context, w taskWriter, id uint64, args []string) (*types.TxResult, error) {
		return w.CancelTask(ctx, id)
	})

var taskDepositCmd = idCommand("deposit <id> <amount>", "Deposit APT into a task's escrow",
	func(ctx context.Context, w taskWriter, id uint64, args []string) (*types.TxResult, error) {
		return w.DepositFunds(ctx, id, args[0])
	})

var taskReleaseCmd = idCommand("release <id>", "Release a task's escrow to its winner",
	func(ctx context.Context, w taskWriter, id uint64, args []string) (*types.TxResult, error) {
		return w.ReleaseFunds(ctx, id)
	})

func init() {
	flags := taskCreateCmd.Flags()
	flags.String("title", "", "task title")
	flags.String("description", "", "task description, published to the content store when one is configured")
	flags.String("content-ref", "", "CID of an already published task document")
	flags.String("reward", "", "reward in APT, e.g. 1.5")
	flags.String("deadline", "168h", "deadline as RFC3339 time, unix seconds, or a duration from now")
	flags.Uint8("task-type", 0, "task category")
	flags.Uint64("bidding-period", 72, "bidding period in hours")
	flags.Uint64("development-period", 14, "development period in days")
	_ = taskCreateCmd.MarkFlagRequired("title")
	_ = taskCreateCmd.MarkFlagRequired("reward")

	taskListCmd.Flags().Bool("refresh", false, "bypass the task cache")

	taskCmd.AddCommand(
		taskCreateCmd, taskListCmd, taskGetCmd, taskBidsCmd,
		taskOpenBiddingCmd, taskBidCmd, taskSelectWinnerCmd, taskRequestVerificationCmd,
		taskConfirmCmd, taskRejectCmd, taskDisputeCmd, taskCancelCmd,
		taskDepositCmd, taskReleaseCmd,
	)
}

type idAction func(ctx context.Context, w taskWriter, id uint64, args []string) (*types.TxResult, error)

// idCommand builds a write command whose first argument is a task id; the
// remaining arguments are passed through to fn.
func idCommand(use, short string, fn idAction) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(countArgs(use)),
		RunE: runWith(func(ctx context.Context, a *app, args []string) error {
			id, err := parseTaskId(args[0])
			if err != nil {
				return err
			}
			return printWrite(ctx, a)(fn(ctx, a.writer(), id, args[1:]))
		}),
	}
}

func printWrite(ctx context.Context, a *app) func(*types.TxResult, error) error {
	return func(result *types.TxResult, err error) error {
		if err != nil {
			return err
		}
		telemetry.RecordTransactions(ctx, result)
		return a.formatter.PrintTxResults(result)
	}
}

func parseTaskId(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

// parseDeadline accepts an RFC3339 time, unix seconds, or a duration added to now.
func parseDeadline(s string, now time.Time) (int64, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix(), nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return secs, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(d).Unix(), nil
	}
	return 0, fmt.Errorf("invalid deadline %q", s)
}

// countArgs counts the <placeholders> in a command's Use line.
func countArgs(use string) int {
	n := 0
	for _, r := range use {
		if r == '<' {
			n++
		}
	}
	return n
}
