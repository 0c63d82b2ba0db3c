package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/dandelion-network/taskctl/internal/output"
	"github.com/dandelion-network/taskctl/pkg/config"
	"github.com/dandelion-network/taskctl/pkg/shutdown"
	"github.com/dandelion-network/taskctl/pkg/taskWatcher"
	"github.com/dandelion-network/taskctl/pkg/walletAdapter/remoteWallet"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll tasks and report every status transition until interrupted",
	Args:  cobra.NoArgs,
	RunE: runWith(func(ctx context.Context, a *app, args []string) error {
		flags := a.cmd.Flags()
		cfg := taskWatcher.DefaultConfig()
		cfg.PollingInterval, _ = flags.GetDuration("interval")
		ids, _ := flags.GetUintSlice("task")
		for _, id := range ids {
			cfg.TaskIds = append(cfg.TaskIds, uint64(id))
		}
		if addr, _ := flags.GetString(config.MetricsAddr); addr != "" {
			a.cfg.MetricsAddr = addr
		}

		sink := make(chan *taskWatcher.Transition, 16)
		watcher, err := taskWatcher.NewTaskWatcher(cfg, a.service, sink, a.logger)
		if err != nil {
			return err
		}
		watcher.RegisterMetrics(a.registry)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var server *http.Server
		if a.cfg.MetricsAddr != "" {
			server = &http.Server{
				Addr:              a.cfg.MetricsAddr,
				Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				a.logger.Sugar().Infow("Serving metrics", zap.String("addr", a.cfg.MetricsAddr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Sugar().Errorw("Metrics server failed", zap.Error(err))
				}
			}()
		}

		if remote, ok := a.wallet.(*remoteWallet.RemoteWallet); ok {
			go remote.Watch(ctx, cfg.PollingInterval)
		}

		notifier := shutdown.CreateGracefulShutdownChannel()
		runErr := make(chan error, 1)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			runErr <- superviseWatcher(ctx, watcher.Run, cancel, notifier, a.logger)
		}()
		go func() {
			defer wg.Done()
			a.printTransitions(ctx, sink)
		}()

		done := make(chan bool, 1)
		shutdown.ListenForShutdown(notifier, done, func() {
			a.logger.Sugar().Info("Shutting down...")
			cancel()
			if server != nil {
				shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
				defer stop()
				_ = server.Shutdown(shutdownCtx)
			}
			wg.Wait()
		}, 5*time.Second, a.logger)
		<-done

		select {
		case err := <-runErr:
			return err
		default:
			return nil
		}
	}),
}

// superviseWatcher runs the watcher until ctx ends. A failure is logged,
// cancels ctx and is pushed through notifier so shutdown runs as it would for
// a signal.
func superviseWatcher(ctx context.Context, run func(context.Context) error, cancel context.CancelFunc, notifier chan os.Signal, l *zap.Logger) error {
	err := run(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	l.Sugar().Errorw("Task watcher stopped", zap.Error(err))
	cancel()
	select {
	case notifier <- syscall.SIGTERM:
	default:
	}
	return err
}

func (a *app) printTransitions(ctx context.Context, sink <-chan *taskWatcher.Transition) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-sink:
			if a.formatter.Format() != output.FormatTable {
				_ = a.formatter.PrintJSON(t)
				continue
			}
			marker := ""
			if !t.Valid {
				marker = " (unexpected)"
			}
			fmt.Printf("%s  %s%s\n", t.ObservedAt.UTC().Format(time.RFC3339), t, marker)
		}
	}
}

func init() {
	watchCmd.Flags().Duration("interval", taskWatcher.DefaultConfig().PollingInterval, "polling interval")
	watchCmd.Flags().UintSlice("task", nil, "task ids to watch (default: all)")
	watchCmd.Flags().String(config.MetricsAddr, "", "serve prometheus metrics on this address, e.g. :9090")
}
