package shutdown

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// CreateGracefulShutdownChannel returns a channel notified on SIGINT and SIGTERM.
func CreateGracefulShutdownChannel() chan os.Signal {
	notifier := make(chan os.Signal, 1)
	signal.Notify(notifier, syscall.SIGINT, syscall.SIGTERM)
	return notifier
}

// ListenForShutdown blocks until notifier fires, then runs callback and waits
// up to timeout for it to finish. done, when non-nil, is signalled once the
// callback returned or the timeout elapsed.
func ListenForShutdown(notifier chan os.Signal, done chan bool, callback func(), timeout time.Duration, l *zap.Logger) {
	sig := <-notifier
	l.Sugar().Infow("Received shutdown signal", zap.String("signal", sig.String()))
	signal.Stop(notifier)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		callback()
	}()

	select {
	case <-finished:
		l.Sugar().Infow("Shutdown complete")
	case <-time.After(timeout):
		l.Sugar().Warnw("Shutdown timed out", zap.Duration("timeout", timeout))
	}

	if done != nil {
		select {
		case done <- true:
		default:
		}
	}
}
