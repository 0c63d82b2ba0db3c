package main

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSuperviseWatcher(t *testing.T) {
	t.Run("failure cancels and triggers shutdown", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		notifier := make(chan os.Signal, 1)
		boom := errors.New("ledger unreachable")

		err := superviseWatcher(ctx, func(context.Context) error { return boom }, cancel, notifier, zap.NewNop())
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, ctx.Err(), context.Canceled)

		require.Len(t, notifier, 1)
		assert.Equal(t, syscall.SIGTERM, <-notifier)
	})

	t.Run("full notifier does not block", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		notifier := make(chan os.Signal, 1)
		notifier <- syscall.SIGINT

		err := superviseWatcher(ctx, func(context.Context) error { return errors.New("x") }, cancel, notifier, zap.NewNop())
		assert.Error(t, err)
		assert.Equal(t, syscall.SIGINT, <-notifier)
	})

	t.Run("clean exit is not an error", func(t *testing.T) {
		for _, runErr := range []error{nil, context.Canceled} {
			ctx, cancel := context.WithCancel(context.Background())
			notifier := make(chan os.Signal, 1)

			err := superviseWatcher(ctx, func(context.Context) error { return runErr }, cancel, notifier, zap.NewNop())
			assert.NoError(t, err)
			assert.NoError(t, ctx.Err())
			assert.Empty(t, notifier)
			cancel()
		}
	})
}
