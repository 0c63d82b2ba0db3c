package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dandelion-network/taskctl/pkg/config"
	"github.com/dandelion-network/taskctl/pkg/contractService"
	"github.com/dandelion-network/taskctl/pkg/sessionStore/storage/badger"
	"github.com/dandelion-network/taskctl/pkg/sessionStore/storage/memory"
	"github.com/dandelion-network/taskctl/pkg/taskErrors"
	"github.com/dandelion-network/taskctl/pkg/walletAdapter/localWallet"
	"github.com/dandelion-network/taskctl/pkg/walletAdapter/remoteWallet"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeadline(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tests := []struct {
		name     string
		input    string
		expected int64
		wantErr  bool
	}{
		{name: "rfc3339", input: "2026-01-01T00:00:00Z", expected: 1767225600},
		{name: "unix seconds", input: "1800000000", expected: 1800000000},
		{name: "duration", input: "72h", expected: 1700000000 + 72*3600},
		{name: "garbage", input: "next week", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDeadline(tt.input, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseTaskId(t *testing.T) {
	id, err := parseTaskId("42")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	_, err = parseTaskId("-1")
	assert.Error(t, err)
}

func TestCountArgs(t *testing.T) {
	assert.Equal(t, 1, countArgs("cancel <id>"))
	assert.Equal(t, 2, countArgs("bid <id> <deposit>"))
	assert.NoError(t, taskSelectWinnerCmd.Args(taskSelectWinnerCmd, []string{"1", "0xb0b"}))
	assert.Error(t, taskSelectWinnerCmd.Args(taskSelectWinnerCmd, []string{"1"}))
}

func TestDescribeError(t *testing.T) {
	err := taskErrors.New(taskErrors.KindInvalidBidAttempt, "placeBid", "already bid")
	assert.True(t, strings.HasPrefix(describeError(err), "[InvalidBidAttempt]"))
	assert.Equal(t, "plain", describeError(errors.New("plain")))
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"status"}, {"balance"}, {"network"}, {"faucet"},
		{"deploy", "status"}, {"deploy", "init"},
		{"task", "create"}, {"task", "list"}, {"task", "get"}, {"task", "bids"},
		{"task", "open-bidding"}, {"task", "bid"}, {"task", "select-winner"},
		{"task", "request-verification"}, {"task", "confirm"}, {"task", "reject"},
		{"task", "dispute"}, {"task", "cancel"}, {"task", "deposit"}, {"task", "release"},
		{"juror", "stake"}, {"juror", "vote"}, {"history"}, {"watch"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, strings.Join(path, " "))
		assert.Equal(t, path[len(path)-1], cmd.Name())
		assert.NotNil(t, cmd.RunE, strings.Join(path, " "))
	}
}

func TestNewHistoryStore(t *testing.T) {
	s, err := newHistoryStore(&config.StorageConfig{Type: config.StorageTypeMemory})
	require.NoError(t, err)
	assert.IsType(t, &memory.InMemoryHistoryStore{}, s)

	s, err = newHistoryStore(&config.StorageConfig{
		Type:         config.StorageTypeBadger,
		BadgerConfig: &config.BadgerConfig{InMemory: true},
	})
	require.NoError(t, err)
	assert.IsType(t, &badger.BadgerHistoryStore{}, s)
	require.NoError(t, s.Close())

	_, err = newHistoryStore(&config.StorageConfig{Type: "sqlite"})
	assert.Error(t, err)
}

func withConfig(t *testing.T, mutate func(tc *config.TaskctlConfig)) {
	t.Helper()
	prev := Config
	t.Cleanup(func() { Config = prev })
	tc := config.NewDefaultTaskctlConfig()
	tc.Simulate = true
	mutate(tc)
	Config = tc
}

func TestNewApp(t *testing.T) {
	t.Run("without a wallet", func(t *testing.T) {
		withConfig(t, func(tc *config.TaskctlConfig) {})
		a, err := newApp(&cobra.Command{})
		require.NoError(t, err)
		defer a.close()

		assert.Nil(t, a.wallet)
		assert.Nil(t, a.session)
		assert.Equal(t, contractService.ModeSimulation, a.service.Mode())
		assert.Same(t, a.service, a.writer())

		addr, err := a.connectedAddress(true)
		require.NoError(t, err)
		assert.Equal(t, contractService.SimulatedCaller, addr)
		_, err = a.connectedAddress(false)
		assert.ErrorIs(t, err, taskErrors.ErrWalletUnavailable)
	})

	t.Run("with a local key", func(t *testing.T) {
		withConfig(t, func(tc *config.TaskctlConfig) {
			tc.Wallet.PrivateKey = "0x" + strings.Repeat("11", 32)
		})
		a, err := newApp(&cobra.Command{})
		require.NoError(t, err)
		defer a.close()

		assert.IsType(t, &localWallet.LocalWallet{}, a.wallet)
		assert.NotNil(t, a.session)
		assert.Same(t, a.session, a.writer())
	})

	t.Run("with a remote bridge", func(t *testing.T) {
		withConfig(t, func(tc *config.TaskctlConfig) {
			tc.Wallet = &config.WalletConfig{Type: config.WalletTypeRemote, BridgeUrl: "http://127.0.0.1:1"}
		})
		a, err := newApp(&cobra.Command{})
		require.NoError(t, err)
		defer a.close()

		assert.IsType(t, &remoteWallet.RemoteWallet{}, a.wallet)
	})

	t.Run("invalid config", func(t *testing.T) {
		withConfig(t, func(tc *config.TaskctlConfig) { tc.Storage.Type = "sqlite" })
		_, err := newApp(&cobra.Command{})
		assert.ErrorContains(t, err, "invalid configuration")
	})

	t.Run("bad key is an error, not a missing wallet", func(t *testing.T) {
		withConfig(t, func(tc *config.TaskctlConfig) { tc.Wallet.PrivateKey = "0xnothex" })
		_, err := newApp(&cobra.Command{})
		assert.Error(t, err)
	})
}
