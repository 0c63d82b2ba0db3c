package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dandelion-network/taskctl/internal/telemetry"
	"github.com/dandelion-network/taskctl/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "taskctl",
	Short:         "Create, bid on, and settle tasks on the Dandelion task ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configFile string
var Config *config.TaskctlConfig

func init() {
	cobra.OnInitialize(initConfigIfPresent)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	initConfig(rootCmd)

	flags := rootCmd.PersistentFlags()
	flags.Bool(config.Debug, false, `"true" or "false"`)
	flags.String(config.Network, config.DefaultNetwork, "network to use: mainnet, testnet or devnet")
	flags.String(config.NodeUrl, "", "node REST URL, overrides the network default")
	flags.String(config.ModuleAddress, config.DefaultModuleAddress, "address the task modules are published under")
	flags.Bool(config.Simulate, false, "never submit, run every write against the simulation backend")
	flags.Duration(config.ConfirmationTimeout, config.DefaultConfirmationTimeout, "how long to wait for a transaction to commit")
	flags.String(config.WalletType, "", "wallet to use: local or remote (default: first available)")
	flags.String(config.PrivateKey, "", "hex ed25519 private key for the local wallet")
	flags.String(config.Mnemonic, "", "BIP-39 mnemonic for the local wallet")
	flags.String(config.BridgeUrl, "", "JSON-RPC URL of a wallet bridge for the remote wallet")
	flags.String(config.ContentGatewayUrl, "", "IPFS gateway serving task documents")
	flags.String(config.ContentApiUrl, "", "IPFS HTTP API used to publish task documents")
	flags.String(config.StorageType, config.StorageTypeMemory, "transaction history storage: memory or badger")
	flags.String(config.StorageDir, "", "badger directory for transaction history")
	flags.Float64(config.RateLimit, config.DefaultRateLimit, "node reads per second, 0 disables limiting")
	flags.Bool(config.TelemetryEnabled, false, "send anonymous usage metrics")
	flags.String(config.TelemetryApiKey, "", "telemetry API key")
	flags.StringP(flagOutput, "o", "table", "output format: table, json or yaml")
	flags.BoolP(flagYes, "y", false, "submit without asking for confirmation")

	rootCmd.AddCommand(statusCmd, balanceCmd, networkCmd, faucetCmd)
	rootCmd.AddCommand(deployCmd, taskCmd, jurorCmd, historyCmd, watchCmd)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(strings.TrimSuffix(config.EnvPrefix, "_"))
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func initConfigIfPresent() {
	if configFile == "" {
		Config = config.NewTaskctlConfig()
		return
	}
	fmt.Fprintf(os.Stderr, "Using config file: %s\n", configFile)
	data, err := os.ReadFile(configFile)
	if err != nil {
		panic(err)
	}
	Config, err = config.NewTaskctlConfigFromYamlBytes(data)
	if err != nil {
		panic(err)
	}
	Config.ApplySecrets()
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	telemetry.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", describeError(err))
		os.Exit(1)
	}
}
