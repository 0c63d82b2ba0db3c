package config

import (
	"fmt"
	"slices"
	"strings"
)

type ChainId uint8

const (
	ChainId_AptosDevnet  ChainId = 0
	ChainId_AptosMainnet ChainId = 1
	ChainId_AptosTestnet ChainId = 2
)

const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
	NetworkDevnet  = "devnet"

	DefaultNetwork = NetworkTestnet
)

// NetworkConfig describes a public Aptos network. FaucetUrl is empty where
// funds cannot be minted.
type NetworkConfig struct {
	Name      string  `json:"name" yaml:"name"`
	ChainId   ChainId `json:"chainId" yaml:"chainId"`
	NodeUrl   string  `json:"nodeUrl" yaml:"nodeUrl"`
	FaucetUrl string  `json:"faucetUrl,omitempty" yaml:"faucetUrl,omitempty"`
}

var (
	Networks = map[string]*NetworkConfig{
		NetworkMainnet: {
			Name:    NetworkMainnet,
			ChainId: ChainId_AptosMainnet,
			NodeUrl: "https://fullnode.mainnet.aptoslabs.com/v1",
		},
		NetworkTestnet: {
			Name:      NetworkTestnet,
			ChainId:   ChainId_AptosTestnet,
			NodeUrl:   "https://fullnode.testnet.aptoslabs.com/v1",
			FaucetUrl: "https://faucet.testnet.aptoslabs.com",
		},
		NetworkDevnet: {
			Name:      NetworkDevnet,
			ChainId:   ChainId_AptosDevnet,
			NodeUrl:   "https://fullnode.devnet.aptoslabs.com/v1",
			FaucetUrl: "https://faucet.devnet.aptoslabs.com",
		},
	}

	SupportedNetworks = []string{NetworkMainnet, NetworkTestnet, NetworkDevnet}
)

// GetNetwork returns a copy of the named network's settings.
func GetNetwork(name string) (*NetworkConfig, error) {
	n, ok := Networks[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported network '%s', must be one of %v", name, SupportedNetworks)
	}
	c := *n
	return &c, nil
}

func IsSupportedNetwork(name string) bool {
	return slices.Contains(SupportedNetworks, strings.ToLower(name))
}

// KebabToSnakeCase turns a flag name into its viper key, e.g. "node-url" -> "node_url".
func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(str, "-", "_")
}

// NormalizeFlagName is the key a flag value is read back under.
func NormalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}
