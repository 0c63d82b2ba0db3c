package config

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/dandelion-network/taskctl/pkg/taskCodec"
	"github.com/spf13/viper"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"sigs.k8s.io/yaml"
)

const (
	EnvPrefix = "TASKCTL_"

	Debug               = "debug"
	Network             = "network"
	NodeUrl             = "node-url"
	ModuleAddress       = "module-address"
	Simulate            = "simulate"
	ConfirmationTimeout = "confirmation-timeout"
	WalletType          = "wallet-type"
	PrivateKey          = "private-key"
	Mnemonic            = "mnemonic"
	BridgeUrl           = "bridge-url"
	ContentGatewayUrl   = "content-gateway-url"
	ContentApiUrl       = "content-api-url"
	StorageType         = "storage-type"
	StorageDir          = "storage-dir"
	RateLimit           = "rate-limit"
	TelemetryEnabled    = "telemetry-enabled"
	TelemetryApiKey     = "telemetry-api-key"
	MetricsAddr         = "metrics-addr"
)

const (
	WalletTypeLocal  = "local"
	WalletTypeRemote = "remote"

	StorageTypeMemory = "memory"
	StorageTypeBadger = "badger"

	DefaultModuleAddress       = "0xa1b3e0179d015222a7dfae11a029f96b173f0bf5b4747fd6c2d057dead2b921b"
	DefaultConfirmationTimeout = 30 * time.Second
	DefaultRateLimit           = 10
)

type WalletConfig struct {
	// Type is "local" or "remote". Empty tries local first, then remote.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	// PrivateKey and Mnemonic are never written back to disk.
	PrivateKey   string `json:"-" yaml:"-"`
	Mnemonic     string `json:"-" yaml:"-"`
	AccountIndex uint32 `json:"accountIndex,omitempty" yaml:"accountIndex,omitempty"`
	BridgeUrl    string `json:"bridgeUrl,omitempty" yaml:"bridgeUrl,omitempty"`
}

func (wc *WalletConfig) Validate() error {
	var allErrors field.ErrorList

	if wc.Type != "" && !slices.Contains([]string{WalletTypeLocal, WalletTypeRemote}, wc.Type) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("type"), wc.Type, "type must be 'local' or 'remote'"))
	}
	if wc.PrivateKey != "" && wc.Mnemonic != "" {
		allErrors = append(allErrors, field.Forbidden(field.NewPath("mnemonic"), "only one of privateKey or mnemonic may be set"))
	}
	if wc.Type == WalletTypeRemote && wc.BridgeUrl == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("bridgeUrl"), "bridgeUrl is required when type is 'remote'"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

type ContentConfig struct {
	// GatewayUrl serves task documents; empty disables enrichment.
	GatewayUrl string `json:"gatewayUrl,omitempty" yaml:"gatewayUrl,omitempty"`
	// ApiUrl accepts uploads; empty keeps descriptions on the ledger.
	ApiUrl  string        `json:"apiUrl,omitempty" yaml:"apiUrl,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// StorageConfig selects where transaction history is kept.
type StorageConfig struct {
	Type         string        `json:"type" yaml:"type"` // "memory" or "badger"
	BadgerConfig *BadgerConfig `json:"badger,omitempty" yaml:"badger,omitempty"`
}

type BadgerConfig struct {
	Dir      string `json:"dir" yaml:"dir"`
	InMemory bool   `json:"inMemory,omitempty" yaml:"inMemory,omitempty"`
}

func (sc *StorageConfig) Validate() error {
	var allErrors field.ErrorList

	if sc.Type == "" {
		sc.Type = StorageTypeMemory
	}

	if sc.Type != StorageTypeMemory && sc.Type != StorageTypeBadger {
		allErrors = append(allErrors, field.Invalid(field.NewPath("type"), sc.Type, "type must be 'memory' or 'badger'"))
	}

	if sc.Type == StorageTypeBadger {
		if sc.BadgerConfig == nil {
			allErrors = append(allErrors, field.Required(field.NewPath("badger"), "badger configuration is required when type is 'badger'"))
		} else if sc.BadgerConfig.Dir == "" && !sc.BadgerConfig.InMemory {
			allErrors = append(allErrors, field.Required(field.NewPath("badger.dir"), "badger directory is required"))
		}
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

type TelemetryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	ApiKey  string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
}

type TaskctlConfig struct {
	Debug bool `json:"debug" yaml:"debug"`

	// Network names an entry of Networks. NodeUrl overrides its node.
	Network       string `json:"network" yaml:"network"`
	NodeUrl       string `json:"nodeUrl,omitempty" yaml:"nodeUrl,omitempty"`
	ModuleAddress string `json:"moduleAddress" yaml:"moduleAddress"`

	// Simulate forces the simulation backend even when the modules are deployed.
	Simulate            bool          `json:"simulate" yaml:"simulate"`
	ConfirmationTimeout time.Duration `json:"confirmationTimeout" yaml:"confirmationTimeout"`

	Wallet  *WalletConfig  `json:"wallet,omitempty" yaml:"wallet,omitempty"`
	Content *ContentConfig `json:"content,omitempty" yaml:"content,omitempty"`
	Storage *StorageConfig `json:"storage,omitempty" yaml:"storage,omitempty"`

	// RateLimit caps node reads per second; zero disables limiting.
	RateLimit float64 `json:"rateLimit" yaml:"rateLimit"`

	Telemetry   *TelemetryConfig `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
	MetricsAddr string           `json:"metricsAddr,omitempty" yaml:"metricsAddr,omitempty"`
}

func (tc *TaskctlConfig) Validate() error {
	var allErrors field.ErrorList

	if tc.Network == "" {
		tc.Network = DefaultNetwork
	}
	if !IsSupportedNetwork(tc.Network) && tc.NodeUrl == "" {
		allErrors = append(allErrors, field.Invalid(field.NewPath("network"), tc.Network,
			"network must be one of [mainnet, testnet, devnet] unless nodeUrl is set"))
	}

	if tc.ModuleAddress == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("moduleAddress"), "moduleAddress is required"))
	} else if addr, err := taskCodec.NormalizeAddress(tc.ModuleAddress); err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("moduleAddress"), tc.ModuleAddress, err.Error()))
	} else {
		tc.ModuleAddress = addr
	}

	if tc.ConfirmationTimeout == 0 {
		tc.ConfirmationTimeout = DefaultConfirmationTimeout
	} else if tc.ConfirmationTimeout < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("confirmationTimeout"), tc.ConfirmationTimeout, "confirmationTimeout must be positive"))
	}

	if tc.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimit"), tc.RateLimit, "rateLimit cannot be negative"))
	}

	if tc.Wallet == nil {
		tc.Wallet = &WalletConfig{}
	}
	if err := tc.Wallet.Validate(); err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("wallet"), tc.Wallet.Type, err.Error()))
	}

	if tc.Storage == nil {
		tc.Storage = &StorageConfig{Type: StorageTypeMemory}
	}
	if err := tc.Storage.Validate(); err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("storage"), tc.Storage.Type, err.Error()))
	}

	if tc.Content == nil {
		tc.Content = &ContentConfig{}
	}
	if tc.Telemetry == nil {
		tc.Telemetry = &TelemetryConfig{}
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// ResolveNetwork returns the selected network with NodeUrl applied. A custom
// NodeUrl on an unknown network yields a network without a faucet.
func (tc *TaskctlConfig) ResolveNetwork() (*NetworkConfig, error) {
	n, err := GetNetwork(tc.Network)
	if err != nil {
		if tc.NodeUrl == "" {
			return nil, err
		}
		n = &NetworkConfig{Name: tc.Network}
	}
	if tc.NodeUrl != "" {
		n.NodeUrl = tc.NodeUrl
	}
	return n, nil
}

func NewDefaultTaskctlConfig() *TaskctlConfig {
	return &TaskctlConfig{
		Network:             DefaultNetwork,
		ModuleAddress:       DefaultModuleAddress,
		ConfirmationTimeout: DefaultConfirmationTimeout,
		RateLimit:           DefaultRateLimit,
		Wallet:              &WalletConfig{},
		Content:             &ContentConfig{},
		Storage:             &StorageConfig{Type: StorageTypeMemory},
		Telemetry:           &TelemetryConfig{},
	}
}

// NewTaskctlConfig builds a config from flags and TASKCTL_ environment variables.
func NewTaskctlConfig() *TaskctlConfig {
	tc := NewDefaultTaskctlConfig()

	tc.Debug = viper.GetBool(NormalizeFlagName(Debug))
	tc.Simulate = viper.GetBool(NormalizeFlagName(Simulate))
	tc.MetricsAddr = viper.GetString(NormalizeFlagName(MetricsAddr))
	tc.NodeUrl = viper.GetString(NormalizeFlagName(NodeUrl))
	if v := viper.GetString(NormalizeFlagName(Network)); v != "" {
		tc.Network = v
	}
	if v := viper.GetString(NormalizeFlagName(ModuleAddress)); v != "" {
		tc.ModuleAddress = v
	}
	if v := viper.GetDuration(NormalizeFlagName(ConfirmationTimeout)); v > 0 {
		tc.ConfirmationTimeout = v
	}
	if viper.IsSet(NormalizeFlagName(RateLimit)) {
		tc.RateLimit = viper.GetFloat64(NormalizeFlagName(RateLimit))
	}

	tc.Wallet = &WalletConfig{
		Type:       viper.GetString(NormalizeFlagName(WalletType)),
		PrivateKey: viper.GetString(NormalizeFlagName(PrivateKey)),
		Mnemonic:   viper.GetString(NormalizeFlagName(Mnemonic)),
		BridgeUrl:  viper.GetString(NormalizeFlagName(BridgeUrl)),
	}
	tc.Content = &ContentConfig{
		GatewayUrl: viper.GetString(NormalizeFlagName(ContentGatewayUrl)),
		ApiUrl:     viper.GetString(NormalizeFlagName(ContentApiUrl)),
	}
	if v := viper.GetString(NormalizeFlagName(StorageType)); v != "" {
		tc.Storage.Type = v
	}
	if dir := viper.GetString(NormalizeFlagName(StorageDir)); dir != "" {
		tc.Storage.BadgerConfig = &BadgerConfig{Dir: dir}
	}
	tc.Telemetry = &TelemetryConfig{
		Enabled: viper.GetBool(NormalizeFlagName(TelemetryEnabled)),
		ApiKey:  viper.GetString(NormalizeFlagName(TelemetryApiKey)),
	}
	return tc
}

// ApplySecrets copies wallet secrets from flags or environment. Config files
// never carry them.
func (tc *TaskctlConfig) ApplySecrets() {
	if tc.Wallet == nil {
		tc.Wallet = &WalletConfig{}
	}
	if v := viper.GetString(NormalizeFlagName(PrivateKey)); v != "" {
		tc.Wallet.PrivateKey = v
	}
	if v := viper.GetString(NormalizeFlagName(Mnemonic)); v != "" {
		tc.Wallet.Mnemonic = v
	}
}

// NewTaskctlConfigFromYamlBytes parses a config file over the defaults.
func NewTaskctlConfigFromYamlBytes(data []byte) (*TaskctlConfig, error) {
	tc := NewDefaultTaskctlConfig()
	if err := yaml.Unmarshal(data, tc); err != nil {
		return nil, err
	}
	return tc, nil
}

func NewTaskctlConfigFromJsonBytes(data []byte) (*TaskctlConfig, error) {
	tc := NewDefaultTaskctlConfig()
	if err := json.Unmarshal(data, tc); err != nil {
		return nil, err
	}
	return tc, nil
}
