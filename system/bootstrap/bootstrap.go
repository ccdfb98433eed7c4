// Package bootstrap assembles every component the solver needs into a
// running Engine: storage backend, event bus, chain clients, the
// order-standard registry, strategy, settlement, and delivery, all
// driven off one Config loaded from the process environment.
package bootstrap

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/R3E-Network/intent-solver/domain/orderstandard/eip7683"
	"github.com/R3E-Network/intent-solver/infrastructure/runtime"
)

// ChainSettings configures one EVM chain the solver operates on.
type ChainSettings struct {
	ChainID       uint64
	RPCURL        string
	InputSettler  common.Address
	OutputSettler common.Address
	DisputePeriod time.Duration
	// OpenEventTopic is the deployed input settler's Open event topic
	// hash; it comes from config rather than a hardcoded signature since
	// settler contracts on different chains may be different ABI
	// versions of the same standard.
	OpenEventTopic common.Hash
	// Tokens whitelists which output tokens on this chain the solver is
	// willing to fill against; an order referencing any other token
	// fails eip7683.Standard.Validate.
	Tokens []eip7683.TokenConfig
}

// Config is the solver's full startup configuration, loaded from the
// environment by LoadConfigFromEnv or built directly by tests.
type Config struct {
	ServiceName string

	// Chains is the set of EVM chains Delivery and the eip7683 standard
	// are willing to operate on. A cross-chain solver needs at least an
	// origin and a destination, so at least two distinct chains are
	// required, each whitelisting at least one output token.
	Chains []ChainSettings

	// SignerPrivateKeyHex, if set, builds a LocalSigner. Exactly one of
	// SignerPrivateKeyHex or RemoteSignerURL must be set.
	SignerPrivateKeyHex string
	// RemoteSignerURL, if set, builds a RemoteSigner against this
	// base URL instead of holding key material in-process.
	RemoteSignerURL     string
	RemoteSignerAddress common.Address

	MinConfirmations  uint64
	MonitoringTimeout time.Duration
	PollInterval      time.Duration

	// StorageDir selects the FileBackend when set; an empty StorageDir
	// uses an in-process MemoryBackend instead, which does not survive a
	// restart and is intended for development only.
	StorageDir string

	// StrategyMinProfitWei/StrategyGasCostEstimateWei/
	// StrategyMinExecutionWindow configure the default ThresholdStrategy.
	StrategyMinProfitWei       *big.Int
	StrategyGasCostEstimateWei *big.Int
	StrategyMinExecutionWindow time.Duration

	// HTTPPollEndpoint, if set, starts an off-chain intent poll source
	// against this URL alongside the per-chain on-chain log sources.
	HTTPPollEndpoint string

	MonitoringDeadline   time.Duration
	IntentTTL            time.Duration
	StrategyRetryBackoff time.Duration

	LogLevel  string
	LogFormat string

	// MetricsEnabled overrides infrastructure/metrics.Enabled()'s own
	// environment-derived default when explicitly set via
	// LoadConfigFromEnv; left nil, the package default applies.
	MetricsEnabled *bool
}

// Validate rejects a Config that cannot be wired into a running solver.
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("bootstrap: ServiceName is required")
	}
	if len(c.Chains) < 2 {
		return fmt.Errorf("bootstrap: at least two distinct chains are required")
	}
	seen := make(map[uint64]struct{}, len(c.Chains))
	for _, ch := range c.Chains {
		if ch.RPCURL == "" {
			return fmt.Errorf("bootstrap: chain %d: RPCURL is required", ch.ChainID)
		}
		if ch.InputSettler == (common.Address{}) || ch.OutputSettler == (common.Address{}) {
			return fmt.Errorf("bootstrap: chain %d: InputSettler and OutputSettler are required", ch.ChainID)
		}
		if ch.DisputePeriod <= 0 {
			return fmt.Errorf("bootstrap: chain %d: DisputePeriod must be positive", ch.ChainID)
		}
		if ch.OpenEventTopic == (common.Hash{}) {
			return fmt.Errorf("bootstrap: chain %d: OpenEventTopic is required", ch.ChainID)
		}
		if len(ch.Tokens) == 0 {
			return fmt.Errorf("bootstrap: chain %d: at least one token is required", ch.ChainID)
		}
		if _, dup := seen[ch.ChainID]; dup {
			return fmt.Errorf("bootstrap: chain %d configured more than once", ch.ChainID)
		}
		seen[ch.ChainID] = struct{}{}
	}

	hasLocal := c.SignerPrivateKeyHex != ""
	hasRemote := c.RemoteSignerURL != ""
	if hasLocal == hasRemote {
		return fmt.Errorf("bootstrap: exactly one of SignerPrivateKeyHex or RemoteSignerURL must be set")
	}
	if hasRemote && c.RemoteSignerAddress == (common.Address{}) {
		return fmt.Errorf("bootstrap: RemoteSignerAddress is required alongside RemoteSignerURL")
	}
	return nil
}

// DefaultConfig returns a Config with every non-chain, non-signer field
// at its documented default; callers must still fill in Chains and a
// signer before it validates.
func DefaultConfig() Config {
	return Config{
		ServiceName:                "intent-solver",
		MinConfirmations:           1,
		MonitoringTimeout:          10 * time.Minute,
		PollInterval:               2 * time.Second,
		StrategyMinProfitWei:       big.NewInt(0),
		StrategyGasCostEstimateWei: big.NewInt(0),
		StrategyMinExecutionWindow: 2 * time.Minute,
		MonitoringDeadline:         480 * time.Minute,
		IntentTTL:                  7 * 24 * time.Hour,
		StrategyRetryBackoff:       30 * time.Second,
		LogLevel:                   "info",
		LogFormat:                  "text",
	}
}

// LoadConfigFromEnv builds a Config from the process environment,
// overlaying DefaultConfig. The chain whitelist itself is not encoded as
// individual scalar env vars (a deployment's chain list is operational
// data a single env var cannot reasonably hold); instead
// SOLVER_CHAINS_CONFIG, if set, names a JSON file read via
// LoadChainsFromFile.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("SOLVER_SERVICE_NAME")); v != "" {
		cfg.ServiceName = v
	}
	if v := strings.TrimSpace(os.Getenv("SOLVER_SIGNER_PRIVATE_KEY")); v != "" {
		cfg.SignerPrivateKeyHex = v
	}
	if v := strings.TrimSpace(os.Getenv("SOLVER_REMOTE_SIGNER_URL")); v != "" {
		cfg.RemoteSignerURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SOLVER_REMOTE_SIGNER_ADDRESS")); v != "" {
		cfg.RemoteSignerAddress = common.HexToAddress(v)
	}
	if v, ok := runtime.ParseEnvInt("SOLVER_MIN_CONFIRMATIONS"); ok && v > 0 {
		cfg.MinConfirmations = uint64(v)
	}
	if v, ok := runtime.ParseEnvDuration("SOLVER_MONITORING_TIMEOUT"); ok {
		cfg.MonitoringTimeout = v
	}
	if v, ok := runtime.ParseEnvDuration("SOLVER_POLL_INTERVAL"); ok {
		cfg.PollInterval = v
	}
	if v := strings.TrimSpace(os.Getenv("SOLVER_STORAGE_DIR")); v != "" {
		cfg.StorageDir = v
	}
	if v, ok := runtime.ParseEnvDuration("SOLVER_STRATEGY_MIN_WINDOW"); ok {
		cfg.StrategyMinExecutionWindow = v
	}
	if v := strings.TrimSpace(os.Getenv("SOLVER_HTTP_POLL_ENDPOINT")); v != "" {
		cfg.HTTPPollEndpoint = v
	}
	if v, ok := runtime.ParseEnvDuration("SOLVER_MONITORING_DEADLINE"); ok {
		cfg.MonitoringDeadline = v
	}
	if v, ok := runtime.ParseEnvDuration("SOLVER_INTENT_TTL"); ok {
		cfg.IntentTTL = v
	}
	if v := strings.TrimSpace(os.Getenv("SOLVER_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("SOLVER_LOG_FORMAT")); v != "" {
		cfg.LogFormat = v
	}
	if v := strings.TrimSpace(os.Getenv("SOLVER_METRICS_ENABLED")); v != "" {
		enabled := strings.EqualFold(v, "true") || v == "1"
		cfg.MetricsEnabled = &enabled
	}
	if v := strings.TrimSpace(os.Getenv("SOLVER_CHAINS_CONFIG")); v != "" {
		chains, err := LoadChainsFromFile(v)
		if err != nil {
			return cfg, err
		}
		cfg.Chains = chains
	}

	return cfg, nil
}

// chainFile is the on-disk shape LoadChainsFromFile decodes; DisputePeriod
// is a duration string (e.g. "30m") rather than a raw nanosecond count so
// the file stays readable by hand.
type chainFile struct {
	ChainID        uint64            `json:"chain_id"`
	RPCURL         string            `json:"rpc_url"`
	InputSettler   common.Address    `json:"input_settler"`
	OutputSettler  common.Address    `json:"output_settler"`
	DisputePeriod  string            `json:"dispute_period"`
	OpenEventTopic common.Hash       `json:"open_event_topic"`
	Tokens         []tokenConfigFile `json:"tokens"`
}

type tokenConfigFile struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// LoadChainsFromFile reads the chain whitelist from a JSON file: the
// operational, per-deployment list of chains a single env var cannot
// reasonably hold (see LoadConfigFromEnv's own doc comment on why chain
// wiring is not itself read from the environment).
func LoadChainsFromFile(path string) ([]ChainSettings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: read chains file: %w", err)
	}

	var files []chainFile
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, fmt.Errorf("bootstrap: parse chains file: %w", err)
	}

	out := make([]ChainSettings, 0, len(files))
	for _, f := range files {
		period, err := time.ParseDuration(f.DisputePeriod)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: chain %d: invalid dispute_period %q: %w", f.ChainID, f.DisputePeriod, err)
		}

		tokens := make([]eip7683.TokenConfig, 0, len(f.Tokens))
		for _, t := range f.Tokens {
			tokens = append(tokens, eip7683.TokenConfig{Address: t.Address, Symbol: t.Symbol, Decimals: t.Decimals})
		}

		out = append(out, ChainSettings{
			ChainID:        f.ChainID,
			RPCURL:         f.RPCURL,
			InputSettler:   f.InputSettler,
			OutputSettler:  f.OutputSettler,
			DisputePeriod:  period,
			OpenEventTopic: f.OpenEventTopic,
			Tokens:         tokens,
		})
	}
	return out, nil
}
