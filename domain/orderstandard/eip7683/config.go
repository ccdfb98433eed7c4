package eip7683

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TokenConfig describes one whitelisted token on one chain.
type TokenConfig struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// ChainConfig describes the settler contracts and token whitelist for one
// chain this standard is willing to operate on.
type ChainConfig struct {
	ChainID       uint64
	InputSettler  common.Address
	OutputSettler common.Address
	Tokens        map[common.Address]TokenConfig
	// DisputePeriod is the interval between a confirmed fill and the
	// earliest admissible claim on this chain's escrow.
	DisputePeriod time.Duration
}

func (c ChainConfig) disputePeriod() time.Duration {
	return c.DisputePeriod
}

// Config is the full set of chains this Standard instance validates
// intents and builds transactions against. Settler and token addresses
// come from config, never from the untrusted intent payload itself.
type Config struct {
	Chains map[uint64]ChainConfig
}

func (c Config) chain(id uint64) (ChainConfig, bool) {
	cc, ok := c.Chains[id]
	return cc, ok
}

func (c ChainConfig) tokenWhitelisted(addr common.Address) bool {
	_, ok := c.Tokens[addr]
	return ok
}
