// Package delivery implements the Delivery capability: submitting chain
// transactions, waiting for confirmation (with reorg detection), and
// reading the live balance/allowance/gas-price state the strategy and
// approvals layers need. One Client wraps a go-ethereum ethclient.Client
// per configured chain, grounded on the retrieved EVM solver reference's
// use of ethclient for submission and CallContract for read-only ERC20
// calls.
package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/R3E-Network/intent-solver/infrastructure/resilience"
	"github.com/R3E-Network/intent-solver/infrastructure/signer"
)

// ChainEndpoint is one chain's RPC connection and per-chain tuning.
type ChainEndpoint struct {
	ChainID uint64
	Client  *ethclient.Client
}

// Config holds the cross-chain wiring Client needs.
type Config struct {
	Endpoints         []ChainEndpoint
	MinConfirmations  uint64
	MonitoringTimeout time.Duration
	PollInterval      time.Duration
}

// Client is the concrete Delivery implementation.
type Client struct {
	clients           map[uint64]*ethclient.Client
	signer            signer.Signer
	minConfirmations  uint64
	monitoringTimeout time.Duration
	pollInterval      time.Duration

	nonceMu sync.Mutex
	nonces  map[uint64]uint64

	retry    resilience.RetryConfig
	breakers map[uint64]*resilience.CircuitBreaker
}

// New builds a Client from cfg, signing every submitted transaction with s.
func New(cfg Config, s signer.Signer) *Client {
	clients := make(map[uint64]*ethclient.Client, len(cfg.Endpoints))
	breakers := make(map[uint64]*resilience.CircuitBreaker, len(cfg.Endpoints))
	for _, e := range cfg.Endpoints {
		clients[e.ChainID] = e.Client
		breakers[e.ChainID] = resilience.New(resilience.DefaultConfig())
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	monitoringTimeout := cfg.MonitoringTimeout
	if monitoringTimeout <= 0 {
		monitoringTimeout = 10 * time.Minute
	}
	minConfirmations := cfg.MinConfirmations
	if minConfirmations == 0 {
		minConfirmations = 1
	}

	return &Client{
		clients:           clients,
		signer:            s,
		minConfirmations:  minConfirmations,
		monitoringTimeout: monitoringTimeout,
		pollInterval:      pollInterval,
		nonces:            make(map[uint64]uint64),
		retry:             resilience.DefaultRetryConfig(),
		breakers:          breakers,
	}
}

// SolverAddress returns the address transactions are signed and submitted
// from, satisfying strategy.Context.
func (c *Client) SolverAddress() common.Address {
	return c.signer.Address()
}

func (c *Client) chainClient(chainID uint64) (*ethclient.Client, error) {
	cl, ok := c.clients[chainID]
	if !ok {
		return nil, unknownChainError(chainID)
	}
	return cl, nil
}

type unknownChainError uint64

func (e unknownChainError) Error() string {
	return "delivery: no endpoint configured for chain"
}

// rpcCall runs fn through chainID's circuit breaker with exponential
// backoff retry between attempts: a single flaky RPC call gets retried
// in place, and a chain whose node is down altogether trips its breaker
// so the engine's dispatch loop stops hammering it between polls.
func (c *Client) rpcCall(ctx context.Context, chainID uint64, fn func() error) error {
	cb, ok := c.breakers[chainID]
	if !ok {
		return resilience.Retry(ctx, c.retry, fn)
	}
	return cb.Execute(func() error {
		return resilience.Retry(ctx, c.retry, fn)
	})
}
