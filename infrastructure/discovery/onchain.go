package discovery

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/R3E-Network/intent-solver/domain/intent"
	"github.com/R3E-Network/intent-solver/pkg/logger"
)

// LogClient is the subset of ethclient.Client OnChainLogSource needs,
// kept narrow so tests can fake it without a live node.
type LogClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error)
}

// OnChainLogSourceConfig configures one chain's open-event feed.
type OnChainLogSourceConfig struct {
	ChainID       uint64
	Client        LogClient
	Contract      common.Address
	Topic         common.Hash
	StandardTag   string
	PollInterval  time.Duration
	Confirmations uint64
	StartBlock    uint64
	Decode        Decoder
	Trace         TraceLog
}

// OnChainLogSource polls a single contract address for a single event
// topic across confirmed blocks, decoding each matching log through the
// injected Decoder and emitting one Intent per log. It never interprets
// the log itself: standard-specific decoding is entirely Decode's job,
// so this type stays usable for any order standard without importing
// one.
type OnChainLogSource struct {
	cfg       OnChainLogSourceConfig
	lastBlock uint64
	mu        sync.Mutex
	log       *logger.Logger
}

// NewOnChainLogSource builds a source starting from cfg.StartBlock.
func NewOnChainLogSource(cfg OnChainLogSourceConfig, log *logger.Logger) *OnChainLogSource {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("discovery.onchain")
	}
	return &OnChainLogSource{cfg: cfg, lastBlock: cfg.StartBlock, log: log}
}

// Run implements Source.
func (s *OnChainLogSource) Run(ctx context.Context, sink Sink) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.pollOnce(ctx, sink)
		}
	}
}

func (s *OnChainLogSource) pollOnce(ctx context.Context, sink Sink) {
	started := time.Now()

	head, err := s.cfg.Client.BlockNumber(ctx)
	if err != nil {
		s.log.WithField("chain_id", s.cfg.ChainID).WithError(err).Warn("discovery: failed to read chain head")
		return
	}
	if s.cfg.Confirmations > 0 {
		if head < s.cfg.Confirmations {
			return
		}
		head -= s.cfg.Confirmations
	}

	s.mu.Lock()
	from := s.lastBlock
	s.mu.Unlock()
	if from == 0 {
		from = head
	}
	if from >= head {
		return
	}

	logs, err := s.cfg.Client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from + 1),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{s.cfg.Contract},
		Topics:    [][]common.Hash{{s.cfg.Topic}},
	})
	if err != nil {
		s.log.WithField("chain_id", s.cfg.ChainID).WithError(err).Warn("discovery: filter logs failed")
		return
	}

	for _, l := range logs {
		payload, err := s.cfg.Decode(l)
		if err != nil {
			s.log.WithFields(map[string]interface{}{
				"chain_id": s.cfg.ChainID,
				"tx_hash":  l.TxHash.Hex(),
			}).WithError(err).Warn("discovery: failed to decode log into intent payload")
			continue
		}

		discovered := intent.New(
			intentID(l),
			intent.SourceOnChain,
			s.cfg.StandardTag,
			payload,
			time.Now().UTC(),
		)
		s.cfg.Trace.Discovered(discovered)

		if err := sink.Offer(ctx, discovered); err != nil {
			return
		}
	}

	s.mu.Lock()
	s.lastBlock = head
	s.mu.Unlock()

	s.cfg.Trace.PollCycle(fmt.Sprintf("onchain:%d", s.cfg.ChainID), len(logs), time.Since(started))
}

func intentID(l gethtypes.Log) string {
	return fmt.Sprintf("%s:%d", l.TxHash.Hex(), l.Index)
}
