package bootstrap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/intent-solver/domain/order"
	"github.com/R3E-Network/intent-solver/domain/orderstandard"
	"github.com/R3E-Network/intent-solver/domain/orderstandard/eip7683"
	"github.com/R3E-Network/intent-solver/domain/settlement"
	"github.com/R3E-Network/intent-solver/domain/strategy"
	"github.com/R3E-Network/intent-solver/infrastructure/approvals"
	"github.com/R3E-Network/intent-solver/infrastructure/delivery"
	"github.com/R3E-Network/intent-solver/infrastructure/discovery"
	"github.com/R3E-Network/intent-solver/infrastructure/metrics"
	"github.com/R3E-Network/intent-solver/infrastructure/signer"
	"github.com/R3E-Network/intent-solver/infrastructure/storage"
	"github.com/R3E-Network/intent-solver/pkg/logger"
	"github.com/R3E-Network/intent-solver/system/engine"
	"github.com/R3E-Network/intent-solver/system/eventbus"
)

// System holds every component Bootstrap wires together: the running
// Engine plus the Discovery sources that feed it and the Sink they feed
// through.
type System struct {
	Engine  *engine.Engine
	Bus     *eventbus.Bus
	Store   *storage.Store
	Metrics *metrics.Metrics

	// RunID identifies this process instance in logs; it has no
	// persisted meaning and is regenerated on every restart.
	RunID string

	delivery *delivery.Client
	chains   []ChainSettings

	sources []discovery.Source
	sink    *discovery.BoundedSink
	log     *logger.Logger

	approvalRefresh *cron.Cron

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New validates cfg and wires every component into a ready-to-Start
// System. No network calls are made (chain dialing happens here, but
// engine.Recover and the discovery sources themselves do not run until
// Start).
func New(cfg Config) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.New(logger.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})

	var m *metrics.Metrics
	enabled := metrics.Enabled()
	if cfg.MetricsEnabled != nil {
		enabled = *cfg.MetricsEnabled
	}
	if enabled {
		m = metrics.Init(cfg.ServiceName)
	}

	var backend storage.Backend
	if cfg.StorageDir != "" {
		fb, err := storage.NewFileBackend(cfg.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: open file storage: %w", err)
		}
		backend = fb
	} else {
		backend = storage.NewMemoryBackend(time.Minute)
	}
	store := storage.New(backend)
	if m != nil {
		store = store.WithMetrics(m, cfg.ServiceName)
	}

	s, err := buildSigner(cfg)
	if err != nil {
		return nil, err
	}

	endpoints := make([]delivery.ChainEndpoint, 0, len(cfg.Chains))
	chainConfigs := make(map[uint64]eip7683.ChainConfig, len(cfg.Chains))
	for _, ch := range cfg.Chains {
		client, err := ethclient.Dial(ch.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: dial chain %d: %w", ch.ChainID, err)
		}
		endpoints = append(endpoints, delivery.ChainEndpoint{ChainID: ch.ChainID, Client: client})

		tokens := make(map[common.Address]eip7683.TokenConfig, len(ch.Tokens))
		for _, t := range ch.Tokens {
			tokens[t.Address] = t
		}
		chainConfigs[ch.ChainID] = eip7683.ChainConfig{
			ChainID:       ch.ChainID,
			InputSettler:  ch.InputSettler,
			OutputSettler: ch.OutputSettler,
			Tokens:        tokens,
			DisputePeriod: ch.DisputePeriod,
		}
	}

	deliveryClient := delivery.New(delivery.Config{
		Endpoints:         endpoints,
		MinConfirmations:  cfg.MinConfirmations,
		MonitoringTimeout: cfg.MonitoringTimeout,
		PollInterval:      cfg.PollInterval,
	}, s)

	eip7683Std := eip7683.New(eip7683.Config{Chains: chainConfigs}, store, nil)
	registry, err := orderstandard.NewRegistry(eip7683Std)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build order standard registry: %w", err)
	}

	strat := strategy.ThresholdStrategy{
		MinProfitWei:       cfg.StrategyMinProfitWei,
		GasCostEstimateWei: cfg.StrategyGasCostEstimateWei,
		MinExecutionWindow: cfg.StrategyMinExecutionWindow,
	}

	bus := eventbus.New(eventbus.DefaultConfig())
	settle := settlement.New(nil)

	eng := engine.New(engine.Config{
		MonitoringDeadline:   cfg.MonitoringDeadline,
		ClaimBatchSize:       1,
		IntentTTL:            cfg.IntentTTL,
		StrategyRetryBackoff: cfg.StrategyRetryBackoff,
	}, engine.Deps{
		Store:       store,
		Bus:         bus,
		Registry:    registry,
		Strategy:    strat,
		Settle:      settle,
		Delivery:    deliveryClient,
		Log:         log,
		Metrics:     m,
		ServiceName: cfg.ServiceName,
	})

	sink := discovery.NewBoundedSink(discovery.DefaultBoundedSinkConfig(), log)
	if m != nil {
		sink = sink.WithMetrics(m, cfg.ServiceName)
	}

	sources := make([]discovery.Source, 0, len(cfg.Chains)+1)
	for _, ch := range cfg.Chains {
		client, err := ethclient.Dial(ch.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: dial chain %d for discovery: %w", ch.ChainID, err)
		}
		sources = append(sources, discovery.NewOnChainLogSource(discovery.OnChainLogSourceConfig{
			ChainID:       ch.ChainID,
			Client:        client,
			Contract:      ch.InputSettler,
			Topic:         ch.OpenEventTopic,
			StandardTag:   "eip7683",
			Confirmations: cfg.MinConfirmations,
			Decode:        eip7683OpenLogDecoder,
		}, log))
	}
	if cfg.HTTPPollEndpoint != "" {
		sources = append(sources, discovery.NewHTTPPollSource(discovery.HTTPPollSourceConfig{
			Endpoint: cfg.HTTPPollEndpoint,
		}, log))
	}

	return &System{
		Engine:   eng,
		Bus:      bus,
		Store:    store,
		Metrics:  m,
		RunID:    uuid.New().String(),
		delivery: deliveryClient,
		chains:   cfg.Chains,
		sources:  sources,
		sink:     sink,
		log:      log,
	}, nil
}

// eip7683OpenLogDecoder extracts the packed order payload from an open
// event's log: the event's data field carries exactly the opaque bytes
// eip7683.Standard.Validate expects, with no further ABI unpacking
// needed at the Discovery layer per this package's Decoder contract.
func eip7683OpenLogDecoder(log gethtypes.Log) ([]byte, error) {
	return log.Data, nil
}

func buildSigner(cfg Config) (signer.Signer, error) {
	if cfg.SignerPrivateKeyHex != "" {
		return signer.NewLocalSignerFromHex(cfg.SignerPrivateKeyHex)
	}
	return signer.NewRemoteSigner(signer.RemoteSignerConfig{
		BaseURL: cfg.RemoteSignerURL,
		Address: cfg.RemoteSignerAddress,
	})
}

// Start brings the solver online: tops up any output-token approval
// shortfall against every configured chain's settler, schedules that same
// top-up to repeat every six hours (an allowance can be revoked out from
// under the solver by the token owner or the settler contract itself),
// re-arms timers from persisted state, begins the engine's dispatch loop,
// bridges the intent sink into IntentDiscovered events, and starts every
// Discovery source.
func (s *System) Start(ctx context.Context) error {
	if err := s.ensureStartupApprovals(ctx); err != nil {
		return fmt.Errorf("bootstrap: ensure startup approvals: %w", err)
	}

	s.approvalRefresh = cron.New()
	if _, err := s.approvalRefresh.AddFunc("@every 6h", func() {
		if err := s.ensureStartupApprovals(ctx); err != nil {
			s.log.WithError(err).Warn("bootstrap: periodic approval refresh failed")
		}
	}); err != nil {
		return fmt.Errorf("bootstrap: schedule approval refresh: %w", err)
	}
	s.approvalRefresh.Start()

	if err := s.Engine.Recover(ctx); err != nil {
		return fmt.Errorf("bootstrap: recover engine state: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Engine.Run(runCtx)
	}()

	s.wg.Add(1)
	go s.bridgeIntents(runCtx)

	for _, src := range s.sources {
		src := src
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := src.Run(runCtx, s.sink); err != nil && runCtx.Err() == nil {
				s.log.WithError(err).Error("bootstrap: discovery source exited")
			}
		}()
	}

	s.log.WithField("run_id", s.RunID).Info("solver started")
	return nil
}

// bridgeIntents drains the sink and republishes every admitted intent as
// an IntentDiscovered event, the hand-off point between Discovery's
// push-to-channel contract and the engine's pull-from-bus one.
func (s *System) bridgeIntents(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case i, ok := <-s.sink.Intents():
			if !ok {
				return
			}
			if err := s.Bus.Publish(ctx, eventbus.Event{Kind: eventbus.KindIntentDiscovered, Intent: i}); err != nil {
				s.log.WithError(err).Warn("bootstrap: failed to publish discovered intent")
			}
		}
	}
}

// Stop cancels every background goroutine and waits for them to exit.
func (s *System) Stop() {
	if s.approvalRefresh != nil {
		<-s.approvalRefresh.Stop().Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.log.Info("solver stopped")
}

// ensureStartupApprovals grants the configured output settler on every
// chain a standing allowance over every whitelisted token at startup, so
// per-fill approval calls stay off the hot path between a confirmed quote
// and the fill deadline. Start runs it again on a six-hourly refresh.
func (s *System) ensureStartupApprovals(ctx context.Context) error {
	for _, ch := range s.chains {
		if len(ch.Tokens) == 0 {
			continue
		}
		outputs := make([]order.Output, 0, len(ch.Tokens))
		for _, t := range ch.Tokens {
			outputs = append(outputs, order.Output{Token: t.Address.Hex(), Amount: math.MaxBig256})
		}
		synthetic := order.Order{DestinationChainID: ch.ChainID, Outputs: outputs}
		if err := approvals.EnsureOutputApprovals(ctx, s.delivery, synthetic, ch.OutputSettler); err != nil {
			return fmt.Errorf("chain %d: %w", ch.ChainID, err)
		}
	}
	return nil
}
