// Package engine is the orchestration engine: it subscribes to every
// event on the bus, drives Discovery/Strategy/Order-Standard/Delivery/
// Settlement through their capability interfaces, and owns the only
// writable copy of every Order and TransactionRecord. No other
// component may mutate an Order; everything else receives immutable
// snapshots and proposes the next event.
package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/R3E-Network/intent-solver/domain/order"
	"github.com/R3E-Network/intent-solver/domain/orderstandard"
	"github.com/R3E-Network/intent-solver/domain/settlement"
	"github.com/R3E-Network/intent-solver/domain/strategy"
	"github.com/R3E-Network/intent-solver/infrastructure/metrics"
	"github.com/R3E-Network/intent-solver/infrastructure/storage"
	"github.com/R3E-Network/intent-solver/pkg/logger"
	"github.com/R3E-Network/intent-solver/system/eventbus"
)

// allKinds is every event family the engine itself must react to.
var allKinds = []eventbus.Kind{
	eventbus.KindIntentDiscovered,
	eventbus.KindOrderValidated,
	eventbus.KindOrderPreparing,
	eventbus.KindOrderExecuting,
	eventbus.KindDeliveryTxConfirmed,
	eventbus.KindDeliveryTxFailed,
	eventbus.KindSettlementClaimReady,
}

// Engine is the orchestrator. Construct with New, then call Run once.
type Engine struct {
	store    *storage.Store
	bus      *eventbus.Bus
	registry orderstandard.Registry
	strategy strategy.Strategy
	settle   settlement.Settlement
	delivery DeliveryClient
	cfg      Config
	clock    func() time.Time

	locks  *lockTable
	timers *timerQueue
	log    *logger.Logger
	metric *metrics.Metrics
	name   string

	runCtx context.Context
}

// Deps bundles every collaborator the engine calls through a capability
// interface. None of these are owned by the engine; it only calls them.
type Deps struct {
	Store    *storage.Store
	Bus      *eventbus.Bus
	Registry orderstandard.Registry
	Strategy strategy.Strategy
	Settle   settlement.Settlement
	Delivery DeliveryClient
	Clock    func() time.Time
	Log      *logger.Logger
	// Metrics is optional; a nil Metrics disables all instrumentation
	// rather than requiring every caller to wire a registry in tests.
	Metrics     *metrics.Metrics
	ServiceName string
}

// New builds an Engine. Call Recover once before Run on a restart to
// re-arm timers from persisted state; a cold start may skip it.
func New(cfg Config, deps Deps) *Engine {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Log == nil {
		deps.Log = logger.NewDefault("engine")
	}
	if deps.ServiceName == "" {
		deps.ServiceName = "intent-solver"
	}
	return &Engine{
		store:    deps.Store,
		bus:      deps.Bus,
		registry: deps.Registry,
		strategy: deps.Strategy,
		settle:   deps.Settle,
		delivery: deps.Delivery,
		cfg:      cfg,
		clock:    deps.Clock,
		locks:    newLockTable(),
		timers:   newTimerQueue(),
		log:      deps.Log,
		metric:   deps.Metrics,
		name:     deps.ServiceName,
	}
}

// Run subscribes to the bus and processes events until ctx is
// cancelled. It returns once every in-flight handler has observed
// cancellation; it does not cancel the underlying on-chain transactions
// Delivery is still monitoring, per this engine's cancellation contract.
func (e *Engine) Run(ctx context.Context) {
	e.runCtx = ctx
	events := e.bus.Subscribe(allKinds...)

	for {
		select {
		case <-ctx.Done():
			e.timers.StopAll()
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.dispatch(ctx, ev)
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, ev eventbus.Event) {
	switch ev.Kind {
	case eventbus.KindIntentDiscovered:
		e.handleIntentDiscovered(ctx, ev)
	case eventbus.KindOrderValidated:
		e.handleOrderValidated(ctx, ev)
	case eventbus.KindOrderPreparing:
		e.handleOrderPreparing(ctx, ev)
	case eventbus.KindOrderExecuting:
		e.handleOrderExecuting(ctx, ev)
	case eventbus.KindDeliveryTxConfirmed:
		e.handleTxConfirmed(ctx, ev)
	case eventbus.KindDeliveryTxFailed:
		e.handleTxFailed(ctx, ev)
	case eventbus.KindSettlementClaimReady:
		e.handleClaimReady(ctx, ev)
	}
}

// recordTransition and recordFailure are nil-safe: a nil metric (the
// default in tests that don't construct a registry) makes every call
// here a no-op rather than requiring every test to wire one.
func (e *Engine) recordTransition(standard string, t order.Transition) {
	if e.metric == nil {
		return
	}
	e.metric.RecordOrderTransition(e.name, standard, string(t))
}

func (e *Engine) recordFailure(standard string, stage order.FailureStage) {
	if e.metric == nil {
		return
	}
	e.metric.RecordOrderFailure(e.name, standard, string(stage))
}

func (e *Engine) recordTxSubmit(chainID uint64, kind order.TxKind, status string) {
	if e.metric == nil {
		return
	}
	e.metric.RecordTxSubmit(e.name, strconv.FormatUint(chainID, 10), string(kind), status)
}

func (e *Engine) recordTxConfirmDuration(chainID uint64, kind order.TxKind, status string, d time.Duration) {
	if e.metric == nil {
		return
	}
	e.metric.RecordTxConfirmDuration(e.name, strconv.FormatUint(chainID, 10), string(kind), status, d)
}

func (e *Engine) incDisputeWait() {
	if e.metric == nil {
		return
	}
	e.metric.IncDisputeWaitActive(e.name)
}

func (e *Engine) decDisputeWait() {
	if e.metric == nil {
		return
	}
	e.metric.DecDisputeWaitActive(e.name)
}

// monitorCtx returns the engine's running context for long-lived
// background tasks (confirmation waits, timer callbacks) spawned
// outside of a single dispatch call. It falls back to Background if
// Run has not been called yet, which only happens in tests that drive
// handlers directly.
func (e *Engine) monitorCtx() context.Context {
	if e.runCtx != nil {
		return e.runCtx
	}
	return context.Background()
}
