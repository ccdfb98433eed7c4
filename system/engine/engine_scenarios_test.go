package engine_test

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/intent-solver/domain/chaintx"
	"github.com/R3E-Network/intent-solver/domain/intent"
	"github.com/R3E-Network/intent-solver/domain/order"
	"github.com/R3E-Network/intent-solver/domain/orderstandard"
	"github.com/R3E-Network/intent-solver/domain/settlement"
	"github.com/R3E-Network/intent-solver/infrastructure/storage"
	"github.com/R3E-Network/intent-solver/system/engine"
	"github.com/R3E-Network/intent-solver/system/eventbus"
)

// This file carries the end-to-end scenarios (S1-S6): fake Delivery,
// Discovery (driven directly through the bus), OrderStandard, and
// Settlement test doubles, no real chain I/O.

// TestScenario_S1_OnChainHappyPath: an on-chain intent needs no prepare
// step and reaches Finalized with exactly one fill and one claim tx.
func TestScenario_S1_OnChainHappyPath(t *testing.T) {
	delivery := &fakeDelivery{}
	e, bus, store := newTestEngine(t, fakeStandard{tag: "testproto"}, alwaysExecute{}, delivery)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	i := intent.New("s1-order", intent.SourceOnChain, "testproto", []byte("payload"), time.Now())
	require.NoError(t, bus.Publish(ctx, eventbus.Event{Kind: eventbus.KindIntentDiscovered, Intent: i}))

	final := waitForStatus(t, ctx, store, "s1-order", order.StatusFinalized)
	require.Empty(t, final.PrepareTxHash, "on-chain intent needs no prepare transaction")
	require.NotEmpty(t, final.FillTxHash)
	require.NotEmpty(t, final.ClaimTxHash)

	var fills, claims int
	for _, tx := range delivery.submitted {
		switch tx.Kind {
		case order.TxKindFill:
			fills++
		case order.TxKindClaim:
			claims++
		}
	}
	require.Equal(t, 1, fills)
	require.Equal(t, 1, claims)
}

// TestScenario_S2_DuplicateIntent: the same intent id rediscovered within
// a second of the first must not create a second order or submit any
// further transaction.
func TestScenario_S2_DuplicateIntent(t *testing.T) {
	delivery := &fakeDelivery{}
	e, bus, store := newTestEngine(t, fakeStandard{tag: "testproto"}, alwaysExecute{}, delivery)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	i := intent.New("s2-order", intent.SourceOnChain, "testproto", []byte("payload"), time.Now())
	require.NoError(t, bus.Publish(ctx, eventbus.Event{Kind: eventbus.KindIntentDiscovered, Intent: i}))
	waitForStatus(t, ctx, store, "s2-order", order.StatusFinalized)

	submittedBefore := len(delivery.submitted)
	require.NoError(t, bus.Publish(ctx, eventbus.Event{Kind: eventbus.KindIntentDiscovered, Intent: i}))
	time.Sleep(50 * time.Millisecond)

	require.Len(t, delivery.submitted, submittedBefore)
	var fills, claims int
	for _, tx := range delivery.submitted {
		switch tx.Kind {
		case order.TxKindFill:
			fills++
		case order.TxKindClaim:
			claims++
		}
	}
	require.Equal(t, 1, fills, "exactly one fill tx for the duplicated intent")
	require.Equal(t, 1, claims, "exactly one claim tx for the duplicated intent")
}

// sponsoredStandard requires a prepare transaction on the origin chain
// before it will fill, the off-chain/sponsored path spec.md §4.11 and
// orderstandard.Standard.PrepareTx describe.
type sponsoredStandard struct {
	fakeStandard
}

func (s sponsoredStandard) PrepareTx(o order.Order) (chaintx.UnsignedTx, bool, error) {
	return chaintx.UnsignedTx{Kind: order.TxKindPrepare, ChainID: o.OriginChainID, To: common.HexToAddress("0xopen"), Value: big.NewInt(0)}, true, nil
}

var _ orderstandard.Standard = sponsoredStandard{}

// TestScenario_S3_OffChainIntentRequiresPrepare: a sponsored intent moves
// Created -> Pending via a prepare tx on the origin chain before the fill
// is ever attempted on the destination chain.
func TestScenario_S3_OffChainIntentRequiresPrepare(t *testing.T) {
	delivery := &fakeDelivery{}
	e, bus, store := newTestEngine(t, sponsoredStandard{fakeStandard{tag: "sponsored"}}, alwaysExecute{}, delivery)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	i := intent.New("s3-order", intent.SourceOffChain, "sponsored", []byte("payload"), time.Now())
	require.NoError(t, bus.Publish(ctx, eventbus.Event{Kind: eventbus.KindIntentDiscovered, Intent: i}))

	final := waitForStatus(t, ctx, store, "s3-order", order.StatusFinalized)
	require.NotEmpty(t, final.PrepareTxHash, "sponsored intent must submit a prepare transaction")
	require.NotEmpty(t, final.FillTxHash)

	require.True(t, len(delivery.submitted) >= 2)
	require.Equal(t, order.TxKindPrepare, delivery.submitted[0].Kind, "prepare must be submitted before fill")
	var sawPrepare bool
	for _, tx := range delivery.submitted {
		if tx.Kind == order.TxKindPrepare {
			sawPrepare = true
			require.Equal(t, final.OriginChainID, tx.ChainID, "prepare runs on the origin chain")
		}
		if tx.Kind == order.TxKindFill {
			require.True(t, sawPrepare, "fill must not precede prepare")
		}
	}
}

// TestScenario_S4_FillReverts: a reverted fill transaction fails the order
// at StageFill, with no claim ever attempted.
func TestScenario_S4_FillReverts(t *testing.T) {
	delivery := &revertingFillDelivery{}
	registry, err := orderstandard.NewRegistry(fakeStandard{tag: "testproto"})
	require.NoError(t, err)
	bus := eventbus.New(eventbus.DefaultConfig())
	store := storage.New(storage.NewMemoryBackend(0))
	e := engine.New(engine.DefaultConfig(), engine.Deps{
		Store:    store,
		Bus:      bus,
		Registry: registry,
		Strategy: alwaysExecute{},
		Settle:   settlement.New(nil),
		Delivery: delivery,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	i := intent.New("s4-order", intent.SourceOnChain, "testproto", []byte("payload"), time.Now())
	require.NoError(t, bus.Publish(ctx, eventbus.Event{Kind: eventbus.KindIntentDiscovered, Intent: i}))

	failed := waitForStatus(t, ctx, store, "s4-order", order.StatusFailed)
	require.Equal(t, order.StageFill, failed.FailureStage)
	require.False(t, failed.PendingAt.IsZero(), "order passed through Pending before failing")
	require.True(t, failed.ExecutedAt.IsZero(), "a reverted fill must never reach Executed")
	require.Empty(t, failed.ClaimTxHash, "no claim is ever attempted for a reverted fill")

	for _, tx := range delivery.submitted {
		require.NotEqual(t, order.TxKindClaim, tx.Kind)
	}
}

// disputeProofStandard derives a FillProof whose ReadyAt sits a fixed
// window after the fill confirms, so IsClaimReady genuinely waits rather
// than approving the claim immediately like fakeStandard does.
type disputeProofStandard struct {
	fakeStandard
	disputePeriod time.Duration
}

func (s disputeProofStandard) DeriveProof(o order.Order, confirmation chaintx.ConfirmationResult) (order.FillProof, error) {
	return order.FillProof{
		OrderID:            o.ID,
		DestinationChainID: o.DestinationChainID,
		FillTxHash:         confirmation.Receipt.TxHash.Hex(),
		ReadyAt:            confirmation.ObservedAt.Add(s.disputePeriod),
	}, nil
}

var _ orderstandard.Standard = disputeProofStandard{}

// TestScenario_S5_DisputePeriodWaiting: no claim is submitted before the
// dispute period elapses, and the order finalizes shortly after it does.
func TestScenario_S5_DisputePeriodWaiting(t *testing.T) {
	const disputePeriod = 150 * time.Millisecond

	delivery := &fakeDelivery{}
	registry, err := orderstandard.NewRegistry(disputeProofStandard{fakeStandard{tag: "testproto"}, disputePeriod})
	require.NoError(t, err)
	bus := eventbus.New(eventbus.DefaultConfig())
	store := storage.New(storage.NewMemoryBackend(0))

	cfg := engine.DefaultConfig()
	cfg.StrategyRetryBackoff = 20 * time.Millisecond
	eng := engine.New(cfg, engine.Deps{
		Store:    store,
		Bus:      bus,
		Registry: registry,
		Strategy: alwaysExecute{},
		Settle:   settlement.New(nil),
		Delivery: delivery,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	i := intent.New("s5-order", intent.SourceOnChain, "testproto", []byte("payload"), time.Now())
	start := time.Now()
	require.NoError(t, bus.Publish(ctx, eventbus.Event{Kind: eventbus.KindIntentDiscovered, Intent: i}))

	waitForStatus(t, ctx, store, "s5-order", order.StatusSettled)
	require.Empty(t, claimHashOf(t, ctx, store, "s5-order"), "claim must not submit before the dispute period elapses")

	final := waitForStatus(t, ctx, store, "s5-order", order.StatusFinalized)
	require.GreaterOrEqual(t, time.Since(start), disputePeriod, "claim must not finalize before the dispute period elapses")
	require.NotEmpty(t, final.ClaimTxHash)
}

func claimHashOf(t *testing.T, ctx context.Context, store *storage.Store, orderID string) string {
	t.Helper()
	raw, err := store.Get(ctx, storage.NamespaceOrders, orderID)
	require.NoError(t, err)
	var o order.Order
	require.NoError(t, json.Unmarshal(raw, &o))
	return o.ClaimTxHash
}

// restartableDelivery wraps fakeDelivery with a per-hash confirmation
// call counter, so a test can assert a transaction's confirmation was
// only ever observed once even across a simulated engine restart.
type restartableDelivery struct {
	fakeDelivery
	mu    sync.Mutex
	calls map[common.Hash]int
}

func (f *restartableDelivery) WaitForConfirmation(ctx context.Context, orderID string, chainID uint64, txHash common.Hash) (chaintx.ConfirmationResult, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[common.Hash]int)
	}
	f.calls[txHash]++
	f.mu.Unlock()
	return f.fakeDelivery.WaitForConfirmation(ctx, orderID, chainID, txHash)
}

func (f *restartableDelivery) callCount(hash common.Hash) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[hash]
}

// TestScenario_S6_RestartMidFlight: an engine crash after the fill
// confirms but before the claim submits must not replay the fill
// confirmation on restart, and the order must still reach Finalized.
func TestScenario_S6_RestartMidFlight(t *testing.T) {
	const disputePeriod = 150 * time.Millisecond

	delivery := &restartableDelivery{}
	registry, err := orderstandard.NewRegistry(disputeProofStandard{fakeStandard{tag: "testproto"}, disputePeriod})
	require.NoError(t, err)
	bus := eventbus.New(eventbus.DefaultConfig())
	store := storage.New(storage.NewMemoryBackend(0))

	cfg := engine.DefaultConfig()
	eng1 := engine.New(cfg, engine.Deps{
		Store:    store,
		Bus:      bus,
		Registry: registry,
		Strategy: alwaysExecute{},
		Settle:   settlement.New(nil),
		Delivery: delivery,
	})

	ctx1, cancel1 := context.WithCancel(context.Background())
	go eng1.Run(ctx1)

	i := intent.New("s6-order", intent.SourceOnChain, "testproto", []byte("payload"), time.Now())
	require.NoError(t, bus.Publish(ctx1, eventbus.Event{Kind: eventbus.KindIntentDiscovered, Intent: i}))

	// Fill has confirmed and the order is Settled, but the dispute
	// period has not elapsed yet, so no claim has been submitted.
	waitForStatus(t, ctx1, store, "s6-order", order.StatusSettled)
	var fillHash common.Hash
	for idx, tx := range delivery.submitted {
		require.NotEqual(t, order.TxKindClaim, tx.Kind, "claim must not be submitted before the crash")
		if tx.Kind == order.TxKindFill {
			fillHash = common.BigToHash(big.NewInt(int64(idx + 1)))
		}
	}
	require.Equal(t, 1, delivery.callCount(fillHash), "fill confirmation observed exactly once before the crash")

	// Simulate a crash: the old engine and its timers are gone, but the
	// bus and store (the durable state) survive.
	cancel1()
	time.Sleep(10 * time.Millisecond)

	eng2 := engine.New(cfg, engine.Deps{
		Store:    store,
		Bus:      bus,
		Registry: registry,
		Strategy: alwaysExecute{},
		Settle:   settlement.New(nil),
		Delivery: delivery,
	})
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	require.NoError(t, eng2.Recover(ctx2))
	go eng2.Run(ctx2)

	final := waitForStatus(t, ctx2, store, "s6-order", order.StatusFinalized)
	require.NotEmpty(t, final.ClaimTxHash)

	var fills int
	for _, tx := range delivery.submitted {
		if tx.Kind == order.TxKindFill {
			fills++
		}
	}
	require.Equal(t, 1, fills, "restart must not resubmit or re-confirm the fill")
	require.Equal(t, 1, delivery.callCount(fillHash), "recovery must not re-arm a monitor that replays the fill confirmation")
}
