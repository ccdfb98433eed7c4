package engine_test

import (
	"context"
	"sync/atomic"
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

// revertingFillDelivery confirms every transaction normally except Fill
// transactions, which it reports as reverted, exercising the StageFill
// failure path.
type revertingFillDelivery struct {
	fakeDelivery
}

func (f *revertingFillDelivery) WaitForConfirmation(ctx context.Context, orderID string, chainID uint64, txHash common.Hash) (chaintx.ConfirmationResult, error) {
	for _, tx := range f.submitted {
		if tx.Kind == order.TxKindFill {
			return chaintx.ConfirmationResult{
				Status:     chaintx.ConfirmationFailed,
				Reason:     chaintx.FailureReverted,
				ObservedAt: time.Now(),
			}, nil
		}
	}
	return f.fakeDelivery.WaitForConfirmation(ctx, orderID, chainID, txHash)
}

func TestEngine_FillReverts_FailsOrderAtFillStage(t *testing.T) {
	delivery := &revertingFillDelivery{}

	registry, err := orderstandard.NewRegistry(fakeStandard{tag: "testproto"})
	require.NoError(t, err)
	bus := eventbus.New(eventbus.DefaultConfig())
	store := storage.New(storage.NewMemoryBackend(0))
	eng := engine.New(engine.DefaultConfig(), engine.Deps{
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

	i := intent.New("intent-revert", intent.SourceOnChain, "testproto", []byte("payload"), time.Now())
	require.NoError(t, bus.Publish(ctx, eventbus.Event{Kind: eventbus.KindIntentDiscovered, Intent: i}))

	failed := waitForStatus(t, ctx, store, "intent-revert", order.StatusFailed)
	require.Equal(t, order.StageFill, failed.FailureStage)
	require.Equal(t, string(chaintx.FailureReverted), failed.FailureReason)
}

// delayedReadyOracle reports not-ready for the first notReadyCalls calls,
// then ready, so checkClaimReady's self-reschedule path actually runs
// before an order finalizes.
type delayedReadyOracle struct {
	notReadyCalls int32
	calls         atomic.Int32
}

func (o *delayedReadyOracle) IsReady(context.Context, order.FillProof) (bool, error) {
	n := o.calls.Add(1)
	return n > o.notReadyCalls, nil
}

func TestEngine_ClaimNotYetReady_ReschedulesUntilReady(t *testing.T) {
	oracle := &delayedReadyOracle{notReadyCalls: 2}
	delivery := &fakeDelivery{}

	registry, err := orderstandard.NewRegistry(fakeStandard{tag: "testproto"})
	require.NoError(t, err)
	bus := eventbus.New(eventbus.DefaultConfig())
	store := storage.New(storage.NewMemoryBackend(0))

	cfg := engine.DefaultConfig()
	cfg.StrategyRetryBackoff = 10 * time.Millisecond

	eng := engine.New(cfg, engine.Deps{
		Store:    store,
		Bus:      bus,
		Registry: registry,
		Strategy: alwaysExecute{},
		Settle:   settlement.New(oracle),
		Delivery: delivery,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	i := intent.New("intent-wait", intent.SourceOnChain, "testproto", []byte("payload"), time.Now())
	require.NoError(t, bus.Publish(ctx, eventbus.Event{Kind: eventbus.KindIntentDiscovered, Intent: i}))

	waitForStatus(t, ctx, store, "intent-wait", order.StatusFinalized)
	require.Equal(t, order.TxKindClaim, delivery.submitted[len(delivery.submitted)-1].Kind)
	require.GreaterOrEqual(t, oracle.calls.Load(), int32(3))
}
