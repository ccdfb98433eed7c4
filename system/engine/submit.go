package engine

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/R3E-Network/intent-solver/domain/chaintx"
	"github.com/R3E-Network/intent-solver/domain/order"
	"github.com/R3E-Network/intent-solver/system/eventbus"
)

// submitAndMonitor submits tx, records it for restart-safe recovery, and
// spawns a background wait for its confirmation. The caller's lock on
// o.ID has already been released by the time confirmation arrives, since
// monitor runs independently of the dispatch call that triggered it.
func (e *Engine) submitAndMonitor(ctx context.Context, o order.Order, tx chaintx.UnsignedTx) {
	hash, err := e.delivery.Submit(ctx, tx)
	if err != nil {
		e.recordTxSubmit(tx.ChainID, tx.Kind, "failed")
		e.failOrder(ctx, &o, stageFor(tx.Kind), "submit failed: "+err.Error())
		return
	}
	e.recordTxSubmit(tx.ChainID, tx.Kind, "submitted")

	now := e.clock()
	rec := order.TransactionRecord{
		TxHash:        hash.Hex(),
		ChainID:       tx.ChainID,
		OrderID:       o.ID,
		Kind:          tx.Kind,
		SubmittedAt:   now,
		Deadline:      now.Add(e.cfg.MonitoringDeadline),
		Status:        order.TxStatusPending,
		SchemaVersion: order.CurrentTxSchemaVersion,
	}
	if err := e.saveTransactionRecord(ctx, rec); err != nil {
		e.log.WithField("order_id", o.ID).WithError(err).Error("engine: failed to persist transaction record")
		return
	}

	e.publish(ctx, eventbus.Event{Kind: eventbus.KindDeliveryTxSubmitted, OrderID: o.ID, TxKind: tx.Kind, TxHash: hash.Hex(), ChainID: tx.ChainID})
	e.monitor(o.ID, tx.ChainID, tx.Kind, hash, now)
}

// monitor waits for tx's confirmation on its own goroutine and feeds the
// result back onto the bus; it never touches storage or the order
// directly; handleTxConfirmed/handleTxFailed do that under the order's
// lock once the event is dispatched.
func (e *Engine) monitor(orderID string, chainID uint64, kind order.TxKind, hash common.Hash, submittedAt time.Time) {
	go func() {
		ctx := e.monitorCtx()
		result, err := e.delivery.WaitForConfirmation(ctx, orderID, chainID, hash)
		if err != nil {
			e.recordTxConfirmDuration(chainID, kind, "error", e.clock().Sub(submittedAt))
			e.publish(ctx, eventbus.Event{
				Kind:       eventbus.KindDeliveryTxFailed,
				OrderID:    orderID,
				TxKind:     kind,
				TxHash:     hash.Hex(),
				ChainID:    chainID,
				FailReason: err.Error(),
			})
			return
		}

		switch result.Status {
		case chaintx.ConfirmationConfirmed:
			e.recordTxConfirmDuration(chainID, kind, "confirmed", e.clock().Sub(submittedAt))
			e.publish(ctx, eventbus.Event{
				Kind:         eventbus.KindDeliveryTxConfirmed,
				OrderID:      orderID,
				TxKind:       kind,
				TxHash:       hash.Hex(),
				ChainID:      chainID,
				Confirmation: result,
			})
		default:
			e.recordTxConfirmDuration(chainID, kind, string(result.Reason), e.clock().Sub(submittedAt))
			e.publish(ctx, eventbus.Event{
				Kind:         eventbus.KindDeliveryTxFailed,
				OrderID:      orderID,
				TxKind:       kind,
				TxHash:       hash.Hex(),
				ChainID:      chainID,
				Confirmation: result,
				FailReason:   string(result.Reason),
			})
		}
	}()
}

// handleTxConfirmed advances the order according to which stage's
// transaction just confirmed: Prepare hands off to Executing, Fill
// drives settlement validation and schedules the dispute-period wakeup,
// Claim finalizes the order.
func (e *Engine) handleTxConfirmed(ctx context.Context, ev eventbus.Event) {
	release, err := e.locks.Acquire(ctx, ev.OrderID)
	if err != nil {
		return
	}
	defer release()

	o, err := e.loadOrder(ctx, ev.OrderID)
	if err != nil {
		return
	}

	switch ev.TxKind {
	case order.TxKindPrepare:
		if o.Status != order.StatusPending {
			return // redelivered confirmation for a stage this order already passed
		}
		o.PrepareTxHash = ev.TxHash
		if err := e.saveOrder(ctx, o); err != nil {
			e.log.WithField("order_id", o.ID).WithError(err).Error("engine: failed to persist prepare confirmation")
			return
		}
		e.markTransactionTerminal(ctx, ev.ChainID, ev.TxHash, order.TxStatusConfirmed)
		e.publish(ctx, eventbus.Event{Kind: eventbus.KindOrderExecuting, OrderID: o.ID})

	case order.TxKindFill:
		if o.Status != order.StatusPending {
			return // redelivered confirmation for a stage this order already passed
		}
		e.handleFillConfirmed(ctx, o, ev)

	case order.TxKindClaim:
		if o.Status != order.StatusSettled {
			return // redelivered confirmation for a stage this order already passed
		}
		next, err := order.Apply(o, order.TransitionToFinalized, e.clock())
		if err != nil {
			e.failOrder(ctx, o, order.StageInternal, err.Error())
			return
		}
		next.ClaimTxHash = ev.TxHash
		if err := e.saveOrder(ctx, next); err != nil {
			e.log.WithField("order_id", o.ID).WithError(err).Error("engine: failed to persist finalized order")
			return
		}
		e.markTransactionTerminal(ctx, ev.ChainID, ev.TxHash, order.TxStatusConfirmed)
		e.publish(ctx, eventbus.Event{Kind: eventbus.KindOrderFinalized, OrderID: next.ID})
	}
}

func (e *Engine) handleFillConfirmed(ctx context.Context, o *order.Order, ev eventbus.Event) {
	std, ok := e.registry.Lookup(o.Standard)
	if !ok {
		e.failOrder(ctx, o, order.StageInternal, "no order standard registered for "+o.Standard)
		return
	}

	executed, err := order.Apply(o, order.TransitionToExecuted, e.clock())
	if err != nil {
		e.failOrder(ctx, o, order.StageInternal, err.Error())
		return
	}
	executed.FillTxHash = ev.TxHash
	if err := e.saveOrder(ctx, executed); err != nil {
		e.log.WithField("order_id", o.ID).WithError(err).Error("engine: failed to persist executed order")
		return
	}
	e.markTransactionTerminal(ctx, ev.ChainID, ev.TxHash, order.TxStatusConfirmed)

	proof, err := e.settle.ValidateFill(std, *executed, ev.Confirmation)
	if err != nil {
		e.failOrder(ctx, executed, order.StageSettlement, err.Error())
		return
	}

	settled, err := order.Apply(executed, order.TransitionToSettled, e.clock())
	if err != nil {
		e.failOrder(ctx, executed, order.StageInternal, err.Error())
		return
	}
	settled.FillProof = &proof
	if err := e.saveOrder(ctx, settled); err != nil {
		e.log.WithField("order_id", o.ID).WithError(err).Error("engine: failed to persist settled order")
		return
	}

	e.incDisputeWait()
	e.timers.Schedule("claim-ready:"+settled.ID, proof.ReadyAt, func() {
		e.checkClaimReady(e.monitorCtx(), settled.ID)
	})
}

// checkClaimReady re-evaluates Settlement.IsClaimReady once the dispute
// period's timer fires; an oracle that isn't ready yet reschedules
// itself rather than dropping the order.
func (e *Engine) checkClaimReady(ctx context.Context, orderID string) {
	release, err := e.locks.Acquire(ctx, orderID)
	if err != nil {
		return
	}
	defer release()

	o, err := e.loadOrder(ctx, orderID)
	if err != nil || o.FillProof == nil {
		return
	}

	ready, err := e.settle.IsClaimReady(ctx, *o.FillProof, e.clock())
	if err != nil {
		e.timers.Schedule("claim-ready:"+orderID, e.clock().Add(e.cfg.StrategyRetryBackoff), func() {
			e.checkClaimReady(e.monitorCtx(), orderID)
		})
		return
	}
	if !ready {
		e.timers.Schedule("claim-ready:"+orderID, e.clock().Add(e.cfg.StrategyRetryBackoff), func() {
			e.checkClaimReady(e.monitorCtx(), orderID)
		})
		return
	}

	e.decDisputeWait()
	e.publish(ctx, eventbus.Event{Kind: eventbus.KindSettlementClaimReady, OrderID: orderID})
}

func (e *Engine) handleTxFailed(ctx context.Context, ev eventbus.Event) {
	release, err := e.locks.Acquire(ctx, ev.OrderID)
	if err != nil {
		return
	}
	defer release()

	o, err := e.loadOrder(ctx, ev.OrderID)
	if err != nil {
		return
	}

	status := order.TxStatusFailed
	if ev.Confirmation.Status == chaintx.ConfirmationTimedOut {
		status = order.TxStatusTimedOut
	}
	e.markTransactionTerminal(ctx, ev.ChainID, ev.TxHash, status)

	e.failOrder(ctx, o, stageFor(ev.TxKind), ev.FailReason)
}

// txKindStillPending reports whether o's current status is still the one
// a confirmation for kind would legally advance it from. Used by recovery
// to decide whether a transaction record left Pending across a crash is
// still worth re-monitoring, or whether the order already moved on from
// it before the crash (in which case re-arming the monitor would only
// replay a confirmation the order has already applied).
func txKindStillPending(o *order.Order, kind order.TxKind) bool {
	switch kind {
	case order.TxKindPrepare, order.TxKindFill:
		return o.Status == order.StatusPending
	case order.TxKindClaim:
		return o.Status == order.StatusSettled
	default:
		return true
	}
}

func stageFor(kind order.TxKind) order.FailureStage {
	switch kind {
	case order.TxKindPrepare:
		return order.StagePrepare
	case order.TxKindFill:
		return order.StageFill
	case order.TxKindClaim:
		return order.StageClaim
	default:
		return order.StageMonitoring
	}
}
