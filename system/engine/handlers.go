package engine

import (
	"context"
	"encoding/json"

	"github.com/R3E-Network/intent-solver/domain/order"
	"github.com/R3E-Network/intent-solver/domain/strategy"
	"github.com/R3E-Network/intent-solver/infrastructure/storage"
	"github.com/R3E-Network/intent-solver/system/eventbus"
)

// handleIntentDiscovered is the dedup-then-validate path: an intent
// already on record is dropped, everything else is persisted,
// validated into an Order, and handed on via OrderValidated.
func (e *Engine) handleIntentDiscovered(ctx context.Context, ev eventbus.Event) {
	i := ev.Intent

	exists, err := e.store.Exists(ctx, storage.NamespaceIntents, i.ID)
	if err != nil {
		e.log.WithError(err).Warn("engine: failed to check intent dedup, dropping")
		return
	}
	if exists {
		e.log.WithField("intent_id", i.ID).Debug("engine: duplicate intent dropped")
		return
	}

	raw, err := json.Marshal(i)
	if err != nil {
		e.log.WithError(err).Warn("engine: failed to encode intent, dropping")
		return
	}
	if err := e.store.Put(ctx, storage.NamespaceIntents, i.ID, raw, e.cfg.IntentTTL); err != nil {
		e.log.WithError(err).Warn("engine: failed to persist intent, dropping")
		return
	}

	std, ok := e.registry.Lookup(i.Standard)
	if !ok {
		e.log.WithField("standard", i.Standard).Warn("engine: no order standard registered for intent, rejecting")
		e.publish(ctx, eventbus.Event{Kind: eventbus.KindIntentRejected, RejectReason: "unknown standard: " + i.Standard})
		return
	}

	o, err := std.Validate(i)
	if err != nil {
		e.log.WithField("intent_id", i.ID).WithError(err).Warn("engine: intent validation failed, rejecting")
		e.publish(ctx, eventbus.Event{Kind: eventbus.KindIntentRejected, RejectReason: err.Error()})
		return
	}

	// Two intents yielding the same order id: the first persisted wins.
	exists, err = e.store.Exists(ctx, storage.NamespaceOrders, o.ID)
	if err != nil {
		e.log.WithError(err).Warn("engine: failed to check order dedup, dropping")
		return
	}
	if exists {
		e.log.WithField("order_id", o.ID).Info("engine: order already exists, second intent dropped")
		return
	}

	o.CreatedAt = e.clock()
	if err := e.saveOrder(ctx, &o); err != nil {
		e.log.WithError(err).Warn("engine: failed to persist newly validated order")
		return
	}

	e.publish(ctx, eventbus.Event{Kind: eventbus.KindOrderValidated, OrderID: o.ID})
}

// handleOrderValidated consults Strategy and routes the order towards a
// prepare step (sponsored intents need an origin-chain open tx first)
// or straight to execution.
func (e *Engine) handleOrderValidated(ctx context.Context, ev eventbus.Event) {
	release, err := e.locks.Acquire(ctx, ev.OrderID)
	if err != nil {
		return
	}
	defer release()

	o, err := e.loadOrder(ctx, ev.OrderID)
	if err != nil {
		e.log.WithField("order_id", ev.OrderID).WithError(err).Warn("engine: failed to load order for strategy decision")
		return
	}
	if o.Status != order.StatusCreated {
		return // already progressed past this point; a stale duplicate event
	}

	sctx := strategyContext{delivery: e.delivery, clock: e.clock}
	decision, err := e.strategy.Decide(ctx, *o, sctx)
	if err != nil {
		e.log.WithField("order_id", o.ID).WithError(err).Warn("engine: strategy decision failed, retrying later")
		e.timers.Schedule("strategy-retry:"+o.ID, e.clock().Add(e.cfg.StrategyRetryBackoff), func() {
			e.publish(e.monitorCtx(), eventbus.Event{Kind: eventbus.KindOrderValidated, OrderID: o.ID})
		})
		return
	}

	switch decision.Kind {
	case strategy.KindSkip:
		e.failOrder(ctx, o, order.StageStrategy, decision.Reason)
	case strategy.KindDefer:
		e.timers.Schedule("strategy-retry:"+o.ID, decision.RetryAt, func() {
			e.publish(e.monitorCtx(), eventbus.Event{Kind: eventbus.KindOrderValidated, OrderID: o.ID})
		})
	case strategy.KindExecute:
		e.beginExecution(ctx, o)
	}
}

func (e *Engine) beginExecution(ctx context.Context, o *order.Order) {
	std, ok := e.registry.Lookup(o.Standard)
	if !ok {
		e.failOrder(ctx, o, order.StageInternal, "no order standard registered for "+o.Standard)
		return
	}

	now := e.clock()
	next, err := order.Apply(o, order.TransitionToPending, now)
	if err != nil {
		e.failOrder(ctx, o, order.StageInternal, err.Error())
		return
	}
	e.recordTransition(o.Standard, order.TransitionToPending)
	next.ExecutionParams = &order.ExecutionParams{DecidedAt: now}

	if err := e.saveOrder(ctx, next); err != nil {
		e.log.WithField("order_id", o.ID).WithError(err).Warn("engine: failed to persist pending order")
		return
	}

	_, needsPrepare, err := std.PrepareTx(*next)
	if err != nil {
		e.failOrder(ctx, next, order.StagePrepare, err.Error())
		return
	}
	if needsPrepare {
		e.publish(ctx, eventbus.Event{Kind: eventbus.KindOrderPreparing, OrderID: next.ID})
		return
	}
	e.publish(ctx, eventbus.Event{Kind: eventbus.KindOrderExecuting, OrderID: next.ID})
}

func (e *Engine) handleOrderPreparing(ctx context.Context, ev eventbus.Event) {
	release, err := e.locks.Acquire(ctx, ev.OrderID)
	if err != nil {
		return
	}
	defer release()

	o, err := e.loadOrder(ctx, ev.OrderID)
	if err != nil {
		return
	}
	std, ok := e.registry.Lookup(o.Standard)
	if !ok {
		e.failOrder(ctx, o, order.StageInternal, "no order standard registered for "+o.Standard)
		return
	}
	tx, needsPrepare, err := std.PrepareTx(*o)
	if err != nil {
		e.failOrder(ctx, o, order.StagePrepare, err.Error())
		return
	}
	if !needsPrepare {
		e.publish(ctx, eventbus.Event{Kind: eventbus.KindOrderExecuting, OrderID: o.ID})
		return
	}
	tx.OrderID = o.ID
	e.submitAndMonitor(ctx, *o, tx)
}

func (e *Engine) handleOrderExecuting(ctx context.Context, ev eventbus.Event) {
	release, err := e.locks.Acquire(ctx, ev.OrderID)
	if err != nil {
		return
	}
	defer release()

	o, err := e.loadOrder(ctx, ev.OrderID)
	if err != nil {
		return
	}
	std, ok := e.registry.Lookup(o.Standard)
	if !ok {
		e.failOrder(ctx, o, order.StageInternal, "no order standard registered for "+o.Standard)
		return
	}
	tx, err := std.FillTx(*o)
	if err != nil {
		e.failOrder(ctx, o, order.StageFill, err.Error())
		return
	}
	tx.OrderID = o.ID
	e.submitAndMonitor(ctx, *o, tx)
}

func (e *Engine) handleClaimReady(ctx context.Context, ev eventbus.Event) {
	release, err := e.locks.Acquire(ctx, ev.OrderID)
	if err != nil {
		return
	}
	defer release()

	o, err := e.loadOrder(ctx, ev.OrderID)
	if err != nil {
		return
	}
	if o.Status != order.StatusSettled || o.FillProof == nil {
		return
	}
	std, ok := e.registry.Lookup(o.Standard)
	if !ok {
		e.failOrder(ctx, o, order.StageInternal, "no order standard registered for "+o.Standard)
		return
	}
	tx, err := std.ClaimTx(*o, *o.FillProof)
	if err != nil {
		e.failOrder(ctx, o, order.StageClaim, err.Error())
		return
	}
	tx.OrderID = o.ID
	e.submitAndMonitor(ctx, *o, tx)
}

// failOrder marks o Failed{stage} with reason and persists it. Callers
// already hold o's lock.
func (e *Engine) failOrder(ctx context.Context, o *order.Order, stage order.FailureStage, reason string) {
	next, err := order.MarkFailed(o, stage, reason, e.clock())
	if err != nil {
		e.log.WithField("order_id", o.ID).WithError(err).Error("engine: failed to mark order failed")
		return
	}
	if err := e.saveOrder(ctx, next); err != nil {
		e.log.WithField("order_id", o.ID).WithError(err).Error("engine: failed to persist failed order")
		return
	}
	e.recordFailure(o.Standard, stage)
	e.publish(ctx, eventbus.Event{Kind: eventbus.KindOrderFailed, OrderID: o.ID, FailureStage: stage, FailReason: reason})
}

// publish wraps Bus.Publish with the engine's own logging on failure; a
// cancelled root context during shutdown is expected, not an error
// worth surfacing loudly.
func (e *Engine) publish(ctx context.Context, ev eventbus.Event) {
	if ev.ProducedAt.IsZero() {
		ev.ProducedAt = e.clock()
	}
	if err := e.bus.Publish(ctx, ev); err != nil {
		e.log.WithField("kind", string(ev.Kind)).WithError(err).Debug("engine: publish did not complete")
	}
}
