package engine

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"

	"github.com/R3E-Network/intent-solver/domain/order"
	"github.com/R3E-Network/intent-solver/infrastructure/storage"
)

// Recover scans persisted state on startup and re-arms two kinds of wait:
// monitoring a still-unconfirmed transaction and the dispute-period
// wakeup for a settled order waiting on a claim. Strategy retry wakeups
// are not persisted and are not re-armed. No timer is itself durable,
// so nothing wakes up again after a restart unless Recover runs before
// Run.
func (e *Engine) Recover(ctx context.Context) error {
	if err := e.recoverMonitoring(ctx); err != nil {
		return err
	}
	return e.recoverClaims(ctx)
}

func (e *Engine) recoverMonitoring(ctx context.Context) error {
	entries, err := e.store.Scan(ctx, storage.NamespaceMonitoring)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		var rec order.TransactionRecord
		if err := json.Unmarshal(entry.Value, &rec); err != nil {
			e.log.WithField("key", entry.Key).WithError(err).Warn("engine: skipping unreadable transaction record on recovery")
			continue
		}
		if rec.Status != order.TxStatusPending {
			continue
		}

		o, err := e.loadOrder(ctx, rec.OrderID)
		if err != nil {
			e.log.WithField("order_id", rec.OrderID).WithError(err).Warn("engine: skipping transaction record for unreadable order on recovery")
			continue
		}
		if !txKindStillPending(o, rec.Kind) {
			// The order already advanced past this transaction's stage
			// before the crash; its confirmation was applied but this
			// record's own status update never made it to disk. Mark it
			// terminal rather than re-arming a monitor that would replay a
			// confirmation the order has already processed.
			e.markTransactionTerminal(ctx, rec.ChainID, rec.TxHash, order.TxStatusConfirmed)
			continue
		}

		e.monitor(rec.OrderID, rec.ChainID, rec.Kind, common.HexToHash(rec.TxHash), rec.SubmittedAt)
	}
	return nil
}

func (e *Engine) recoverClaims(ctx context.Context) error {
	entries, err := e.store.Scan(ctx, storage.NamespaceOrders)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		var o order.Order
		if err := json.Unmarshal(entry.Value, &o); err != nil {
			e.log.WithField("key", entry.Key).WithError(err).Warn("engine: skipping unreadable order on recovery")
			continue
		}
		if o.Status != order.StatusSettled || o.FillProof == nil {
			continue
		}
		orderID := o.ID
		e.incDisputeWait()
		e.timers.Schedule("claim-ready:"+orderID, o.FillProof.ReadyAt, func() {
			e.checkClaimReady(e.monitorCtx(), orderID)
		})
	}
	return nil
}
