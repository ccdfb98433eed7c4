package engine

import (
	"context"
	"encoding/json"

	"github.com/R3E-Network/intent-solver/domain/order"
	"github.com/R3E-Network/intent-solver/domain/solvererrors"
	"github.com/R3E-Network/intent-solver/infrastructure/storage"
)

// loadOrder reads and decodes order id from the orders namespace.
func (e *Engine) loadOrder(ctx context.Context, id string) (*order.Order, error) {
	raw, err := e.store.Get(ctx, storage.NamespaceOrders, id)
	if err != nil {
		return nil, solvererrors.Storage(id, "failed to load order", err)
	}
	var o order.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, solvererrors.Storage(id, "failed to decode order", err)
	}
	return &o, nil
}

// saveOrder persists o under its own id, with no TTL: orders are audit
// artifacts kept indefinitely, per this build's storage contract.
func (e *Engine) saveOrder(ctx context.Context, o *order.Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return solvererrors.Storage(o.ID, "failed to encode order", err)
	}
	if err := e.store.Put(ctx, storage.NamespaceOrders, o.ID, raw, 0); err != nil {
		return solvererrors.Storage(o.ID, "failed to persist order", err)
	}
	return nil
}

// saveTransactionRecord persists rec under the monitoring namespace with
// a TTL equal to the configured monitoring window, keyed the same way
// recovery re-discovers it on restart.
func (e *Engine) saveTransactionRecord(ctx context.Context, rec order.TransactionRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return solvererrors.Storage(rec.OrderID, "failed to encode transaction record", err)
	}
	key := order.MonitoringKey(rec.ChainID, rec.TxHash)
	if err := e.store.Put(ctx, storage.NamespaceMonitoring, key, raw, e.cfg.MonitoringDeadline); err != nil {
		return solvererrors.Storage(rec.OrderID, "failed to persist transaction record", err)
	}
	return nil
}

// markTransactionTerminal flips a TransactionRecord's Status once its
// confirmation or failure has been applied to the order, so recovery
// never re-arms a monitor for it again: without this every record stays
// Pending forever and a restart replays every past confirmation,
// including ones the order has long since moved past. Best-effort: a
// record already expired out of the monitoring namespace (or one that
// was never recorded, e.g. an approve transaction) is silently skipped.
func (e *Engine) markTransactionTerminal(ctx context.Context, chainID uint64, txHash string, status order.TxStatus) {
	key := order.MonitoringKey(chainID, txHash)
	raw, err := e.store.Get(ctx, storage.NamespaceMonitoring, key)
	if err != nil {
		return
	}
	var rec order.TransactionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return
	}
	rec.Status = status
	next, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := e.store.Put(ctx, storage.NamespaceMonitoring, key, next, e.cfg.MonitoringDeadline); err != nil {
		e.log.WithField("order_id", rec.OrderID).WithError(err).Warn("engine: failed to mark transaction record terminal")
	}
}
