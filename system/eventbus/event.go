// Package eventbus is the engine's single bounded, multi-producer/
// multi-consumer channel of tagged events. Every state transition is
// triggered by an event arriving here and, in turn, publishes the next
// one; nothing in the engine calls another component directly.
package eventbus

import (
	"time"

	"github.com/R3E-Network/intent-solver/domain/chaintx"
	"github.com/R3E-Network/intent-solver/domain/intent"
	"github.com/R3E-Network/intent-solver/domain/order"
	"github.com/R3E-Network/intent-solver/domain/strategy"
)

// Kind tags an Event's family and variant. Consumers switch on Kind
// rather than type-asserting a concrete event type, the same flat-tag
// style the teacher's ContractEvent/EventName dispatch uses.
type Kind string

const (
	KindIntentDiscovered Kind = "discovery.intent_discovered"
	KindIntentRejected   Kind = "discovery.intent_rejected"

	KindOrderValidated       Kind = "order.validated"
	KindOrderStrategyDecided Kind = "order.strategy_decided"
	KindOrderPreparing       Kind = "order.preparing"
	KindOrderExecuting       Kind = "order.executing"
	KindOrderFinalized       Kind = "order.finalized"
	KindOrderFailed          Kind = "order.failed"

	KindDeliveryTxSubmitted Kind = "delivery.tx_submitted"
	KindDeliveryTxConfirmed Kind = "delivery.tx_confirmed"
	KindDeliveryTxFailed    Kind = "delivery.tx_failed"

	KindSettlementProofReady Kind = "settlement.proof_ready"
	KindSettlementClaimReady Kind = "settlement.claim_ready"
)

// Event is a single tagged occurrence on the bus. Only the fields
// relevant to Kind are populated; the rest are zero. Every event
// carries its order id for routing; the engine's handlers load the
// order from storage before acting on it.
type Event struct {
	Kind       Kind
	OrderID    string
	ProducedAt time.Time

	// KindIntentDiscovered / KindIntentRejected
	Intent       intent.Intent
	RejectReason string

	// KindOrderStrategyDecided
	Decision strategy.Decision

	// KindDeliveryTxSubmitted / KindDeliveryTxConfirmed / KindDeliveryTxFailed
	TxKind       order.TxKind
	TxHash       string
	ChainID      uint64
	Confirmation chaintx.ConfirmationResult
	FailReason   string

	// KindOrderFailed
	FailureStage order.FailureStage

	// KindSettlementProofReady
	FillProof order.FillProof
}

// New stamps ProducedAt and returns kind as an Event; callers fill in
// whichever remaining fields their Kind needs.
func New(kind Kind, orderID string) Event {
	return Event{Kind: kind, OrderID: orderID, ProducedAt: time.Now().UTC()}
}
