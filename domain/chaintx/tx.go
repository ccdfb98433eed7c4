// Package chaintx holds the transaction and receipt shapes shared between
// the Order-Standard capability, the approvals bootstrap, and Delivery, so
// none of the three needs to import another's package to agree on a wire
// shape.
package chaintx

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/R3E-Network/intent-solver/domain/order"
)

// UnsignedTx is a chain call constructed by the Order-Standard capability
// or the approvals bootstrap, not yet signed or broadcast.
type UnsignedTx struct {
	OrderID  string        `json:"order_id,omitempty"`
	Kind     order.TxKind  `json:"kind"`
	ChainID  uint64        `json:"chain_id"`
	To       common.Address `json:"to"`
	Value    *big.Int      `json:"value"`
	Data     []byte        `json:"data"`
	GasLimit uint64        `json:"gas_limit"`
}

// ConfirmationStatus is the outcome of Delivery.WaitForConfirmation.
type ConfirmationStatus string

const (
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationFailed    ConfirmationStatus = "failed"
	ConfirmationTimedOut  ConfirmationStatus = "timed_out"
)

// FailureReason classifies why a confirmation wait ended in Failed.
type FailureReason string

const (
	FailureReverted FailureReason = "reverted"
	FailureReorged  FailureReason = "reorged"
)

// ConfirmationResult is returned by Delivery.WaitForConfirmation.
type ConfirmationResult struct {
	Status        ConfirmationStatus
	Reason        FailureReason
	Receipt       *gethtypes.Receipt
	BlockNumber   uint64
	Confirmations uint64
	ObservedAt    time.Time
}
