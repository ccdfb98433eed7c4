// Package settlement owns the fill-validation and claim-readiness
// predicates: the check that a confirmed fill transaction actually
// satisfies an order's outputs, and the check that enough time (and, where
// wired, enough attestation) has passed to safely claim the origin-chain
// escrow.
package settlement

import (
	"context"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/R3E-Network/intent-solver/domain/chaintx"
	"github.com/R3E-Network/intent-solver/domain/order"
	"github.com/R3E-Network/intent-solver/domain/orderstandard"
	"github.com/R3E-Network/intent-solver/domain/solvererrors"
)

// OracleChecker abstracts whatever attestation authority a claim must clear
// beyond the dispute-period wait. Production oracle semantics (quorum,
// attestation format) are not fixed here; they plug in behind this
// interface without touching the engine.
type OracleChecker interface {
	IsReady(ctx context.Context, proof order.FillProof) (bool, error)
}

// AlwaysReady is the default OracleChecker: every proof is considered
// attested once its dispute period has elapsed.
type AlwaysReady struct{}

// IsReady implements OracleChecker.
func (AlwaysReady) IsReady(context.Context, order.FillProof) (bool, error) {
	return true, nil
}

// Settlement validates confirmed fills and decides claim readiness.
type Settlement struct {
	oracle OracleChecker
}

// New builds a Settlement backed by oracle, defaulting to AlwaysReady when
// oracle is nil.
func New(oracle OracleChecker) Settlement {
	if oracle == nil {
		oracle = AlwaysReady{}
	}
	return Settlement{oracle: oracle}
}

// ValidateFill checks that a fill transaction confirmed with a successful
// receipt before deferring to the order's own standard to assemble the
// attestation payload. It does not inspect the receipt's logs, so the
// recipient, token and amount actually delivered are not compared against
// the order's outputs. A reverted or unconfirmed fill is a terminal
// Failed{settlement} cause; no claim is ever attempted for it.
func (s Settlement) ValidateFill(std orderstandard.Standard, o order.Order, result chaintx.ConfirmationResult) (order.FillProof, error) {
	if result.Status != chaintx.ConfirmationConfirmed {
		return order.FillProof{}, solvererrors.Settlement(o.ID, "fill transaction did not confirm")
	}
	if result.Receipt == nil {
		return order.FillProof{}, solvererrors.Settlement(o.ID, "fill confirmation carries no receipt")
	}
	if result.Receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return order.FillProof{}, solvererrors.Settlement(o.ID, "fill transaction reverted on-chain")
	}

	proof, err := std.DeriveProof(o, result)
	if err != nil {
		return order.FillProof{}, solvererrors.Wrap(solvererrors.KindSettlement, o.ID, "settlement", "proof derivation failed", err)
	}
	return proof, nil
}

// IsClaimReady reports whether proof has cleared both its dispute-period
// wait and the configured oracle predicate. A false result with a nil
// error means "not yet, try again later"; a non-nil error means the oracle
// check itself failed and should be retried (KindProofNotReady is
// transient).
func (s Settlement) IsClaimReady(ctx context.Context, proof order.FillProof, now time.Time) (bool, error) {
	if now.Before(proof.ReadyAt) {
		return false, nil
	}
	ready, err := s.oracle.IsReady(ctx, proof)
	if err != nil {
		return false, solvererrors.Wrap(solvererrors.KindProofNotReady, proof.OrderID, "settlement", "oracle readiness check failed", err)
	}
	return ready, nil
}
