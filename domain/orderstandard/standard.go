// Package orderstandard defines the pluggable capability, keyed by an
// order's standard tag, that knows how to validate a raw intent into an
// Order and build the prepare/fill/claim transactions for it. The engine
// never encodes or decodes wire formats itself; it only calls through this
// interface.
package orderstandard

import (
	"github.com/R3E-Network/intent-solver/domain/chaintx"
	"github.com/R3E-Network/intent-solver/domain/intent"
	"github.com/R3E-Network/intent-solver/domain/order"
)

// Standard is implemented once per supported wire protocol (e.g. EIP-7683).
// Every method is a pure function of its inputs; none may read chain state.
type Standard interface {
	// Tag is the standard string an Intent/Order carries, used to route to
	// this implementation from a capability map built at startup.
	Tag() string

	// Validate derives a deterministic Order from a raw Intent, or a
	// solvererrors ValidationError if the intent is structurally invalid,
	// past its deadline, references an unknown chain/token, or (for
	// off-chain intents) fails signature verification. Validate must not
	// read chain state. Exception: eip7683.Standard.Validate records a
	// sponsor's nonce as seen (validate.go's markNonceSeen) the first time
	// it validates an off-chain intent, so calling it twice on the same
	// intent the second time rejects it as a duplicate nonce rather than
	// repeating the first result.
	Validate(i intent.Intent) (order.Order, error)

	// PrepareTx returns the origin-chain "open" transaction a sponsored
	// off-chain intent requires before it can be filled, or (ok=false) for
	// intents that need no prepare step.
	PrepareTx(o order.Order) (tx chaintx.UnsignedTx, ok bool, err error)

	// FillTx returns the destination-chain transaction that executes the
	// order's output transfers.
	FillTx(o order.Order) (chaintx.UnsignedTx, error)

	// ClaimTx returns the origin-chain transaction that releases the
	// escrowed inputs to the solver, given a validated FillProof.
	ClaimTx(o order.Order, proof order.FillProof) (chaintx.UnsignedTx, error)

	// DeriveProof is a pure function of a confirmed fill receipt and the
	// order it fills; it does not itself decide claim readiness (that is
	// Settlement.IsClaimReady's job).
	DeriveProof(o order.Order, receipt chaintx.ConfirmationResult) (order.FillProof, error)
}

// Registry is the closed, startup-built set of Standard implementations
// keyed by tag. New tags are added at compile time by registering a new
// Standard with NewRegistry, never discovered dynamically at runtime.
type Registry map[string]Standard

// NewRegistry builds a Registry from a list of standards, rejecting
// duplicate tags since two implementations for the same wire protocol
// would make routing ambiguous.
func NewRegistry(standards ...Standard) (Registry, error) {
	reg := make(Registry, len(standards))
	for _, s := range standards {
		if _, exists := reg[s.Tag()]; exists {
			return nil, duplicateTagError(s.Tag())
		}
		reg[s.Tag()] = s
	}
	return reg, nil
}

// Lookup returns the Standard registered for tag, or ok=false if none is.
func (r Registry) Lookup(tag string) (Standard, bool) {
	s, ok := r[tag]
	return s, ok
}

type duplicateTagError string

func (e duplicateTagError) Error() string {
	return "orderstandard: duplicate tag registered: " + string(e)
}
