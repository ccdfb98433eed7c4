// Package strategy defines the admission-control decision made once an
// order has been validated: execute it, skip it, or defer it to a later
// retry. Decide is required to be a pure function of its inputs; it must
// never mutate order or engine state directly.
package strategy

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/R3E-Network/intent-solver/domain/order"
)

// Kind is the decision a Strategy renders for one order.
type Kind string

const (
	KindExecute Kind = "execute"
	KindSkip    Kind = "skip"
	KindDefer   Kind = "defer"
)

// Decision is the result of Decide. Only the fields relevant to Kind are
// meaningful: Reason for KindSkip, RetryAt for KindDefer.
type Decision struct {
	Kind    Kind
	Reason  string
	RetryAt time.Time
}

// Context gives a Strategy read-only access to the live chain state and
// clock it needs to decide, without granting it the ability to submit
// transactions or mutate storage itself.
type Context interface {
	Balance(ctx context.Context, chainID uint64, token, holder common.Address) (*big.Int, error)
	Allowance(ctx context.Context, chainID uint64, token, owner, spender common.Address) (*big.Int, error)
	SuggestGasPrice(ctx context.Context, chainID uint64) (*big.Int, error)
	// SolverAddress is the address this solver fills orders from; strategies
	// check its balance/allowance, never anyone else's.
	SolverAddress() common.Address
	Now() time.Time
}

// Strategy is the pure decision function every order passes through after
// validation.
type Strategy interface {
	Decide(ctx context.Context, o order.Order, c Context) (Decision, error)
}

// Execute constructs a KindExecute decision.
func Execute() Decision {
	return Decision{Kind: KindExecute}
}

// Skip constructs a terminal KindSkip decision with a reason.
func Skip(reason string) Decision {
	return Decision{Kind: KindSkip, Reason: reason}
}

// Defer constructs a KindDefer decision to retry at retryAt.
func Defer(retryAt time.Time) Decision {
	return Decision{Kind: KindDefer, RetryAt: retryAt}
}
