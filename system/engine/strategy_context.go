package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/R3E-Network/intent-solver/domain/strategy"
)

// strategyContext adapts a DeliveryClient plus a clock into
// strategy.Context. Delivery already exposes every read-only accessor
// Strategy needs; only Now() is engine-specific (injectable for tests).
type strategyContext struct {
	delivery DeliveryClient
	clock    func() time.Time
}

var _ strategy.Context = strategyContext{}

func (s strategyContext) Balance(ctx context.Context, chainID uint64, token, holder common.Address) (*big.Int, error) {
	return s.delivery.Balance(ctx, chainID, token, holder)
}

func (s strategyContext) Allowance(ctx context.Context, chainID uint64, token, owner, spender common.Address) (*big.Int, error) {
	return s.delivery.Allowance(ctx, chainID, token, owner, spender)
}

func (s strategyContext) SuggestGasPrice(ctx context.Context, chainID uint64) (*big.Int, error) {
	return s.delivery.SuggestGasPrice(ctx, chainID)
}

func (s strategyContext) SolverAddress() common.Address {
	return s.delivery.SolverAddress()
}

func (s strategyContext) Now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now()
}
