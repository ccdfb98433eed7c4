package strategy

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/R3E-Network/intent-solver/domain/order"
)

// ThresholdStrategy is the default Strategy: execute an order only if its
// input/output spread covers a configured gas cost estimate plus a minimum
// profit bound, skip orders too close to their fill deadline to safely
// execute, and defer orders the solver cannot yet afford to fill.
//
// Price discovery (converting input/output token amounts and gas cost into
// a common unit) is out of this engine's scope; ThresholdStrategy assumes
// input and output amounts are already denominated comparably (the quoting
// system upstream is responsible for that), matching the stable 1e18-style
// amounts used throughout.
type ThresholdStrategy struct {
	// MinProfitWei is the minimum input-minus-output spread required to
	// execute, after subtracting GasCostEstimateWei.
	MinProfitWei *big.Int
	// GasCostEstimateWei is a fixed per-fill gas cost estimate in the same
	// unit as order amounts.
	GasCostEstimateWei *big.Int
	// MinExecutionWindow is the minimum time that must remain before an
	// order's fill deadline for it to be considered safe to execute; less
	// than this is treated as a stale quote.
	MinExecutionWindow time.Duration
}

// Decide implements Strategy.
func (t ThresholdStrategy) Decide(ctx context.Context, o order.Order, c Context) (Decision, error) {
	now := c.Now()

	if o.Deadlines.FillDeadline.Sub(now) < t.MinExecutionWindow {
		return Skip("fill deadline too close, quote considered stale"), nil
	}

	if len(o.Inputs) == 0 || len(o.Outputs) == 0 {
		return Skip("order has no inputs or outputs"), nil
	}

	margin := new(big.Int).Sub(o.Inputs[0].Amount, o.Outputs[0].Amount)
	required := new(big.Int).Add(t.GasCostEstimateWei, t.MinProfitWei)
	if margin.Cmp(required) < 0 {
		return Skip("expected margin does not cover gas plus minimum profit"), nil
	}

	output := o.Outputs[0]
	balance, err := c.Balance(ctx, o.DestinationChainID, common.HexToAddress(output.Token), c.SolverAddress())
	if err != nil {
		return Decision{}, err
	}
	if balance.Cmp(output.Amount) < 0 {
		return Defer(now.Add(t.retryDelay())), nil
	}

	return Execute(), nil
}

func (t ThresholdStrategy) retryDelay() time.Duration {
	if t.MinExecutionWindow > 0 {
		return t.MinExecutionWindow / 4
	}
	return 30 * time.Second
}
