// Package approvals handles the ERC20 approve step an order's outputs
// may require before Delivery can fill them: the destination settler
// contract must already hold allowance over whatever output tokens the
// solver is about to pay out of its own balance.
package approvals

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"

	"github.com/R3E-Network/intent-solver/domain/chaintx"
	"github.com/R3E-Network/intent-solver/domain/order"
)

// Client is the narrow capability approvals needs out of Delivery:
// read an existing allowance, submit the approve call, and report back
// which address is doing the approving.
type Client interface {
	Allowance(ctx context.Context, chainID uint64, token, owner, spender common.Address) (*big.Int, error)
	Submit(ctx context.Context, tx chaintx.UnsignedTx) (common.Hash, error)
	SolverAddress() common.Address
}

const approveABIJSON = `[{"type":"function","name":"approve","inputs":[{"type":"address","name":"spender"},{"type":"uint256","name":"amount"}],"outputs":[{"type":"bool","name":""}],"stateMutability":"nonpayable"}]`

var approveABI = mustParseABI(approveABIJSON)

func mustParseABI(jsonStr string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(jsonStr))
	if err != nil {
		panic("approvals: invalid ABI fragment: " + err.Error())
	}
	return parsed
}

// EnsureOutputApprovals walks o's destination-chain outputs and, for
// every non-native token whose current allowance to spender falls
// short of the amount the order requires, submits an approve
// transaction for the exact amount needed. It collects every failure
// rather than stopping at the first so one bad token doesn't block
// approvals for the rest of the order's outputs.
func EnsureOutputApprovals(ctx context.Context, c Client, o order.Order, spender common.Address) error {
	var errs *multierror.Error

	for _, out := range o.Outputs {
		token := common.HexToAddress(out.Token)
		if token == (common.Address{}) {
			continue
		}

		if err := ensureOne(ctx, c, o.DestinationChainID, token, spender, out.Amount); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return errs.ErrorOrNil()
}

func ensureOne(ctx context.Context, c Client, chainID uint64, token, spender common.Address, amount *big.Int) error {
	owner := c.SolverAddress()

	current, err := c.Allowance(ctx, chainID, token, owner, spender)
	if err != nil {
		return err
	}
	if current.Cmp(amount) >= 0 {
		return nil
	}

	data, err := approveABI.Pack("approve", spender, amount)
	if err != nil {
		return err
	}

	_, err = c.Submit(ctx, chaintx.UnsignedTx{
		Kind:    order.TxKindApprove,
		ChainID: chainID,
		To:      token,
		Data:    data,
	})
	return err
}
