package delivery

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Balance/Allowance are packed and called manually rather than through a
// generated ERC20 binding, the same literal-ABI-JSON style the retrieved
// EVM solver reference uses for its own allowance/approve calls.
const balanceOfABIJSON = `[{"type":"function","name":"balanceOf","inputs":[{"type":"address","name":"account"}],"outputs":[{"type":"uint256","name":""}],"stateMutability":"view"}]`
const allowanceABIJSON = `[{"type":"function","name":"allowance","inputs":[{"type":"address","name":"owner"},{"type":"address","name":"spender"}],"outputs":[{"type":"uint256","name":""}],"stateMutability":"view"}]`

var balanceOfABI = mustParseABI(balanceOfABIJSON)
var allowanceABI = mustParseABI(allowanceABIJSON)

func mustParseABI(jsonStr string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(jsonStr))
	if err != nil {
		panic("delivery: invalid ABI fragment: " + err.Error())
	}
	return parsed
}

// Balance returns holder's token balance on chainID. token being the zero
// address means the chain's native asset.
func (c *Client) Balance(ctx context.Context, chainID uint64, token, holder common.Address) (*big.Int, error) {
	cl, err := c.chainClient(chainID)
	if err != nil {
		return nil, err
	}
	if token == (common.Address{}) {
		var balance *big.Int
		if err := c.rpcCall(ctx, chainID, func() error {
			var err error
			balance, err = cl.BalanceAt(ctx, holder, nil)
			return err
		}); err != nil {
			return nil, err
		}
		return balance, nil
	}

	data, err := balanceOfABI.Pack("balanceOf", holder)
	if err != nil {
		return nil, err
	}
	var result []byte
	if err := c.rpcCall(ctx, chainID, func() error {
		var err error
		result, err = cl.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
		return err
	}); err != nil {
		return nil, err
	}
	if len(result) < 32 {
		return nil, shortResultError("balanceOf")
	}
	return new(big.Int).SetBytes(result), nil
}

// Allowance returns how much of token owner has approved spender to move
// on chainID.
func (c *Client) Allowance(ctx context.Context, chainID uint64, token, owner, spender common.Address) (*big.Int, error) {
	cl, err := c.chainClient(chainID)
	if err != nil {
		return nil, err
	}

	data, err := allowanceABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	var result []byte
	if err := c.rpcCall(ctx, chainID, func() error {
		var err error
		result, err = cl.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
		return err
	}); err != nil {
		return nil, err
	}
	if len(result) < 32 {
		return nil, shortResultError("allowance")
	}
	return new(big.Int).SetBytes(result), nil
}

// SuggestGasPrice proxies chainID's current suggested gas price.
func (c *Client) SuggestGasPrice(ctx context.Context, chainID uint64) (*big.Int, error) {
	cl, err := c.chainClient(chainID)
	if err != nil {
		return nil, err
	}
	var price *big.Int
	if err := c.rpcCall(ctx, chainID, func() error {
		var err error
		price, err = cl.SuggestGasPrice(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	return price, nil
}

type shortResultError string

func (e shortResultError) Error() string {
	return "delivery: " + string(e) + " returned a short result"
}
