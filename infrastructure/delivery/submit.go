package delivery

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/R3E-Network/intent-solver/domain/chaintx"
	"github.com/R3E-Network/intent-solver/domain/solvererrors"
)

// Submit signs and broadcasts an unsigned transaction, returning its hash.
// Gas price is always taken from the live chain; gas limit is estimated
// from the live chain when the caller leaves it zero.
func (c *Client) Submit(ctx context.Context, tx chaintx.UnsignedTx) (common.Hash, error) {
	stage := string(tx.Kind)

	cl, err := c.chainClient(tx.ChainID)
	if err != nil {
		return common.Hash{}, solvererrors.DeliverySubmit(tx.OrderID, stage, err)
	}

	var gasPrice *big.Int
	if err := c.rpcCall(ctx, tx.ChainID, func() error {
		var err error
		gasPrice, err = cl.SuggestGasPrice(ctx)
		return err
	}); err != nil {
		return common.Hash{}, solvererrors.DeliverySubmit(tx.OrderID, stage, err)
	}

	gasLimit := tx.GasLimit
	if gasLimit == 0 {
		from := c.signer.Address()
		if err := c.rpcCall(ctx, tx.ChainID, func() error {
			estimated, err := cl.EstimateGas(ctx, ethereum.CallMsg{
				From:  from,
				To:    &tx.To,
				Value: tx.Value,
				Data:  tx.Data,
			})
			gasLimit = estimated
			return err
		}); err != nil {
			return common.Hash{}, solvererrors.DeliverySubmit(tx.OrderID, stage, err)
		}
	}

	nonce, err := c.nextNonce(ctx, tx.ChainID)
	if err != nil {
		return common.Hash{}, solvererrors.DeliverySubmit(tx.OrderID, stage, err)
	}

	value := tx.Value
	if value == nil {
		value = big.NewInt(0)
	}

	unsigned := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &tx.To,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     tx.Data,
	})

	chainSigner := gethtypes.NewEIP155Signer(new(big.Int).SetUint64(tx.ChainID))
	digest := chainSigner.Hash(unsigned)

	sig, err := c.signer.SignDigest(ctx, digest)
	if err != nil {
		c.resetNonce(tx.ChainID)
		return common.Hash{}, solvererrors.DeliverySubmit(tx.OrderID, stage, err)
	}

	signed, err := unsigned.WithSignature(chainSigner, sig)
	if err != nil {
		c.resetNonce(tx.ChainID)
		return common.Hash{}, solvererrors.DeliverySubmit(tx.OrderID, stage, err)
	}

	if err := cl.SendTransaction(ctx, signed); err != nil {
		c.resetNonce(tx.ChainID)
		return common.Hash{}, solvererrors.DeliverySubmit(tx.OrderID, stage, err)
	}

	return signed.Hash(), nil
}
