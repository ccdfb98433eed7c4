package delivery

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/R3E-Network/intent-solver/domain/chaintx"
	"github.com/R3E-Network/intent-solver/domain/solvererrors"
)

// WaitForConfirmation polls chainID for txHash's receipt until it has
// accumulated the configured minimum confirmations, the transaction is
// observed reverted, a reorg evicts the block it was mined in, or the
// monitoring timeout elapses. It returns, never panics, on ctx
// cancellation.
func (c *Client) WaitForConfirmation(ctx context.Context, orderID string, chainID uint64, txHash common.Hash) (chaintx.ConfirmationResult, error) {
	cl, err := c.chainClient(chainID)
	if err != nil {
		return chaintx.ConfirmationResult{}, err
	}

	deadline := time.Now().Add(c.monitoringTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var minedBlockHash common.Hash

	for {
		var receipt *gethtypes.Receipt
		err := c.rpcCall(ctx, chainID, func() error {
			var err error
			receipt, err = cl.TransactionReceipt(ctx, txHash)
			if err == ethereum.NotFound {
				return nil
			}
			return err
		})
		if err != nil {
			return chaintx.ConfirmationResult{}, solvererrors.DeliverySubmit(orderID, "monitoring", err)
		}

		if receipt != nil {
			if minedBlockHash == (common.Hash{}) {
				minedBlockHash = receipt.BlockHash
			} else if receipt.BlockHash != minedBlockHash {
				// The block this receipt used to point to is gone: reorged out.
				return chaintx.ConfirmationResult{
					Status:     chaintx.ConfirmationFailed,
					Reason:     chaintx.FailureReorged,
					Receipt:    receipt,
					ObservedAt: time.Now(),
				}, nil
			}

			if receipt.Status == gethtypes.ReceiptStatusFailed {
				return chaintx.ConfirmationResult{
					Status:     chaintx.ConfirmationFailed,
					Reason:     chaintx.FailureReverted,
					Receipt:    receipt,
					BlockNumber: receipt.BlockNumber.Uint64(),
					ObservedAt: time.Now(),
				}, nil
			}

			var head uint64
			if err := c.rpcCall(ctx, chainID, func() error {
				var err error
				head, err = cl.BlockNumber(ctx)
				return err
			}); err != nil {
				return chaintx.ConfirmationResult{}, solvererrors.DeliverySubmit(orderID, "monitoring", err)
			}
			confirmations := uint64(0)
			if head >= receipt.BlockNumber.Uint64() {
				confirmations = head - receipt.BlockNumber.Uint64() + 1
			}
			if confirmations >= c.minConfirmations {
				return chaintx.ConfirmationResult{
					Status:        chaintx.ConfirmationConfirmed,
					Receipt:       receipt,
					BlockNumber:   receipt.BlockNumber.Uint64(),
					Confirmations: confirmations,
					ObservedAt:    time.Now(),
				}, nil
			}
		}

		if time.Now().After(deadline) {
			return chaintx.ConfirmationResult{
				Status:     chaintx.ConfirmationTimedOut,
				ObservedAt: time.Now(),
			}, nil
		}

		select {
		case <-ctx.Done():
			return chaintx.ConfirmationResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
