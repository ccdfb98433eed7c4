package engine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/R3E-Network/intent-solver/domain/chaintx"
)

// DeliveryClient is the narrow capability the engine needs out of
// infrastructure/delivery.Client: submit a transaction, wait for its
// confirmation, and read the live chain state Strategy needs. Kept as
// an interface here (rather than importing the concrete type directly)
// so engine tests can drive the orchestrator against a fake chain.
type DeliveryClient interface {
	Submit(ctx context.Context, tx chaintx.UnsignedTx) (common.Hash, error)
	WaitForConfirmation(ctx context.Context, orderID string, chainID uint64, txHash common.Hash) (chaintx.ConfirmationResult, error)
	Balance(ctx context.Context, chainID uint64, token, holder common.Address) (*big.Int, error)
	Allowance(ctx context.Context, chainID uint64, token, owner, spender common.Address) (*big.Int, error)
	SuggestGasPrice(ctx context.Context, chainID uint64) (*big.Int, error)
	SolverAddress() common.Address
}
