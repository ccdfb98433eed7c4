// Package eip7683 is the concrete Order-Standard capability for the
// EIP-7683 cross-chain order protocol: open/fill/settle escrow contracts
// plus an attestation oracle. Every method is grounded on the calldata
// shapes the retrieved hyperlane7683 EVM solver handler packs manually
// with go-ethereum's accounts/abi package, generalized to take settler
// addresses from config instead of a hardcoded per-network registry.
package eip7683

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/R3E-Network/intent-solver/domain/chaintx"
	"github.com/R3E-Network/intent-solver/domain/order"
	"github.com/R3E-Network/intent-solver/infrastructure/storage"
)

const tag = "eip7683"

// nonceTTL bounds how long a sponsor-nonce dedup record, stored in the
// intents namespace under a "nonce:" key prefix, is kept.
const nonceTTL = 7 * 24 * time.Hour

// Standard implements orderstandard.Standard for EIP-7683.
type Standard struct {
	cfg   Config
	store *storage.Store
	clock func() time.Time
}

// New constructs a Standard. clock defaults to time.Now when nil, letting
// tests inject a fixed clock to exercise expiry/deadline edges.
func New(cfg Config, store *storage.Store, clock func() time.Time) *Standard {
	if clock == nil {
		clock = time.Now
	}
	return &Standard{cfg: cfg, store: store, clock: clock}
}

func (s *Standard) now() time.Time {
	return s.clock()
}

func (s *Standard) Tag() string {
	return tag
}

func nonceKey(sponsor common.Address, nonce string) string {
	return sponsor.Hex() + ":" + nonce
}

// nonceSeen implements the "uniqueness-only" off-chain nonce assumption: a
// colliding (sponsor, nonce) pair is rejected, but no ordering is implied
// or enforced between nonces from the same sponsor.
func (s *Standard) nonceSeen(sponsor common.Address, nonce string) (bool, error) {
	return s.store.Exists(context.Background(), storage.NamespaceIntents, "nonce:"+nonceKey(sponsor, nonce))
}

func (s *Standard) markNonceSeen(sponsor common.Address, nonce string) error {
	return s.store.Put(context.Background(), storage.NamespaceIntents, "nonce:"+nonceKey(sponsor, nonce), []byte("1"), nonceTTL)
}

// PrepareTx implements orderstandard.Standard. Only off-chain (sponsored)
// orders need a prepare step; on-chain intents arrived already escrowed by
// the settler event that produced them.
func (s *Standard) PrepareTx(o order.Order) (chaintx.UnsignedTx, bool, error) {
	if len(o.PrepareData) == 0 {
		return chaintx.UnsignedTx{}, false, nil
	}

	originChain, found := s.cfg.chain(o.OriginChainID)
	if !found {
		return chaintx.UnsignedTx{}, false, errUnknownChain(o.OriginChainID)
	}

	data, err := packOpenFor(o.PrepareData, o.PrepareSignature, nil)
	if err != nil {
		return chaintx.UnsignedTx{}, false, err
	}

	return chaintx.UnsignedTx{
		OrderID:  o.ID,
		Kind:     order.TxKindPrepare,
		ChainID:  o.OriginChainID,
		To:       originChain.InputSettler,
		Value:    big.NewInt(0),
		Data:     data,
		GasLimit: 0,
	}, true, nil
}

// FillTx implements orderstandard.Standard: the destination-chain call
// that executes the order's output transfer.
func (s *Standard) FillTx(o order.Order) (chaintx.UnsignedTx, error) {
	destChain, found := s.cfg.chain(o.DestinationChainID)
	if !found {
		return chaintx.UnsignedTx{}, errUnknownChain(o.DestinationChainID)
	}

	var orderID [32]byte
	copy(orderID[:], common.FromHex(o.ID))

	originData, err := packFillOriginData(o)
	if err != nil {
		return chaintx.UnsignedTx{}, err
	}

	data, err := packFill(orderID, originData, nil)
	if err != nil {
		return chaintx.UnsignedTx{}, err
	}

	return chaintx.UnsignedTx{
		OrderID:  o.ID,
		Kind:     order.TxKindFill,
		ChainID:  o.DestinationChainID,
		To:       destChain.OutputSettler,
		Value:    big.NewInt(0),
		Data:     data,
		GasLimit: 0,
	}, nil
}

// ClaimTx implements orderstandard.Standard: the origin-chain call that
// releases the escrowed inputs to the solver once the fill is proven.
func (s *Standard) ClaimTx(o order.Order, proof order.FillProof) (chaintx.UnsignedTx, error) {
	originChain, found := s.cfg.chain(o.OriginChainID)
	if !found {
		return chaintx.UnsignedTx{}, errUnknownChain(o.OriginChainID)
	}

	var orderID [32]byte
	copy(orderID[:], common.FromHex(o.ID))

	data, err := packSettle([][32]byte{orderID})
	if err != nil {
		return chaintx.UnsignedTx{}, err
	}

	return chaintx.UnsignedTx{
		OrderID:  o.ID,
		Kind:     order.TxKindClaim,
		ChainID:  o.OriginChainID,
		To:       originChain.InputSettler,
		Value:    big.NewInt(0),
		Data:     data,
		GasLimit: 0,
	}, nil
}

// DeriveProof implements orderstandard.Standard: a pure function of the
// confirmed fill receipt and the order it fills.
func (s *Standard) DeriveProof(o order.Order, confirmation chaintx.ConfirmationResult) (order.FillProof, error) {
	if confirmation.Receipt == nil {
		return order.FillProof{}, errMissingReceipt(o.ID)
	}

	disputePeriod := s.cfg.Chains[o.OriginChainID].disputePeriod()

	return order.FillProof{
		OrderID:            o.ID,
		DestinationChainID: o.DestinationChainID,
		FillBlock:          confirmation.BlockNumber,
		FillTxHash:         confirmation.Receipt.TxHash.Hex(),
		Attestation:        confirmation.Receipt.TxHash.Bytes(),
		ReadyAt:            confirmation.ObservedAt.Add(disputePeriod),
	}, nil
}

func packFillOriginData(o order.Order) ([]byte, error) {
	if len(o.Inputs) == 0 || len(o.Outputs) == 0 {
		return nil, errIncompleteOrder(o.ID)
	}
	input := o.Inputs[0]
	output := o.Outputs[0]
	return originDataArgs.Pack(
		common.HexToAddress(input.Token),
		input.Amount,
		common.HexToAddress(output.Token),
		output.Amount,
		common.HexToAddress(output.Recipient),
	)
}

type errUnknownChain uint64

func (e errUnknownChain) Error() string {
	return "eip7683: no configured chain for chain id"
}

type errMissingReceipt string

func (e errMissingReceipt) Error() string {
	return "eip7683: confirmation carries no receipt for order " + string(e)
}

type errIncompleteOrder string

func (e errIncompleteOrder) Error() string {
	return "eip7683: order missing inputs/outputs for order " + string(e)
}
