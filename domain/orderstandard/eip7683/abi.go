package eip7683

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Calldata ABIs are parsed from literal JSON fragments and packed directly,
// the same manual-pack style the retrieved hyperlane7683 EVM handler uses
// for orderStatus/allowance/approve rather than generated contract bindings.

const fillABIJSON = `[{"type":"function","name":"fill","inputs":[{"type":"bytes32","name":"orderId"},{"type":"bytes","name":"originData"},{"type":"bytes","name":"fillerData"}],"outputs":[],"stateMutability":"nonpayable"}]`

const settleABIJSON = `[{"type":"function","name":"settle","inputs":[{"type":"bytes32[]","name":"orderIds"}],"outputs":[],"stateMutability":"nonpayable"}]`

const openForABIJSON = `[{"type":"function","name":"openFor","inputs":[{"type":"bytes","name":"orderData"},{"type":"bytes","name":"signature"},{"type":"bytes","name":"originFillerData"}],"outputs":[],"stateMutability":"nonpayable"}]`

const orderStatusABIJSON = `[{"type":"function","name":"orderStatus","inputs":[{"type":"bytes32","name":"orderId"}],"outputs":[{"type":"bytes32","name":""}],"stateMutability":"view"}]`

func mustParseABI(jsonStr string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(jsonStr))
	if err != nil {
		panic("eip7683: invalid ABI fragment: " + err.Error())
	}
	return parsed
}

var (
	fillABI       = mustParseABI(fillABIJSON)
	settleABI     = mustParseABI(settleABIJSON)
	openForABI    = mustParseABI(openForABIJSON)
	orderStatusABI = mustParseABI(orderStatusABIJSON)
)

func packFill(orderID [32]byte, originData, fillerData []byte) ([]byte, error) {
	return fillABI.Pack("fill", orderID, originData, fillerData)
}

func packSettle(orderIDs [][32]byte) ([]byte, error) {
	return settleABI.Pack("settle", orderIDs)
}

func packOpenFor(orderData, signature, originFillerData []byte) ([]byte, error) {
	return openForABI.Pack("openFor", orderData, signature, originFillerData)
}

func packOrderStatus(orderID [32]byte) ([]byte, error) {
	return orderStatusABI.Pack("orderStatus", orderID)
}

// originDataArgs packs the order fields the destination settler needs to
// verify and execute a fill: the fields the on-chain order escrowed.
var originDataArgs = mustArguments("address", "uint256", "address", "uint256", "address")

// openOrderArgs packs the full sponsored-order payload the origin settler
// needs to open an order on a sponsor's behalf via openFor.
var openOrderArgs = mustArguments(
	"uint256", "uint256", "address", "uint256", "address", "uint256",
	"address", "uint256", "uint256", "address", "string",
)

func packOpenOrderData(p Payload) ([]byte, error) {
	inputAmount, outputAmount, err := parseAmounts(p)
	if err != nil {
		return nil, err
	}
	return openOrderArgs.Pack(
		new(big.Int).SetUint64(p.OriginChainID),
		new(big.Int).SetUint64(p.DestinationChainID),
		p.InputToken,
		inputAmount,
		p.OutputToken,
		outputAmount,
		p.Recipient,
		big.NewInt(p.FillDeadline),
		big.NewInt(p.Expiry),
		p.Sponsor,
		p.Nonce,
	)
}
