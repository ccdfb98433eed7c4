package eip7683

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/R3E-Network/intent-solver/infrastructure/signer"
)

var orderTypeHash = crypto.Keccak256Hash([]byte(
	"CrossChainOrder(uint256 originChainId,uint256 destinationChainId,address inputToken,uint256 inputAmount,address outputToken,uint256 outputAmount,address recipient,uint256 fillDeadline,uint256 expiry,address sponsor,string nonce)",
))

var domainTypeHash = crypto.Keccak256Hash([]byte(
	"EIP712Domain(string name,uint256 chainId,address verifyingContract)",
))

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, len(types))
	for i, t := range types {
		ty, err := abi.NewType(t, "", nil)
		if err != nil {
			panic("eip7683: invalid abi type " + t + ": " + err.Error())
		}
		args[i] = abi.Argument{Type: ty}
	}
	return args
}

var structArgs = mustArguments(
	"bytes32", "uint256", "uint256", "address", "uint256", "address",
	"uint256", "address", "uint256", "uint256", "address", "bytes32",
)

var domainArgs = mustArguments("bytes32", "bytes32", "uint256", "address")

// structHash computes the EIP-712 struct hash of the order fields.
func structHash(p Payload) (common.Hash, error) {
	inputAmount, ok := new(big.Int).SetString(p.InputAmount, 10)
	if !ok {
		return common.Hash{}, errInvalidAmount("input_amount")
	}
	outputAmount, ok := new(big.Int).SetString(p.OutputAmount, 10)
	if !ok {
		return common.Hash{}, errInvalidAmount("output_amount")
	}

	nonceHash := crypto.Keccak256Hash([]byte(p.Nonce))

	packed, err := structArgs.Pack(
		orderTypeHash,
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
		nonceHash,
	)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

// domainSeparator computes the EIP-712 domain separator for the origin
// settler contract this order is opened against.
func domainSeparator(chainID uint64, verifyingContract common.Address) (common.Hash, error) {
	packed, err := domainArgs.Pack(
		domainTypeHash,
		crypto.Keccak256Hash([]byte("EIP7683IntentSolver")),
		new(big.Int).SetUint64(chainID),
		verifyingContract,
	)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

// signingDigest computes the final EIP-712 digest a sponsor signs over for
// an off-chain order opened against originSettler.
func signingDigest(p Payload, originSettler common.Address) ([32]byte, error) {
	dom, err := domainSeparator(p.OriginChainID, originSettler)
	if err != nil {
		return [32]byte{}, err
	}
	st, err := structHash(p)
	if err != nil {
		return [32]byte{}, err
	}

	var d, s [32]byte
	copy(d[:], dom.Bytes())
	copy(s[:], st.Bytes())
	return signer.Eip712Digest(d, s), nil
}

type errInvalidAmount string

func (e errInvalidAmount) Error() string {
	return "eip7683: invalid decimal amount for field " + string(e)
}
