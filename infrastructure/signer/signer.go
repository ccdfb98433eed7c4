// Package signer implements the Account/Signer capability: an opaque
// signer returning ECDSA signatures and EIP-712 digests for a known
// address. Implementations must be safe for concurrent signing.
package signer

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer is the capability every delivery path signs through, whether the
// key lives in-process (LocalSigner) or behind a remote signing service
// (RemoteSigner).
type Signer interface {
	// Address returns the signer's well-known on-chain address.
	Address() common.Address
	// SignDigest signs a pre-hashed 32-byte digest, returning a 65-byte
	// [R || S || V] ECDSA signature. Implementations must be callable
	// concurrently.
	SignDigest(ctx context.Context, digest [32]byte) ([]byte, error)
}

// Eip712Digest computes the final signing digest for an EIP-712 typed-data
// payload: keccak256("\x19\x01" || domainSeparator || structHash). It is
// used by the Order-Standard capability rather than by Signer
// implementations themselves, so any Signer, local or remote, can sign an
// EIP-712 payload without knowing about EIP-712.
func Eip712Digest(domainSeparator, structHash [32]byte) [32]byte {
	var buf [66]byte
	buf[0] = 0x19
	buf[1] = 0x01
	copy(buf[2:34], domainSeparator[:])
	copy(buf[34:66], structHash[:])
	return crypto.Keccak256Hash(buf[:])
}

// RecoverAddress recovers the signing address from a digest + signature,
// used by the Order-Standard capability to verify an off-chain intent's
// sponsor signature without reading chain state.
func RecoverAddress(digest [32]byte, signature []byte) (common.Address, error) {
	pub, err := crypto.SigToPub(digest[:], signature)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
