package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// LocalSigner signs with an in-process ECDSA private key. Intended for
// development and for solver instances that manage their own key material
// rather than delegating to a remote signing service.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewLocalSignerFromHex constructs a LocalSigner from a hex-encoded
// secp256k1 private key (with or without "0x" prefix).
func NewLocalSignerFromHex(privateKeyHex string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(trimHexPrefix(privateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("signer: parse private key: %w", err)
	}
	return &LocalSigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func (s *LocalSigner) Address() common.Address {
	return s.address
}

// SignDigest signs with crypto.Sign, which is safe for concurrent callers:
// it allocates fresh state per call and touches no shared mutable data
// beyond the immutable private key.
func (s *LocalSigner) SignDigest(_ context.Context, digest [32]byte) ([]byte, error) {
	sig, err := crypto.Sign(digest[:], s.key)
	if err != nil {
		return nil, fmt.Errorf("signer: sign digest: %w", err)
	}
	return sig, nil
}

var _ Signer = (*LocalSigner)(nil)
