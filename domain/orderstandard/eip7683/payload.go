package eip7683

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Payload is the structured form of an Intent's opaque bytes for this
// standard. On-chain intents arrive with Signature empty (the origin
// settler already escrowed the inputs when the event was emitted);
// off-chain (sponsored) intents carry a signature over the EIP-712 digest
// derived from these same fields.
type Payload struct {
	OriginChainID      uint64         `json:"origin_chain_id"`
	DestinationChainID uint64         `json:"destination_chain_id"`
	InputToken         common.Address `json:"input_token"`
	InputAmount        string         `json:"input_amount"` // decimal string, parsed into *big.Int
	OutputToken        common.Address `json:"output_token"`
	OutputAmount       string         `json:"output_amount"`
	Recipient          common.Address `json:"recipient"`
	FillDeadline       int64          `json:"fill_deadline"` // unix seconds
	Expiry             int64          `json:"expiry"`        // unix seconds
	Sponsor            common.Address `json:"sponsor,omitempty"`
	Nonce              string         `json:"nonce,omitempty"`
	Signature          []byte         `json:"signature,omitempty"`
}

func decodePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, err
	}
	return p, nil
}

func (p Payload) isOffChain() bool {
	return len(p.Signature) > 0
}

func (p Payload) fillDeadlineTime() time.Time {
	return time.Unix(p.FillDeadline, 0).UTC()
}

func (p Payload) expiryTime() time.Time {
	return time.Unix(p.Expiry, 0).UTC()
}
