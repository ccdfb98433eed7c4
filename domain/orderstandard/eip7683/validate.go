package eip7683

import (
	"fmt"
	"math/big"

	"github.com/R3E-Network/intent-solver/domain/intent"
	"github.com/R3E-Network/intent-solver/domain/order"
	"github.com/R3E-Network/intent-solver/domain/solvererrors"
	"github.com/R3E-Network/intent-solver/infrastructure/signer"
)

// validationErr folds the originating intent id into the message so a
// rejected intent is traceable even though ValidationError itself carries
// no order id (no order was ever created).
func validationErr(intentID, message string, cause error) *solvererrors.SolverError {
	return solvererrors.Validation(fmt.Sprintf("intent %s: %s", intentID, message), cause)
}

// deriveOrderID hashes the order's semantic fields (everything but the
// signature), so two intents that differ only in encoding or signature
// bytes but describe the same cross-chain move collapse to one order id.
func deriveOrderID(p Payload) (string, error) {
	h, err := structHash(p)
	if err != nil {
		return "", err
	}
	return h.Hex(), nil
}

func parseAmounts(p Payload) (inputAmount, outputAmount *big.Int, err error) {
	inputAmount, ok := new(big.Int).SetString(p.InputAmount, 10)
	if !ok {
		return nil, nil, errInvalidAmount("input_amount")
	}
	outputAmount, ok = new(big.Int).SetString(p.OutputAmount, 10)
	if !ok {
		return nil, nil, errInvalidAmount("output_amount")
	}
	return inputAmount, outputAmount, nil
}

// Validate implements orderstandard.Standard.
func (s *Standard) Validate(i intent.Intent) (order.Order, error) {
	p, err := decodePayload(i.Payload)
	if err != nil {
		return order.Order{}, validationErr(i.ID, "malformed payload", err)
	}

	originChain, ok := s.cfg.chain(p.OriginChainID)
	if !ok {
		return order.Order{}, validationErr(i.ID, "unknown origin chain", nil)
	}
	destChain, ok := s.cfg.chain(p.DestinationChainID)
	if !ok {
		return order.Order{}, validationErr(i.ID, "unknown destination chain", nil)
	}

	if !originChain.tokenWhitelisted(p.InputToken) {
		return order.Order{}, validationErr(i.ID, "input token not whitelisted", nil)
	}
	if !destChain.tokenWhitelisted(p.OutputToken) {
		return order.Order{}, validationErr(i.ID, "output token not whitelisted", nil)
	}

	now := s.now()
	if p.expiryTime().Before(now) {
		return order.Order{}, validationErr(i.ID, "intent already expired", nil)
	}
	if p.fillDeadlineTime().Before(now) {
		return order.Order{}, validationErr(i.ID, "fill deadline already past", nil)
	}

	var prepareData []byte
	if p.isOffChain() {
		digest, err := signingDigest(p, originChain.InputSettler)
		if err != nil {
			return order.Order{}, validationErr(i.ID, "digest derivation failed", err)
		}
		recovered, err := signer.RecoverAddress(digest, p.Signature)
		if err != nil {
			return order.Order{}, validationErr(i.ID, "signature recovery failed", err)
		}
		if recovered != p.Sponsor {
			return order.Order{}, validationErr(i.ID, "signature does not match sponsor", nil)
		}
		if p.Nonce == "" {
			return order.Order{}, validationErr(i.ID, "off-chain intent missing nonce", nil)
		}
		seen, err := s.nonceSeen(p.Sponsor, p.Nonce)
		if err != nil {
			return order.Order{}, validationErr(i.ID, "nonce lookup failed", err)
		}
		if seen {
			return order.Order{}, validationErr(i.ID, "nonce already used by this sponsor", nil)
		}
		if err := s.markNonceSeen(p.Sponsor, p.Nonce); err != nil {
			return order.Order{}, validationErr(i.ID, "nonce persistence failed", err)
		}

		prepareData, err = packOpenOrderData(p)
		if err != nil {
			return order.Order{}, validationErr(i.ID, "prepare data encoding failed", err)
		}
	}

	orderID, err := deriveOrderID(p)
	if err != nil {
		return order.Order{}, validationErr(i.ID, "order id derivation failed", err)
	}

	inputAmount, outputAmount, err := parseAmounts(p)
	if err != nil {
		return order.Order{}, validationErr(i.ID, err.Error(), nil)
	}

	return order.Order{
		ID:                 orderID,
		Standard:           s.Tag(),
		Status:             order.StatusCreated,
		OriginChainID:      p.OriginChainID,
		DestinationChainID: p.DestinationChainID,
		Inputs: []order.TokenAmount{{
			Token:  p.InputToken.Hex(),
			Amount: inputAmount,
		}},
		Outputs: []order.Output{{
			Token:     p.OutputToken.Hex(),
			Amount:    outputAmount,
			Recipient: p.Recipient.Hex(),
		}},
		Deadlines: order.Deadlines{
			FillDeadline: p.fillDeadlineTime(),
			Expiry:       p.expiryTime(),
		},
		PrepareData:      prepareData,
		PrepareSignature: p.Signature,
		SchemaVersion:    order.CurrentSchemaVersion,
	}, nil
}
