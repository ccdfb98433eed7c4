package eip7683

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/intent-solver/domain/intent"
	"github.com/R3E-Network/intent-solver/domain/order"
	"github.com/R3E-Network/intent-solver/infrastructure/storage"
)

const originChainID = 31337
const destChainID = 31338

var (
	inputToken  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	outputToken = common.HexToAddress("0x2000000000000000000000000000000000000002")
	recipient   = common.HexToAddress("0x3000000000000000000000000000000000000003")
	inputSettlerAddr  = common.HexToAddress("0x4000000000000000000000000000000000000004")
	outputSettlerAddr = common.HexToAddress("0x5000000000000000000000000000000000000005")
)

func testConfig() Config {
	return Config{
		Chains: map[uint64]ChainConfig{
			originChainID: {
				ChainID:       originChainID,
				InputSettler:  inputSettlerAddr,
				OutputSettler: outputSettlerAddr,
				DisputePeriod: 60 * time.Second,
				Tokens: map[common.Address]TokenConfig{
					inputToken: {Address: inputToken, Symbol: "TOKA_ORIGIN", Decimals: 18},
				},
			},
			destChainID: {
				ChainID:       destChainID,
				InputSettler:  inputSettlerAddr,
				OutputSettler: outputSettlerAddr,
				DisputePeriod: 60 * time.Second,
				Tokens: map[common.Address]TokenConfig{
					outputToken: {Address: outputToken, Symbol: "TOKA_DEST", Decimals: 18},
				},
			},
		},
	}
}

func newTestStandard(t *testing.T, now time.Time) *Standard {
	t.Helper()
	store := storage.New(storage.NewMemoryBackend(0))
	return New(testConfig(), store, func() time.Time { return now })
}

func onChainPayload(now time.Time) Payload {
	return Payload{
		OriginChainID:      originChainID,
		DestinationChainID: destChainID,
		InputToken:         inputToken,
		InputAmount:        "1000000000000000000",
		OutputToken:        outputToken,
		OutputAmount:       "1000000000000000000",
		Recipient:          recipient,
		FillDeadline:       now.Add(time.Hour).Unix(),
		Expiry:             now.Add(2 * time.Hour).Unix(),
	}
}

func marshalIntent(t *testing.T, p Payload, now time.Time) intent.Intent {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return intent.New("intent-1", intent.SourceOnChain, tag, raw, now)
}

func TestValidate_OnChainHappyPath(t *testing.T) {
	now := time.Now()
	s := newTestStandard(t, now)
	p := onChainPayload(now)
	i := marshalIntent(t, p, now)

	o, err := s.Validate(i)
	require.NoError(t, err)
	require.Equal(t, order.StatusCreated, o.Status)
	require.Equal(t, tag, o.Standard)
	require.Len(t, o.Inputs, 1)
	require.Len(t, o.Outputs, 1)
	require.Empty(t, o.PrepareData, "on-chain intents need no prepare step")
}

func TestValidate_DeterministicOrderID(t *testing.T) {
	now := time.Now()
	s := newTestStandard(t, now)
	p := onChainPayload(now)

	o1, err := s.Validate(marshalIntent(t, p, now))
	require.NoError(t, err)

	o2, err := s.Validate(marshalIntent(t, p, now.Add(time.Minute)))
	require.NoError(t, err)

	require.Equal(t, o1.ID, o2.ID, "identical payload fields must collapse to the same order id")
}

func TestValidate_RejectsUnwhitelistedToken(t *testing.T) {
	now := time.Now()
	s := newTestStandard(t, now)
	p := onChainPayload(now)
	p.InputToken = common.HexToAddress("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")

	_, err := s.Validate(marshalIntent(t, p, now))
	require.Error(t, err)
}

func TestValidate_RejectsExpiredIntent(t *testing.T) {
	now := time.Now()
	s := newTestStandard(t, now)
	p := onChainPayload(now)
	p.Expiry = now.Add(-time.Hour).Unix()

	_, err := s.Validate(marshalIntent(t, p, now))
	require.Error(t, err)
}

func TestValidate_OffChainRequiresValidSignature(t *testing.T) {
	now := time.Now()
	s := newTestStandard(t, now)

	key, err := crypto.HexToECDSA(validPrivateKeyHexForTest)
	require.NoError(t, err)
	sponsor := crypto.PubkeyToAddress(key.PublicKey)

	p := onChainPayload(now)
	p.Sponsor = sponsor
	p.Nonce = "nonce-1"

	digest, err := signingDigest(p, inputSettlerAddr)
	require.NoError(t, err)
	sig, err := crypto.Sign(digest[:], key)
	require.NoError(t, err)
	p.Signature = sig

	o, err := s.Validate(marshalIntent(t, p, now))
	require.NoError(t, err)
	require.NotEmpty(t, o.PrepareData, "off-chain intents need a prepare step")
	require.Equal(t, sig, o.PrepareSignature)
}

func TestValidate_OffChainRejectsTamperedSignature(t *testing.T) {
	now := time.Now()
	s := newTestStandard(t, now)

	key, err := crypto.HexToECDSA(validPrivateKeyHexForTest)
	require.NoError(t, err)
	sponsor := crypto.PubkeyToAddress(key.PublicKey)

	p := onChainPayload(now)
	p.Sponsor = sponsor
	p.Nonce = "nonce-1"
	p.Signature = make([]byte, 65)

	_, err = s.Validate(marshalIntent(t, p, now))
	require.Error(t, err)
}

func TestValidate_OffChainRejectsReusedNonce(t *testing.T) {
	now := time.Now()
	s := newTestStandard(t, now)

	key, err := crypto.HexToECDSA(validPrivateKeyHexForTest)
	require.NoError(t, err)
	sponsor := crypto.PubkeyToAddress(key.PublicKey)

	sign := func(p Payload) Payload {
		digest, err := signingDigest(p, inputSettlerAddr)
		require.NoError(t, err)
		sig, err := crypto.Sign(digest[:], key)
		require.NoError(t, err)
		p.Signature = sig
		return p
	}

	p := onChainPayload(now)
	p.Sponsor = sponsor
	p.Nonce = "reused-nonce"
	p = sign(p)

	_, err = s.Validate(marshalIntent(t, p, now))
	require.NoError(t, err)

	_, err = s.Validate(marshalIntent(t, p, now))
	require.Error(t, err, "a second intent with the same sponsor/nonce must be rejected")
}

func TestFillTxAndClaimTx_RoundTripABI(t *testing.T) {
	now := time.Now()
	s := newTestStandard(t, now)
	p := onChainPayload(now)
	o, err := s.Validate(marshalIntent(t, p, now))
	require.NoError(t, err)

	fillTx, err := s.FillTx(o)
	require.NoError(t, err)
	require.Equal(t, order.TxKindFill, fillTx.Kind)
	require.Equal(t, outputSettlerAddr, fillTx.To)

	method, err := fillABI.MethodById(fillTx.Data[:4])
	require.NoError(t, err)
	require.Equal(t, "fill", method.Name)

	proof := order.FillProof{OrderID: o.ID, ReadyAt: now.Add(time.Minute)}
	claimTx, err := s.ClaimTx(o, proof)
	require.NoError(t, err)
	require.Equal(t, order.TxKindClaim, claimTx.Kind)
	require.Equal(t, inputSettlerAddr, claimTx.To)
}

func TestPrepareTx_NoneForOnChainIntent(t *testing.T) {
	now := time.Now()
	s := newTestStandard(t, now)
	p := onChainPayload(now)
	o, err := s.Validate(marshalIntent(t, p, now))
	require.NoError(t, err)

	_, ok, err := s.PrepareTx(o)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNonceSeen_UsesStorage(t *testing.T) {
	now := time.Now()
	s := newTestStandard(t, now)
	sponsor := common.HexToAddress("0x6000000000000000000000000000000000000006")

	seen, err := s.nonceSeen(sponsor, "n1")
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, s.markNonceSeen(sponsor, "n1"))

	seen, err = s.nonceSeen(sponsor, "n1")
	require.NoError(t, err)
	require.True(t, seen)
}

const validPrivateKeyHexForTest = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
