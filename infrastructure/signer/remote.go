package signer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	defaultRemoteTimeout  = 10 * time.Second
	defaultMaxBodyBytes   = 1 << 20 // 1MiB
)

// RemoteSigner delegates digest signing to an external signing service
// (e.g. a KMS-backed sidecar), generalized from the platform's GlobalSigner
// HTTP client. No private key material ever enters this process.
type RemoteSigner struct {
	baseURL      string
	address      common.Address
	httpClient   *http.Client
	maxBodyBytes int64
}

// RemoteSignerConfig configures a RemoteSigner.
type RemoteSignerConfig struct {
	BaseURL string
	// Address is the signer's known on-chain address, supplied out of band
	// (the remote service is not asked to disclose it on every call).
	Address      common.Address
	HTTPClient   *http.Client
	Timeout      time.Duration
	MaxBodyBytes int64
}

// NewRemoteSigner constructs a RemoteSigner from config.
func NewRemoteSigner(cfg RemoteSignerConfig) (*RemoteSigner, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("signer: remote base URL required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	return &RemoteSigner{
		baseURL:      cfg.BaseURL,
		address:      cfg.Address,
		httpClient:   httpClient,
		maxBodyBytes: maxBody,
	}, nil
}

func (s *RemoteSigner) Address() common.Address {
	return s.address
}

type signDigestRequest struct {
	Address string `json:"address"`
	Digest  string `json:"digest"` // hex-encoded, 32 bytes
}

type signDigestResponse struct {
	Signature string `json:"signature"` // hex-encoded, 65 bytes
}

// SignDigest POSTs the digest to the remote signing service and returns the
// hex-decoded signature. The remote service is expected to be safe for
// concurrent callers; this method adds no additional locking.
func (s *RemoteSigner) SignDigest(ctx context.Context, digest [32]byte) ([]byte, error) {
	reqBody, err := json.Marshal(signDigestRequest{
		Address: s.address.Hex(),
		Digest:  hex.EncodeToString(digest[:]),
	})
	if err != nil {
		return nil, fmt.Errorf("signer: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/sign", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("signer: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("signer: remote call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("signer: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("signer: remote service returned %d: %s", resp.StatusCode, body)
	}

	var parsed signDigestResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("signer: unmarshal response: %w", err)
	}

	sig, err := hex.DecodeString(trimHexPrefix(parsed.Signature))
	if err != nil {
		return nil, fmt.Errorf("signer: decode signature: %w", err)
	}
	return sig, nil
}

var _ Signer = (*RemoteSigner)(nil)
