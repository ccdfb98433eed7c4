package delivery

import "context"

// nextNonce returns the next nonce to use for the signer's address on
// chainID. The first call per chain seeds the sequence from the chain's
// pending nonce; every call after that increments a locally held counter,
// so concurrent submissions on the same chain never race each other for
// the same nonce the way two independent PendingNonceAt calls could.
func (c *Client) nextNonce(ctx context.Context, chainID uint64) (uint64, error) {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	if n, seeded := c.nonces[chainID]; seeded {
		c.nonces[chainID] = n + 1
		return n, nil
	}

	cl, err := c.chainClient(chainID)
	if err != nil {
		return 0, err
	}
	var n uint64
	if err := c.rpcCall(ctx, chainID, func() error {
		var err error
		n, err = cl.PendingNonceAt(ctx, c.signer.Address())
		return err
	}); err != nil {
		return 0, err
	}
	c.nonces[chainID] = n + 1
	return n, nil
}

// resetNonce forgets the locally held sequence for chainID, forcing the
// next nextNonce call to reseed from the chain. Called after a submission
// fails, since a failed send may or may not have consumed the nonce.
func (c *Client) resetNonce(chainID uint64) {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()
	delete(c.nonces, chainID)
}
