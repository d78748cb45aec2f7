// Package rpc reads account state (balance, nonce) over Ethereum JSON-RPC.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"attestor/internal/eligibility/ports"
	"attestor/pkg/domain"
)

// EthReader is the subset of *ethclient.Client used here.
type EthReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Client serves balance and nonce queries for a single chain.
type Client struct {
	chain domain.ChainID
	eth   EthReader
}

// New wraps an existing reader. Used by Dial and by tests.
func New(chain domain.ChainID, eth EthReader) *Client {
	return &Client{chain: chain, eth: eth}
}

// Dial connects to url and checks that the endpoint serves the expected chain,
// so a mis-pointed RPC URL fails at startup rather than attesting against the
// wrong network.
func Dial(ctx context.Context, url string, chain domain.ChainID) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial rpc for chain %s: %w", chain, err)
	}
	c := New(chain, ec)
	if err := c.Health(ctx); err != nil {
		ec.Close()
		return nil, err
	}
	return c, nil
}

// Chain returns the chain this client serves.
func (c *Client) Chain() domain.ChainID { return c.chain }

// Balance returns the latest native balance of addr in wei.
func (c *Client) Balance(ctx context.Context, addr domain.Address) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, addr.Common(), nil)
	if err != nil {
		return nil, classify(ctx, "eth_getBalance", err)
	}
	if bal == nil {
		return nil, fmt.Errorf("%w: eth_getBalance returned no value", ports.ErrMalformedResponse)
	}
	return bal, nil
}

// TransactionCount returns the latest nonce of addr.
func (c *Client) TransactionCount(ctx context.Context, addr domain.Address) (uint64, error) {
	n, err := c.eth.NonceAt(ctx, addr.Common(), nil)
	if err != nil {
		return 0, classify(ctx, "eth_getTransactionCount", err)
	}
	return n, nil
}

// Health verifies the endpoint answers and reports the configured chain id.
func (c *Client) Health(ctx context.Context) error {
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return classify(ctx, "eth_chainId", err)
	}
	if id == nil || id.Uint64() != c.chain.Uint64() {
		return fmt.Errorf("%w: endpoint reports chain %v, expected %s", ports.ErrMalformedResponse, id, c.chain)
	}
	return nil
}

func classify(ctx context.Context, method string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", method, ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", method, err)
	}
	return fmt.Errorf("%w: %s: %v", ports.ErrProviderUnavailable, method, err)
}
