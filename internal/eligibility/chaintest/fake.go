// Package chaintest provides an in-memory chain-data collaborator for tests.
package chaintest

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"

	"attestor/internal/chaindata"
	"attestor/internal/eligibility/ports"
	"attestor/pkg/domain"
)

// Chain is a fake ports.ChainReader keyed by address. Unknown addresses
// behave like never-used accounts. Calls counts every query made.
type Chain struct {
	mu       sync.Mutex
	balances map[domain.Address]*big.Int
	nonces   map[domain.Address]uint64
	txs      map[domain.Address][]ports.Transaction
	failures map[domain.Address]error
	// block, when set, makes every query wait for the context to end.
	block bool

	calls atomic.Int64
}

func New() *Chain {
	return &Chain{
		balances: make(map[domain.Address]*big.Int),
		nonces:   make(map[domain.Address]uint64),
		txs:      make(map[domain.Address][]ports.Transaction),
		failures: make(map[domain.Address]error),
	}
}

func (c *Chain) SetBalance(addr domain.Address, wei *big.Int) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[addr] = wei
	return c
}

func (c *Chain) SetNonce(addr domain.Address, n uint64) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonces[addr] = n
	return c
}

func (c *Chain) AddTransactions(addr domain.Address, txs ...ports.Transaction) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txs[addr] = append(c.txs[addr], txs...)
	return c
}

// Fail makes every query for addr return err.
func (c *Chain) Fail(addr domain.Address, err error) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[addr] = err
	return c
}

// Block makes every query wait until its context is done.
func (c *Chain) Block() *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.block = true
	return c
}

// Calls returns the number of queries served so far.
func (c *Chain) Calls() int64 { return c.calls.Load() }

func (c *Chain) enter(ctx context.Context, addr domain.Address) error {
	c.calls.Add(1)
	c.mu.Lock()
	block, err := c.block, c.failures[addr]
	c.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return err
}

func (c *Chain) Balance(ctx context.Context, addr domain.Address, _ domain.ChainID) (*big.Int, error) {
	if err := c.enter(ctx, addr); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (c *Chain) TransactionCount(ctx context.Context, addr domain.Address, _ domain.ChainID) (uint64, error) {
	if err := c.enter(ctx, addr); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[addr], nil
}

func (c *Chain) Transactions(ctx context.Context, addr domain.Address, _ domain.ChainID) ([]ports.Transaction, error) {
	if err := c.enter(ctx, addr); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ports.Transaction(nil), c.txs[addr]...), nil
}

func (c *Chain) HasContractInteraction(ctx context.Context, addr, contract domain.Address, methodIDs []string, minCount int, chain domain.ChainID) (bool, error) {
	txs, err := c.Transactions(ctx, addr, chain)
	if err != nil {
		return false, err
	}
	return chaindata.CountInteractions(txs, addr, contract, methodIDs) >= minCount, nil
}

var _ ports.ChainReader = (*Chain)(nil)
