// Package chaindata implements the chain-data collaborator behind the
// eligibility ports: per-chain JSON-RPC readers for account state and an
// explorer for transaction history, each guarded by a circuit breaker.
package chaindata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"sort"
	"strings"

	"attestor/internal/eligibility/ports"
	"attestor/pkg/domain"
	"attestor/pkg/platform/circuit"
)

// AccountReader serves latest-block account state for one chain.
type AccountReader interface {
	Balance(ctx context.Context, addr domain.Address) (*big.Int, error)
	TransactionCount(ctx context.Context, addr domain.Address) (uint64, error)
	Health(ctx context.Context) error
}

// HistoryReader serves transaction history for any indexed chain.
type HistoryReader interface {
	Transactions(ctx context.Context, addr domain.Address, chain domain.ChainID) ([]ports.Transaction, error)
}

type backend struct {
	account AccountReader
	history HistoryReader
	breaker *circuit.Breaker
}

// Router dispatches chain queries to the backend configured for each chain.
// Register every chain before serving; the map is read-only afterwards.
type Router struct {
	chains      map[domain.ChainID]*backend
	breakerOpts []circuit.Option
	logger      *slog.Logger
}

// Option configures the Router.
type Option func(*Router)

// WithLogger sets the logger used for breaker transitions.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		r.logger = l
	}
}

// WithBreakerOptions configures the per-chain circuit breakers.
func WithBreakerOptions(opts ...circuit.Option) Option {
	return func(r *Router) {
		r.breakerOpts = append(r.breakerOpts, opts...)
	}
}

// NewRouter creates an empty router.
func NewRouter(opts ...Option) *Router {
	r := &Router{chains: make(map[domain.ChainID]*backend)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register wires the readers for chain. Either reader may be nil when the
// deployment has no such provider; queries needing it then fail as unsupported.
func (r *Router) Register(chain domain.ChainID, account AccountReader, history HistoryReader) error {
	if _, exists := r.chains[chain]; exists {
		return fmt.Errorf("chain %s already registered", chain)
	}
	r.chains[chain] = &backend{
		account: account,
		history: history,
		breaker: circuit.New("chain:"+chain.String(), r.breakerOpts...),
	}
	return nil
}

// Chains returns the registered chain ids in ascending order.
func (r *Router) Chains() []domain.ChainID {
	ids := make([]domain.ChainID, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Supports reports whether chain can serve the given capability set.
func (r *Router) Supports(chain domain.ChainID, needsAccount, needsHistory bool) bool {
	b, ok := r.chains[chain]
	if !ok {
		return false
	}
	return (!needsAccount || b.account != nil) && (!needsHistory || b.history != nil)
}

func (r *Router) Balance(ctx context.Context, addr domain.Address, chain domain.ChainID) (*big.Int, error) {
	b, err := r.accountBackend(chain)
	if err != nil {
		return nil, err
	}
	var bal *big.Int
	err = r.guard(ctx, b, func() error {
		var callErr error
		bal, callErr = b.account.Balance(ctx, addr)
		return callErr
	})
	return bal, err
}

func (r *Router) TransactionCount(ctx context.Context, addr domain.Address, chain domain.ChainID) (uint64, error) {
	b, err := r.accountBackend(chain)
	if err != nil {
		return 0, err
	}
	var n uint64
	err = r.guard(ctx, b, func() error {
		var callErr error
		n, callErr = b.account.TransactionCount(ctx, addr)
		return callErr
	})
	return n, err
}

func (r *Router) Transactions(ctx context.Context, addr domain.Address, chain domain.ChainID) ([]ports.Transaction, error) {
	b, ok := r.chains[chain]
	if !ok || b.history == nil {
		return nil, fmt.Errorf("%w: %s (history)", ports.ErrUnsupportedChain, chain)
	}
	var txs []ports.Transaction
	err := r.guard(ctx, b, func() error {
		var callErr error
		txs, callErr = b.history.Transactions(ctx, addr, chain)
		return callErr
	})
	return txs, err
}

// HasContractInteraction counts successful calls from addr to contract whose
// selector is one of methodIDs. Selectors compare case-insensitively.
func (r *Router) HasContractInteraction(ctx context.Context, addr, contract domain.Address, methodIDs []string, minCount int, chain domain.ChainID) (bool, error) {
	txs, err := r.Transactions(ctx, addr, chain)
	if err != nil {
		return false, err
	}
	return CountInteractions(txs, addr, contract, methodIDs) >= minCount, nil
}

// CountInteractions counts successful transactions sent by from to contract
// whose selector is one of methodIDs (any selector when methodIDs is empty).
func CountInteractions(txs []ports.Transaction, from, contract domain.Address, methodIDs []string) int {
	wanted := make([]string, len(methodIDs))
	for i, m := range methodIDs {
		wanted[i] = strings.ToLower(m)
	}
	count := 0
	for _, tx := range txs {
		if tx.Failed || tx.From != from || tx.To != contract {
			continue
		}
		if len(wanted) > 0 && !slices.Contains(wanted, strings.ToLower(tx.MethodID)) {
			continue
		}
		count++
	}
	return count
}

// CheckChain probes a single chain's account provider. Chains served only by
// an explorer report healthy.
func (r *Router) CheckChain(ctx context.Context, chain domain.ChainID) error {
	b, ok := r.chains[chain]
	if !ok {
		return fmt.Errorf("%w: chain %s", ports.ErrUnsupportedChain, chain)
	}
	if b.account == nil {
		return nil
	}
	return b.account.Health(ctx)
}

func (r *Router) accountBackend(chain domain.ChainID) (*backend, error) {
	b, ok := r.chains[chain]
	if !ok || b.account == nil {
		return nil, fmt.Errorf("%w: %s (rpc)", ports.ErrUnsupportedChain, chain)
	}
	return b, nil
}

// guard runs call behind the chain's breaker. Context errors belong to the
// caller and are not held against the provider.
func (r *Router) guard(ctx context.Context, b *backend, call func() error) error {
	if !b.breaker.Allow() {
		return fmt.Errorf("%w: circuit %s open", ports.ErrProviderUnavailable, b.breaker.Name())
	}

	err := call()
	switch {
	case err == nil:
		if change := b.breaker.RecordSuccess(); change.Closed {
			r.log(ctx, slog.LevelInfo, "chain provider recovered", b.breaker.Name())
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		if change := b.breaker.RecordFailure(); change.Opened {
			r.log(ctx, slog.LevelWarn, "chain provider circuit opened", b.breaker.Name())
		}
	}
	return err
}

func (r *Router) log(ctx context.Context, level slog.Level, msg, circuitName string) {
	if r.logger != nil {
		r.logger.Log(ctx, level, msg, "circuit", circuitName)
	}
}

var _ ports.ChainReader = (*Router)(nil)
