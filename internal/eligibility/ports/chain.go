// Package ports declares the chain-data collaborators the eligibility core
// reads from. Implementations live in internal/chaindata; the core depends
// only on these interfaces and trusts their boolean and numeric results.
package ports

import (
	"context"
	"errors"
	"math/big"

	"attestor/pkg/domain"
)

// Transaction is the subset of an indexed transaction the criteria need.
type Transaction struct {
	Hash        string
	BlockNumber uint64
	From        domain.Address
	// To is the zero address for contract creations.
	To domain.Address
	// MethodID is the 4-byte selector ("0x" + 8 hex chars), empty for plain transfers.
	MethodID string
	Failed   bool
}

// TransactionLister returns the transaction history of an address on a chain.
// An address that never transacted yields an empty slice and no error.
type TransactionLister interface {
	Transactions(ctx context.Context, addr domain.Address, chain domain.ChainID) ([]Transaction, error)
}

// InteractionChecker reports whether addr successfully called one of methodIDs
// on contract at least minCount times. An empty methodIDs matches any call.
type InteractionChecker interface {
	HasContractInteraction(ctx context.Context, addr, contract domain.Address, methodIDs []string, minCount int, chain domain.ChainID) (bool, error)
}

// BalanceReader returns the native balance in wei at the latest block.
type BalanceReader interface {
	Balance(ctx context.Context, addr domain.Address, chain domain.ChainID) (*big.Int, error)
}

// NonceReader returns the number of transactions sent from addr.
type NonceReader interface {
	TransactionCount(ctx context.Context, addr domain.Address, chain domain.ChainID) (uint64, error)
}

// ChainReader is the full chain-data collaborator.
type ChainReader interface {
	TransactionLister
	InteractionChecker
	BalanceReader
	NonceReader
}

// Sentinel errors chain-data implementations wrap so the core can classify
// failures without inspecting provider-specific messages.
var (
	ErrProviderUnavailable = errors.New("chain provider unavailable")
	ErrMalformedResponse   = errors.New("chain provider returned malformed data")
	ErrUnsupportedChain    = errors.New("no chain provider configured for chain")
	ErrRateLimited         = errors.New("chain provider rate limited")
)
