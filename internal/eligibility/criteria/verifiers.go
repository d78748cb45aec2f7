package criteria

import (
	"context"
	"math/big"
	"strconv"

	"attestor/internal/eligibility/models"
	"attestor/internal/eligibility/ports"
	"attestor/pkg/domain"
)

// Kind identifies a built-in verifier family.
type Kind string

const (
	KindTransactionCount    Kind = "transaction_count"
	KindBalance             Kind = "balance"
	KindContractInteraction Kind = "contract_interaction"
	KindActiveSender        Kind = "active_sender"
)

// Needs reports which chain-data providers the kind queries: account state
// over JSON-RPC, transaction history from an explorer, or both.
func (k Kind) Needs() (account, history bool) {
	switch k {
	case KindTransactionCount, KindBalance:
		return true, false
	case KindContractInteraction, KindActiveSender:
		return false, true
	default:
		return false, false
	}
}

// TransactionCount is eligible when the account nonce reaches Min.
// The auxiliary value is the count in decimal.
type TransactionCount struct {
	Reader ports.NonceReader
	Min    uint64
}

func (v TransactionCount) Verify(ctx context.Context, addr domain.Address, chain domain.ChainID) (models.Result, error) {
	n, err := v.Reader.TransactionCount(ctx, addr, chain)
	if err != nil {
		return models.Result{}, err
	}
	return models.Result{
		Eligible:  n > 0 && n >= v.Min,
		Auxiliary: models.Aux(strconv.FormatUint(n, 10)),
	}, nil
}

// Balance is eligible when the native balance reaches MinWei.
type Balance struct {
	Reader ports.BalanceReader
	MinWei *big.Int
}

func (v Balance) Verify(ctx context.Context, addr domain.Address, chain domain.ChainID) (models.Result, error) {
	bal, err := v.Reader.Balance(ctx, addr, chain)
	if err != nil {
		return models.Result{}, err
	}
	if bal == nil || bal.Sign() <= 0 {
		return models.Ineligible(), nil
	}
	return models.Result{Eligible: bal.Cmp(v.MinWei) >= 0}, nil
}

// ContractInteraction is eligible when addr successfully called one of
// MethodIDs on Contract at least MinCount times.
type ContractInteraction struct {
	Checker   ports.InteractionChecker
	Contract  domain.Address
	MethodIDs []string
	MinCount  int
}

func (v ContractInteraction) Verify(ctx context.Context, addr domain.Address, chain domain.ChainID) (models.Result, error) {
	ok, err := v.Checker.HasContractInteraction(ctx, addr, v.Contract, v.MethodIDs, v.MinCount, chain)
	if err != nil {
		return models.Result{}, err
	}
	return models.Result{Eligible: ok}, nil
}

// ActiveSender is eligible when addr appears as the sender of any
// transaction on the chain. The auxiliary value is the number of such
// transactions in decimal.
type ActiveSender struct {
	Lister ports.TransactionLister
}

func (v ActiveSender) Verify(ctx context.Context, addr domain.Address, chain domain.ChainID) (models.Result, error) {
	txs, err := v.Lister.Transactions(ctx, addr, chain)
	if err != nil {
		return models.Result{}, err
	}
	sent := 0
	for _, tx := range txs {
		if tx.From == addr {
			sent++
		}
	}
	if sent == 0 {
		return models.Ineligible(), nil
	}
	return models.Eligible(models.Aux(strconv.Itoa(sent))), nil
}

var (
	_ Verifier = TransactionCount{}
	_ Verifier = Balance{}
	_ Verifier = ContractInteraction{}
	_ Verifier = ActiveSender{}
)
