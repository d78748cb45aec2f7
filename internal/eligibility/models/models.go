package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"attestor/pkg/domain"
	dErrors "attestor/pkg/domain-errors"
)

// MaxSecondaryWallets caps the multi-wallet list of a single request.
const MaxSecondaryWallets = 10

// CriterionID names a registered eligibility rule, e.g. "tx-count-100".
type CriterionID string

func (c CriterionID) String() string { return string(c) }

// EligibilityRequest is one inbound check: the primary address, the ordered
// deduplicated secondary wallets, and the criterion to evaluate.
type EligibilityRequest struct {
	Primary   domain.Address
	Secondary []domain.Address
	Criterion CriterionID
}

// NewEligibilityRequest normalizes the wallet list. Secondaries equal to the
// primary or to an earlier secondary are dropped; order is otherwise preserved.
func NewEligibilityRequest(primary domain.Address, secondary []domain.Address, criterion CriterionID) (EligibilityRequest, error) {
	if primary.IsZero() {
		return EligibilityRequest{}, dErrors.New(dErrors.CodeInvalidInput, "primary address is required")
	}
	if criterion == "" {
		return EligibilityRequest{}, dErrors.New(dErrors.CodeInvalidInput, "criterion is required")
	}

	seen := map[domain.Address]struct{}{primary: {}}
	wallets := make([]domain.Address, 0, len(secondary))
	for _, addr := range secondary {
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		wallets = append(wallets, addr)
	}
	if len(wallets) > MaxSecondaryWallets {
		return EligibilityRequest{}, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("at most %d secondary wallets are allowed", MaxSecondaryWallets))
	}

	return EligibilityRequest{Primary: primary, Secondary: wallets, Criterion: criterion}, nil
}

// Addresses returns every address to evaluate, primary first.
func (r EligibilityRequest) Addresses() []domain.Address {
	out := make([]domain.Address, 0, 1+len(r.Secondary))
	out = append(out, r.Primary)
	return append(out, r.Secondary...)
}

// Result is the outcome of a criterion check. Auxiliary carries the
// criterion's evidence (a count, for example) and is nil for pure boolean rules.
type Result struct {
	Eligible  bool
	Auxiliary *string
}

// Ineligible is the zero-activity outcome.
func Ineligible() Result { return Result{} }

// Eligible builds a positive result with optional evidence.
func Eligible(aux *string) Result { return Result{Eligible: true, Auxiliary: aux} }

// Aux returns a pointer to v for use as Result.Auxiliary.
func Aux(v string) *string { return &v }

// AuxiliaryValue returns the auxiliary string or "" when absent.
func (r Result) AuxiliaryValue() string {
	if r.Auxiliary == nil {
		return ""
	}
	return *r.Auxiliary
}

// WalletOutcome records how a single address fared within an aggregation.
type WalletOutcome struct {
	Address domain.Address
	Result  Result
	// Err is set when the chain-data query for this address failed; the
	// address then counts as not eligible.
	Err error
}

func (o WalletOutcome) Failed() bool { return o.Err != nil }

// Aggregation is the folded multi-wallet decision plus per-address detail.
type Aggregation struct {
	Result   Result
	Outcomes []WalletOutcome
}

// Attestation is what the service returns for a request: the decision, the
// compact signature over it, and the context needed to verify it.
type Attestation struct {
	ID        uuid.UUID
	Result    Result
	Subject   domain.Address
	Criterion CriterionID
	Chain     domain.ChainID
	// Signature is the 64-byte compact signature, 0x-prefixed hex.
	Signature string
	Signer    domain.Address
	IssuedAt  time.Time
}
