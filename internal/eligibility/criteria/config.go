package criteria

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/params"
	"gopkg.in/yaml.v3"

	"attestor/internal/eligibility/models"
	"attestor/internal/eligibility/ports"
	"attestor/pkg/domain"
)

// fileConfig is the on-disk criteria document:
//
//	criteria:
//	  - id: eth-balance-10
//	    kind: balance
//	    chain: ethereum
//	    min_balance: 10 ether
type fileConfig struct {
	Criteria []entry `yaml:"criteria"`
}

type entry struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description"`
	Kind        Kind     `yaml:"kind"`
	Chain       string   `yaml:"chain"`
	MinCount    uint64   `yaml:"min_count"`
	MinBalance  string   `yaml:"min_balance"`
	Contract    string   `yaml:"contract"`
	MethodIDs   []string `yaml:"method_ids"`
}

// Load reads a criteria YAML file and builds a registry backed by reader.
func Load(path string, reader ports.ChainReader) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read criteria: %w", err)
	}
	return Parse(data, reader)
}

// Parse builds a registry from a criteria YAML document. Unknown keys are
// rejected so a misspelt threshold cannot fall back to its default.
func Parse(data []byte, reader ports.ChainReader) (*Registry, error) {
	var cfg fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse criteria: %w", err)
	}
	if len(cfg.Criteria) == 0 {
		return nil, fmt.Errorf("parse criteria: no criteria defined")
	}

	reg := NewRegistry()
	for i, e := range cfg.Criteria {
		c, err := e.build(reader)
		if err != nil {
			return nil, fmt.Errorf("criteria[%d] %q: %w", i, e.ID, err)
		}
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (e entry) build(reader ports.ChainReader) (Criterion, error) {
	chain, err := domain.ParseChainID(e.Chain)
	if err != nil {
		return Criterion{}, err
	}
	c := Criterion{
		ID:          models.CriterionID(strings.TrimSpace(e.ID)),
		Description: e.Description,
		Chain:       chain,
		Kind:        e.Kind,
	}

	switch e.Kind {
	case KindTransactionCount:
		if e.MinCount == 0 {
			return Criterion{}, fmt.Errorf("min_count must be positive")
		}
		c.Verifier = TransactionCount{Reader: reader, Min: e.MinCount}
	case KindBalance:
		minWei, err := ParseWei(e.MinBalance)
		if err != nil {
			return Criterion{}, err
		}
		c.Verifier = Balance{Reader: reader, MinWei: minWei}
	case KindContractInteraction:
		contract, err := domain.ParseAddress(e.Contract)
		if err != nil {
			return Criterion{}, fmt.Errorf("contract: %w", err)
		}
		for _, m := range e.MethodIDs {
			if !isSelector(m) {
				return Criterion{}, fmt.Errorf("method id %q is not a 4-byte selector", m)
			}
		}
		minCount := int(e.MinCount)
		if minCount == 0 {
			minCount = 1
		}
		c.Verifier = ContractInteraction{Checker: reader, Contract: contract, MethodIDs: e.MethodIDs, MinCount: minCount}
	case KindActiveSender:
		c.Verifier = ActiveSender{Lister: reader}
	default:
		return Criterion{}, fmt.Errorf("unknown kind %q", e.Kind)
	}
	return c, nil
}

var units = map[string]*big.Int{
	"":      big.NewInt(params.Wei),
	"wei":   big.NewInt(params.Wei),
	"gwei":  big.NewInt(params.GWei),
	"ether": big.NewInt(params.Ether),
	"eth":   big.NewInt(params.Ether),
}

// ParseWei parses an amount such as "10 ether", "1.5 gwei" or "42" (wei).
// Fractions must resolve to a whole number of wei.
func ParseWei(s string) (*big.Int, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 || len(fields) > 2 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	unit := ""
	if len(fields) == 2 {
		unit = fields[1]
	}
	scale, ok := units[unit]
	if !ok {
		return nil, fmt.Errorf("unknown unit %q", unit)
	}
	amount, ok := new(big.Rat).SetString(fields[0])
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	wei := amount.Mul(amount, new(big.Rat).SetInt(scale))
	if !wei.IsInt() {
		return nil, fmt.Errorf("amount %q is not a whole number of wei", s)
	}
	return new(big.Int).Set(wei.Num()), nil
}

func isSelector(s string) bool {
	if len(s) != 10 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, r := range strings.ToLower(s[2:]) {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// defaultCriteria is used when no criteria file is configured.
const defaultCriteria = `
criteria:
  - id: eth-tx-count-100
    description: At least 100 transactions sent on Ethereum
    kind: transaction_count
    chain: ethereum
    min_count: 100
  - id: eth-balance-10
    description: Holds at least 10 ETH on Ethereum
    kind: balance
    chain: ethereum
    min_balance: 10 ether
  - id: uniswap-v2-swapper
    description: Swapped through the Uniswap V2 router on Ethereum
    kind: contract_interaction
    chain: ethereum
    contract: "0x7a250d5630b4cf539739df2c5dacb4c659f2488d"
    method_ids: ["0x38ed1739", "0x7ff36ab5", "0x18cbafe5"]
    min_count: 1
  - id: base-active-sender
    description: Sent any transaction on Base
    kind: active_sender
    chain: base
`

// Defaults returns the built-in criteria.
func Defaults(reader ports.ChainReader) (*Registry, error) {
	return Parse([]byte(defaultCriteria), reader)
}
