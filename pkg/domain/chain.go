package domain

import (
	"strconv"

	dErrors "attestor/pkg/domain-errors"
)

// ChainID identifies the network a criterion reads from. It is fixed by
// configuration per criterion and never taken from a request.
type ChainID uint64

const (
	ChainEthereum ChainID = 1
	ChainOptimism ChainID = 10
	ChainBase     ChainID = 8453
	ChainArbitrum ChainID = 42161
)

var chainNames = map[ChainID]string{
	ChainEthereum: "ethereum",
	ChainOptimism: "optimism",
	ChainBase:     "base",
	ChainArbitrum: "arbitrum",
}

// ParseChainID accepts a positive decimal chain identifier or a known network name.
func ParseChainID(s string) (ChainID, error) {
	for id, name := range chainNames {
		if s == name {
			return id, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "chain id must be a positive integer")
	}
	return ChainID(n), nil
}

// Name returns the well-known network name, or the decimal id for other chains.
func (c ChainID) Name() string {
	if name, ok := chainNames[c]; ok {
		return name
	}
	return c.String()
}

func (c ChainID) String() string { return strconv.FormatUint(uint64(c), 10) }

func (c ChainID) Uint64() uint64 { return uint64(c) }
