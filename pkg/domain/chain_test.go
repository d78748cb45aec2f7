package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "attestor/pkg/domain-errors"
)

func TestParseChainID(t *testing.T) {
	for input, want := range map[string]ChainID{
		"ethereum": ChainEthereum,
		"base":     ChainBase,
		"8453":     ChainBase,
		"137":      ChainID(137),
	} {
		got, err := ParseChainID(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	for _, input := range []string{"", "0", "-1", "atlantis"} {
		_, err := ParseChainID(input)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), input)
	}
}

func TestChainIDName(t *testing.T) {
	assert.Equal(t, "arbitrum", ChainArbitrum.Name())
	assert.Equal(t, "137", ChainID(137).Name())
	assert.Equal(t, uint64(10), ChainOptimism.Uint64())
}
