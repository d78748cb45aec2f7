package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attestor/pkg/domain"
	dErrors "attestor/pkg/domain-errors"
)

func TestFromEnviron(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := fromEnviron([]string{"SIGNER_PRIVATE_KEY=abc"})
		assert.Equal(t, DefaultAddr, cfg.Addr)
		assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
		assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.MaxBodyBytes)
		assert.Empty(t, cfg.Chains)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("chain endpoints by name or id", func(t *testing.T) {
		cfg := fromEnviron([]string{
			"SIGNER_PRIVATE_KEY=abc",
			"RPC_URL_ETHEREUM=https://eth.example",
			"EXPLORER_URL_1=https://api.etherscan.example/v2/api",
			"RPC_URL_8453=https://base.example",
			"EXPLORER_API_KEY=key",
			"REQUEST_TIMEOUT=3s",
			"RECEIPTS_DIR=/var/lib/attestor",
		})
		require.NoError(t, cfg.Validate())
		assert.Equal(t, []domain.ChainID{domain.ChainEthereum, domain.ChainBase}, cfg.ChainIDs())
		assert.Equal(t, ChainEndpoints{RPCURL: "https://eth.example", ExplorerURL: "https://api.etherscan.example/v2/api"}, cfg.Chains[domain.ChainEthereum])
		assert.Equal(t, "https://base.example", cfg.Chains[domain.ChainBase].RPCURL)
		assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
		assert.Equal(t, "/var/lib/attestor", cfg.ReceiptsDir)
	})
}

func TestValidate(t *testing.T) {
	t.Run("missing signing key is fatal", func(t *testing.T) {
		err := fromEnviron(nil).Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMisconfigured))
		assert.Contains(t, err.Error(), "SIGNER_PRIVATE_KEY")
	})

	t.Run("whitespace-only key counts as missing", func(t *testing.T) {
		assert.Error(t, fromEnviron([]string{"SIGNER_PRIVATE_KEY=   "}).Validate())
	})

	t.Run("malformed values are reported together", func(t *testing.T) {
		err := fromEnviron([]string{
			"SIGNER_PRIVATE_KEY=abc",
			"REQUEST_TIMEOUT=soon",
			"RPC_URL_ATLANTIS=https://x",
			"MAX_BODY_BYTES=-1",
		}).Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "REQUEST_TIMEOUT")
		assert.Contains(t, err.Error(), "RPC_URL_ATLANTIS")
		assert.Contains(t, err.Error(), "MAX_BODY_BYTES")
	})
}
