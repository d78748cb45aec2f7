package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "attestor/pkg/domain-errors"
)

// TestParseAddress_Invariants validates the parsing invariant:
// "addresses are 0x-prefixed, 20 bytes, compared case-insensitively"
//
// Justification: this runs at the trust boundary before any chain query, so a
// malformed value must be rejected here with CodeInvalidInput.
func TestParseAddress_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseAddress("  ")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects missing prefix", func(t *testing.T) {
		_, err := ParseAddress("52908400098527886e0f7030069857d2e4169ee7")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := ParseAddress("0x1234")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects non-hex characters", func(t *testing.T) {
		_, err := ParseAddress("0xZZ908400098527886e0f7030069857d2e4169ee7")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts mixed case without checksum validation", func(t *testing.T) {
		// deliberately wrong checksum casing
		addr, err := ParseAddress("0x52908400098527886E0F7030069857D2E4169Ee7")
		require.NoError(t, err)
		assert.Equal(t, "0x52908400098527886e0f7030069857d2e4169ee7", addr.String())
	})

	t.Run("case variants are equal", func(t *testing.T) {
		lower := MustAddress("0xde709f2102306220921060314715629080e2fb77")
		upper := MustAddress("0xDE709F2102306220921060314715629080E2FB77")
		assert.True(t, lower.Equal(upper))
		assert.Equal(t, lower, upper)
	})
}

func TestParseAddresses(t *testing.T) {
	t.Run("preserves order", func(t *testing.T) {
		addrs, err := ParseAddresses([]string{
			"0x0000000000000000000000000000000000000002",
			"0x0000000000000000000000000000000000000001",
		})
		require.NoError(t, err)
		require.Len(t, addrs, 2)
		assert.Equal(t, "0x0000000000000000000000000000000000000002", addrs[0].String())
	})

	t.Run("fails on first malformed entry with bounded echo", func(t *testing.T) {
		_, err := ParseAddresses([]string{"0x" + strings.Repeat("f", 200)})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		assert.Less(t, len(err.Error()), 100)
	})
}

func TestAddressJSON(t *testing.T) {
	addr := MustAddress("0xDE709F2102306220921060314715629080E2FB77")
	b, err := json.Marshal(struct {
		A Address `json:"a"`
	}{addr})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"0xde709f2102306220921060314715629080e2fb77"}`, string(b))

	var out struct {
		A Address `json:"a"`
	}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, addr, out.A)

	err = json.Unmarshal([]byte(`{"a":"nope"}`), &out)
	require.Error(t, err)
}

func TestParseChainID_Subtests(t *testing.T) {
	t.Run("parses decimal ids", func(t *testing.T) {
		id, err := ParseChainID("8453")
		require.NoError(t, err)
		assert.Equal(t, ChainBase, id)
		assert.Equal(t, "base", id.Name())
	})

	t.Run("parses known names", func(t *testing.T) {
		id, err := ParseChainID("ethereum")
		require.NoError(t, err)
		assert.Equal(t, ChainEthereum, id)
	})

	t.Run("rejects zero and garbage", func(t *testing.T) {
		_, err := ParseChainID("0")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		_, err = ParseChainID("mainnet-ish")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("unknown chains fall back to decimal name", func(t *testing.T) {
		assert.Equal(t, "137", ChainID(137).Name())
	})
}
