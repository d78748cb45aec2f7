package signer

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"attestor/pkg/domain"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var subject = domain.MustAddress("0x1111111111111111111111111111111111111111")

func aux(s string) *string { return &s }

type SignerSuite struct {
	suite.Suite
	signer *Signer
}

func TestSignerSuite(t *testing.T) {
	suite.Run(t, new(SignerSuite))
}

func (s *SignerSuite) SetupTest() {
	signer, err := FromHex(testKeyHex)
	s.Require().NoError(err)
	s.signer = signer
}

func (s *SignerSuite) TestDeterminism() {
	for _, a := range []*string{nil, aux("42"), aux("hello")} {
		first := s.signer.Sign(subject, true, a)
		second := s.signer.Sign(subject, true, a)
		s.Equal(first, second)
		s.Len(first.Hex(), 2+2*SignatureLength)
	}
}

func (s *SignerSuite) TestRecoverRoundTrip() {
	for i, a := range []*string{nil, aux(""), aux("0"), aux("42"), aux("not a number"), aux(strings.Repeat("9", 100))} {
		for _, eligible := range []bool{true, false} {
			s.Run(fmt.Sprintf("case %d eligible=%v", i, eligible), func() {
				att := NewAttestation(subject, eligible, a)
				sig := s.signer.SignAttestation(att)

				got, err := Recover(att, sig)
				s.Require().NoError(err)
				s.Equal(s.signer.Address(), got)
			})
		}
	}

	s.Run("different tuple recovers a different signer", func() {
		sig := s.signer.Sign(subject, true, aux("42"))
		got, err := Recover(NewAttestation(subject, false, aux("42")), sig)
		s.Require().NoError(err)
		s.NotEqual(s.signer.Address(), got)
	})
}

// The top bit of s carries the recovery id; the remaining 64 bytes are a
// standard low-s signature.
func (s *SignerSuite) TestRecoveryFlagConvention() {
	seen := map[byte]bool{}
	for i := 0; i < 64 && len(seen) < 2; i++ {
		subj := domain.Address(common.BigToAddress(big.NewInt(int64(i + 1))))
		att := NewAttestation(subj, true, nil)
		h := Hash(att)

		raw, err := crypto.Sign(h[:], s.signer.key)
		s.Require().NoError(err)
		v := raw[recoveryIDIndex]
		seen[v] = true

		sig := s.signer.SignAttestation(att)
		s.Equal(raw[:32], sig[:32], "r is unchanged")
		s.Equal(v == 1, sig[32]&flagBit != 0, "flag set exactly when v is 1")

		unflagged := Expand(sig)
		s.Equal(raw, unflagged)
		s.True(crypto.VerifySignature(crypto.FromECDSAPub(&s.signer.key.PublicKey), h[:], unflagged[:64]))
	}
	s.Len(seen, 2, "expected both recovery ids across samples")
}

func (s *SignerSuite) TestAddress() {
	s.Equal("0x2c7536e3605d9c16a7a3d7b1898e529396a65c23", s.signer.Address().String())
}

func TestAuxiliaryDigest(t *testing.T) {
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	overflow := new(big.Int).Lsh(big.NewInt(1), 256).String()

	tests := []struct {
		name string
		aux  *string
		want [32]byte
	}{
		{name: "absent", aux: nil, want: [32]byte{}},
		{name: "empty", aux: aux(""), want: [32]byte{}},
		{name: "zero", aux: aux("0"), want: [32]byte{}},
		{name: "short numeral", aux: aux("42"), want: common.BigToHash(big.NewInt(42))},
		{name: "leading zeros", aux: aux("007"), want: common.BigToHash(big.NewInt(7))},
		{name: "max uint256", aux: aux(maxUint256.String()), want: common.BigToHash(maxUint256)},
		{name: "overflowing numeral is hashed", aux: aux(overflow), want: crypto.Keccak256Hash([]byte(overflow))},
		{name: "text", aux: aux("hello"), want: crypto.Keccak256Hash([]byte("hello"))},
		{name: "negative is not plain decimal", aux: aux("-5"), want: crypto.Keccak256Hash([]byte("-5"))},
		{name: "decimal point is not plain decimal", aux: aux("1.5"), want: crypto.Keccak256Hash([]byte("1.5"))},
		{name: "whitespace is not plain decimal", aux: aux(" 5"), want: crypto.Keccak256Hash([]byte(" 5"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AuxiliaryDigest(tt.aux)
			assert.Len(t, got[:], 32)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeLayout(t *testing.T) {
	for _, a := range []*string{nil, aux("1"), aux(strings.Repeat("long string ", 50))} {
		att := NewAttestation(subject, true, a)
		enc := Encode(att)
		require.Len(t, enc, EncodedLength)

		assert.Equal(t, make([]byte, 12), enc[:12], "address is left-padded")
		assert.Equal(t, subject.Bytes(), enc[12:32])
		assert.Equal(t, append(make([]byte, 31), 1), enc[32:64])
		assert.Equal(t, att.AuxiliaryDigest[:], enc[64:96])
	}

	enc := Encode(NewAttestation(subject, false, nil))
	assert.Equal(t, make([]byte, 32), enc[32:64])
}

func TestHashUsesPersonalMessagePrefix(t *testing.T) {
	att := NewAttestation(subject, true, aux("42"))

	var manual bytes.Buffer
	manual.Write(common.LeftPadBytes(subject.Bytes(), 32))
	manual.Write(common.LeftPadBytes([]byte{1}, 32))
	manual.Write(common.LeftPadBytes(big.NewInt(42).Bytes(), 32))
	inner := crypto.Keccak256(manual.Bytes())
	prefixed := crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n32"), inner)

	h := Hash(att)
	assert.Equal(t, prefixed, h[:])
	assert.Equal(t, accounts.TextHash(inner), h[:])
}

func TestCompact(t *testing.T) {
	raw := make([]byte, recoverableLength)
	raw[0], raw[33] = 0xaa, 0xbb

	t.Run("ethereum-style v is normalized", func(t *testing.T) {
		raw[recoveryIDIndex] = 28
		sig, err := Compact(raw)
		require.NoError(t, err)
		assert.Equal(t, byte(flagBit), sig[32]&flagBit)
		assert.Equal(t, byte(1), Expand(sig)[recoveryIDIndex])
	})

	t.Run("high s is rejected before folding", func(t *testing.T) {
		high := bytes.Clone(raw)
		high[recoveryIDIndex] = 0
		high[32] = 0x80
		_, err := Compact(high)
		assert.ErrorIs(t, err, ErrNonCanonicalSignature)
	})

	t.Run("bad recovery id", func(t *testing.T) {
		bad := bytes.Clone(raw)
		bad[recoveryIDIndex] = 5
		_, err := Compact(bad)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := Compact(raw[:64])
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestParseSignature(t *testing.T) {
	signer, err := FromHex(testKeyHex)
	require.NoError(t, err)
	sig := signer.Sign(subject, true, nil)

	parsed, err := ParseSignature(sig.Hex())
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)

	_, err = ParseSignature("0x1234")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	_, err = ParseSignature("zz")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSigningConfiguration(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrSigningConfiguration)

	_, err = New(&ecdsa.PrivateKey{})
	assert.ErrorIs(t, err, ErrSigningConfiguration)

	for _, in := range []string{"", "   ", "0x", "not-hex", "0x1234"} {
		_, err := FromHex(in)
		assert.ErrorIs(t, err, ErrSigningConfiguration, in)
	}

	withPrefix, err := FromHex("0x" + testKeyHex)
	require.NoError(t, err)
	plain, err := FromHex(testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, plain.Address(), withPrefix.Address())
}
