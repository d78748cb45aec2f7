// Package signer encodes eligibility attestations in the layout the
// verifying contract expects and signs them with the process key.
//
// Wire contract (changing any step requires a protocol version bump):
//
//	digest  = AuxiliaryDigest(auxiliary)
//	encoded = abi.encode(address subject, bool eligible, bytes32 digest)   // 96 bytes
//	hash    = keccak256("\x19Ethereum Signed Message:\n32" || keccak256(encoded))
//	sig     = r || s', where s' is s with its top bit set when the recovery id is 1
package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"attestor/pkg/domain"
)

const (
	// SignatureLength is the compact wire length: r || s-with-flag.
	SignatureLength = 64
	// EncodedLength is the ABI head size of (address, bool, bytes32).
	EncodedLength = 96

	recoverableLength = 65
	recoveryIDIndex   = 64
	flagBit           = 0x80
)

var (
	// ErrSigningConfiguration means the signing key is missing or malformed.
	// It is only ever returned at construction.
	ErrSigningConfiguration = errors.New("signing key is missing or invalid")

	// ErrNonCanonicalSignature means s had its top bit set before the
	// recovery flag was folded in, which would make the compact form
	// ambiguous.
	ErrNonCanonicalSignature = errors.New("signature s value is not canonical")

	ErrInvalidSignature = errors.New("invalid compact signature")
)

var attestationArgs = mustArguments("address", "bool", "bytes32")

func mustArguments(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(fmt.Sprintf("abi type %s: %v", t, err))
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}

// Attestation is the exact tuple that is encoded and signed.
type Attestation struct {
	Subject         domain.Address
	Eligible        bool
	AuxiliaryDigest [32]byte
}

// NewAttestation builds the signed tuple for subject.
func NewAttestation(subject domain.Address, eligible bool, auxiliary *string) Attestation {
	return Attestation{Subject: subject, Eligible: eligible, AuxiliaryDigest: AuxiliaryDigest(auxiliary)}
}

// AuxiliaryDigest maps the optional auxiliary value to 32 bytes. Absent or
// empty values are zero; a plain decimal numeral that fits in 256 bits is
// encoded big-endian and right-aligned; anything else is keccak256 of its
// UTF-8 bytes.
func AuxiliaryDigest(auxiliary *string) [32]byte {
	if auxiliary == nil || *auxiliary == "" {
		return [32]byte{}
	}
	if n, ok := decimal(*auxiliary); ok {
		return common.BigToHash(n)
	}
	return crypto.Keccak256Hash([]byte(*auxiliary))
}

func decimal(s string) (*big.Int, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, false
		}
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.BitLen() > 256 {
		return nil, false
	}
	return n, true
}

// Encode returns the 96-byte ABI encoding of att.
func Encode(att Attestation) []byte {
	out, err := attestationArgs.Pack(att.Subject.Common(), att.Eligible, att.AuxiliaryDigest)
	if err != nil {
		// Static types with matching Go values; Pack cannot fail here.
		panic(fmt.Sprintf("encode attestation: %v", err))
	}
	return out
}

// Hash returns the personal-message hash the signature covers.
func Hash(att Attestation) [32]byte {
	var h [32]byte
	copy(h[:], accounts.TextHash(crypto.Keccak256(Encode(att))))
	return h
}

// Signature is the 64-byte compact signature.
type Signature [SignatureLength]byte

func (s Signature) Hex() string { return hexutil.Encode(s[:]) }

func (s Signature) String() string { return s.Hex() }

// ParseSignature decodes a 0x-prefixed 64-byte hex signature.
func ParseSignature(h string) (Signature, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(h))
	if err != nil || len(raw) != SignatureLength {
		return Signature{}, fmt.Errorf("%w: expected %d hex bytes", ErrInvalidSignature, SignatureLength)
	}
	var sig Signature
	copy(sig[:], raw)
	return sig, nil
}

// Compact folds a 65-byte r||s||v signature into 64 bytes. v may be raw
// (0/1) or Ethereum-style (27/28).
func Compact(sig []byte) (Signature, error) {
	var out Signature
	if len(sig) != recoverableLength {
		return out, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, recoverableLength, len(sig))
	}
	v := sig[recoveryIDIndex]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return out, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, sig[recoveryIDIndex])
	}
	if sig[32]&flagBit != 0 {
		return out, ErrNonCanonicalSignature
	}
	copy(out[:], sig[:SignatureLength])
	if v == 1 {
		out[32] |= flagBit
	}
	return out, nil
}

// Expand reverses Compact, returning r||s||v with v in raw form.
func Expand(sig Signature) []byte {
	out := make([]byte, recoverableLength)
	copy(out, sig[:])
	if out[32]&flagBit != 0 {
		out[32] &^= flagBit
		out[recoveryIDIndex] = 1
	}
	return out
}

// Recover returns the address that produced sig over att.
func Recover(att Attestation, sig Signature) (domain.Address, error) {
	h := Hash(att)
	pub, err := crypto.SigToPub(h[:], Expand(sig))
	if err != nil {
		return domain.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return domain.Address(crypto.PubkeyToAddress(*pub)), nil
}

// Signer holds the process-wide signing key. It is immutable after
// construction and safe for concurrent use.
type Signer struct {
	key     *ecdsa.PrivateKey
	address domain.Address
}

// New wraps key. A nil or zero key is a configuration error.
func New(key *ecdsa.PrivateKey) (*Signer, error) {
	if key == nil || key.D == nil || key.D.Sign() <= 0 {
		return nil, ErrSigningConfiguration
	}
	return &Signer{key: key, address: domain.Address(crypto.PubkeyToAddress(key.PublicKey))}, nil
}

// FromHex parses a hex private key, with or without 0x prefix.
func FromHex(h string) (*Signer, error) {
	h = strings.TrimPrefix(strings.TrimSpace(h), "0x")
	if h == "" {
		return nil, ErrSigningConfiguration
	}
	key, err := crypto.HexToECDSA(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningConfiguration, err)
	}
	return New(key)
}

// Address is the signer's Ethereum address, the value a verifying contract
// compares the recovered signer against.
func (s *Signer) Address() domain.Address { return s.address }

// Sign encodes and signs (subject, eligible, auxiliary).
func (s *Signer) Sign(subject domain.Address, eligible bool, auxiliary *string) Signature {
	return s.SignAttestation(NewAttestation(subject, eligible, auxiliary))
}

// SignAttestation signs a prepared attestation. It has no error path once
// the signer is constructed; a non-canonical s panics with
// ErrNonCanonicalSignature rather than emitting an unrecoverable signature.
func (s *Signer) SignAttestation(att Attestation) Signature {
	h := Hash(att)
	raw, err := crypto.Sign(h[:], s.key)
	if err != nil {
		panic(fmt.Errorf("sign attestation: %w", err))
	}
	sig, err := Compact(raw)
	if err != nil {
		panic(err)
	}
	return sig
}
