// Package domain provides type-safe primitives for the values that cross the
// attestation boundary: account addresses and chain identifiers.
package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	dErrors "attestor/pkg/domain-errors"
)

// Address is a 20-byte account identifier. Two addresses are equal when their
// bytes are equal, so comparisons are case-insensitive by construction.
type Address common.Address

// ParseAddress validates a 0x-prefixed hex address at a trust boundary.
// Mixed-case input is accepted without checksum verification.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address cannot be empty")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address must be 0x-prefixed")
	}
	if !common.IsHexAddress(s) {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "invalid address format")
	}
	return Address(common.HexToAddress(s)), nil
}

// ParseAddresses parses every entry, failing on the first malformed one.
func ParseAddresses(values []string) ([]Address, error) {
	out := make([]Address, 0, len(values))
	for _, v := range values {
		addr, err := ParseAddress(v)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid address "+sanitize(v))
		}
		out = append(out, addr)
	}
	return out, nil
}

// MustAddress parses s and panics on failure. Intended for constants and tests.
func MustAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic("domain.MustAddress: " + err.Error())
	}
	return addr
}

// String returns the lowercase 0x-prefixed hex form used for logging and comparison.
func (a Address) String() string {
	return strings.ToLower(common.Address(a).Hex())
}

// Common returns the go-ethereum representation.
func (a Address) Common() common.Address { return common.Address(a) }

// Bytes returns a copy of the 20 raw bytes.
func (a Address) Bytes() []byte { return common.Address(a).Bytes() }

// IsZero reports whether the address is the zero address.
func (a Address) IsZero() bool { return a == Address{} }

// Equal reports whether both addresses identify the same account.
func (a Address) Equal(other Address) bool { return a == other }

// MarshalText encodes the address in lowercase hex.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses a 0x-prefixed hex address.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// sanitize bounds untrusted input before it is echoed in an error message.
func sanitize(s string) string {
	const maxEcho = 48
	s = strings.TrimSpace(s)
	if len(s) > maxEcho {
		s = s[:maxEcho] + "..."
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
