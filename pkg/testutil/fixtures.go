package testutil

import (
	"attestor/pkg/domain"
)

// Deterministic signing key for tests. Never use outside tests.
const (
	SignerKeyHex  = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	SignerAddress = "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23"
)

// Address returns a fixed, distinct address for n: 0x00..00<n>.
func Address(n byte) domain.Address {
	var a domain.Address
	a[len(a)-1] = n
	return a
}

// Addresses returns Address(1) through Address(count).
func Addresses(count int) []domain.Address {
	out := make([]domain.Address, count)
	for i := range out {
		out[i] = Address(byte(i + 1))
	}
	return out
}
