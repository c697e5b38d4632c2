// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"fmt"
	"strings"
)

// Address is a 40-hex-digit identity. The zero-value semantics live in
// EmptyAddress, not the empty string: an Address produced by ParseAddress
// is always normalized (lower case, no 0x prefix), so addresses compare
// with ==.
type Address string

// EmptyAddress is the sentinel for "no address" (forty zeros).
const EmptyAddress Address = "0000000000000000000000000000000000000000"

// addressLength is the number of hex digits in an address.
const addressLength = 40

// ParseAddress validates and normalizes an address string. An optional
// "0x" prefix is accepted and stripped; hex digits are lowered.
func ParseAddress(text string) (Address, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	if len(trimmed) != addressLength {
		return "", fmt.Errorf("address %q: want %d hex digits, got %d", text, addressLength, len(trimmed))
	}
	lowered := strings.ToLower(trimmed)
	for _, digit := range lowered {
		if (digit < '0' || digit > '9') && (digit < 'a' || digit > 'f') {
			return "", fmt.Errorf("address %q: invalid hex digit %q", text, digit)
		}
	}
	return Address(lowered), nil
}

// IsEmpty reports whether the address is the empty sentinel (or unset).
func (a Address) IsEmpty() bool {
	return a == "" || a == EmptyAddress
}

// String renders the address with the conventional 0x prefix.
func (a Address) String() string {
	return "0x" + string(a)
}

// Short renders an abbreviated form for logs and tables: 0x plus the
// first and last four digits.
func (a Address) Short() string {
	if len(a) != addressLength {
		return a.String()
	}
	return "0x" + string(a[:4]) + "…" + string(a[addressLength-4:])
}
