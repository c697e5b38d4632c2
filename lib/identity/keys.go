// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// Keccak256 hashes the concatenation of the given byte slices with the
// legacy (pre-NIST) Keccak-256 used for address derivation and envelope
// signing hashes.
func Keccak256(chunks ...[]byte) []byte {
	hasher := sha3.NewLegacyKeccak256()
	for _, chunk := range chunks {
		hasher.Write(chunk)
	}
	return hasher.Sum(nil)
}

// AddressFromPublicKey derives the 40-hex-digit address of a secp256k1
// public key: the last 20 bytes of Keccak-256 over the uncompressed key
// without its 0x04 prefix byte.
func AddressFromPublicKey(public *secp256k1.PublicKey) Address {
	uncompressed := public.SerializeUncompressed()
	digest := Keccak256(uncompressed[1:])
	return Address(hex.EncodeToString(digest[12:]))
}

// SignHash produces a compact recoverable signature over a 32-byte hash,
// hex encoded for transport inside envelope signature fields.
func SignHash(key *secp256k1.PrivateKey, hash []byte) string {
	signature := secpecdsa.SignCompact(key, hash, false)
	return hex.EncodeToString(signature)
}

// RecoverSigner recovers the address that produced a compact signature
// over the given hash. The signature must be the hex encoding emitted by
// SignHash.
func RecoverSigner(hash []byte, signature string) (Address, error) {
	raw, err := hex.DecodeString(signature)
	if err != nil {
		return "", fmt.Errorf("decoding signature hex: %w", err)
	}
	public, _, err := secpecdsa.RecoverCompact(raw, hash)
	if err != nil {
		return "", fmt.Errorf("recovering public key: %w", err)
	}
	return AddressFromPublicKey(public), nil
}
