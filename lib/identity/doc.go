// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity provides the signing identities of a mesh node: hex
// addresses, secp256k1 key material, and the account variants that appear
// in envelope addressing.
//
// A node has exactly one local account (its signer). Remote parties are
// external accounts, optionally registered with a display name. Addresses
// derive from public keys the same way Ethereum derives them: the last 20
// bytes of the Keccak-256 hash of the uncompressed public key.
//
// Private key material lives in a sealed buffer — memory allocated outside
// the Go heap, locked against swap, and zeroed on Lock(). See SealedBuffer.
package identity
