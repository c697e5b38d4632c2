// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ErrAccountLocked is returned by Sign after Lock has zeroized the key.
var ErrAccountLocked = errors.New("identity: account is locked")

// Account is the common surface of the account variants. Accounts compare
// by address.
type Account interface {
	Address() Address
}

// LocalAccount is an address this node owns, together with its sealed
// secp256k1 private key. An optional mnemonic-derivation index records
// where in the derivation path the key came from.
type LocalAccount struct {
	address         Address
	derivationIndex int

	mu  sync.Mutex
	key *SealedBuffer // nil once locked
}

// NewLocalAccount builds a local account from hex private key material.
// The address is derived from the corresponding public key; the key bytes
// are sealed and the intermediate copies zeroed.
func NewLocalAccount(privateKeyHex string, derivationIndex int) (*LocalAccount, error) {
	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding private key hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("private key: want 32 bytes, got %d", len(raw))
	}

	private := secp256k1.PrivKeyFromBytes(raw)
	address := AddressFromPublicKey(private.PubKey())
	private.Zero()

	sealed, err := SealBytes(raw)
	if err != nil {
		return nil, err
	}

	return &LocalAccount{
		address:         address,
		derivationIndex: derivationIndex,
		key:             sealed,
	}, nil
}

// Address returns the account's address.
func (a *LocalAccount) Address() Address {
	return a.address
}

// DerivationIndex returns the mnemonic-derivation index, or -1 when the
// key was supplied directly.
func (a *LocalAccount) DerivationIndex() int {
	return a.derivationIndex
}

// Sign hashes the data with Keccak-256 and produces a compact recoverable
// signature. Fails with ErrAccountLocked after Lock.
func (a *LocalAccount) Sign(data []byte) (string, error) {
	return a.SignHash(Keccak256(data))
}

// SignHash signs a precomputed 32-byte hash.
func (a *LocalAccount) SignHash(hash []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.key == nil {
		return "", ErrAccountLocked
	}

	var signature string
	err := a.key.Use(func(raw []byte) error {
		private := secp256k1.PrivKeyFromBytes(raw)
		defer private.Zero()
		signature = SignHash(private, hash)
		return nil
	})
	if err != nil {
		return "", err
	}
	return signature, nil
}

// Lock zeroizes and releases the private key. The account keeps its
// address but can no longer sign. Lock is idempotent.
func (a *LocalAccount) Lock() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.key == nil {
		return nil
	}
	err := a.key.Destroy()
	a.key = nil
	return err
}

// Locked reports whether the signing key has been zeroized.
func (a *LocalAccount) Locked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.key == nil
}

// ExternalAccount is an address the node does not own.
type ExternalAccount struct {
	address Address
}

// NewExternalAccount wraps an address as an external account.
func NewExternalAccount(address Address) *ExternalAccount {
	return &ExternalAccount{address: address}
}

// Address returns the account's address.
func (a *ExternalAccount) Address() Address {
	return a.address
}

// RegisteredAccount is an external address with a display name, as
// recorded on chain.
type RegisteredAccount struct {
	ExternalAccount
	name string
}

// NewRegisteredAccount wraps an address and display name.
func NewRegisteredAccount(address Address, name string) *RegisteredAccount {
	return &RegisteredAccount{
		ExternalAccount: ExternalAccount{address: address},
		name:            name,
	}
}

// Name returns the on-chain display name.
func (a *RegisteredAccount) Name() string {
	return a.name
}
