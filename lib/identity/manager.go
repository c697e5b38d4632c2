// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package identity

// AccountManager holds the node's single signing identity. There is
// exactly one per node; it is passed explicitly to the components that
// need it rather than exposed as a package global.
type AccountManager struct {
	signer *LocalAccount
}

// NewAccountManager wraps the node's local account.
func NewAccountManager(signer *LocalAccount) *AccountManager {
	return &AccountManager{signer: signer}
}

// Signer returns the node's local account.
func (m *AccountManager) Signer() *LocalAccount {
	return m.signer
}

// SignerAddress returns the address envelopes must name as their
// receiver signer for this node to accept them.
func (m *AccountManager) SignerAddress() Address {
	return m.signer.Address()
}

// IsSigner reports whether the given address is this node's signing
// identity.
func (m *AccountManager) IsSigner(address Address) bool {
	return address == m.signer.Address()
}
