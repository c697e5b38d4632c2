// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"github.com/meshnet-foundation/meshnet/lib/identity"
	"github.com/meshnet-foundation/meshnet/signalling"
)

// AccountChannel is a channel to an end-user account. One account may be
// reachable through several devices, each with its own signer, so the
// registry key is the (account, signer) pair.
type AccountChannel struct {
	*Channel
	destinationAccount identity.Address
	destinationSigner  identity.Address
}

// NewAccountChannel builds an account channel. The account parameter is
// the node's own signing identity; destinationAccount and
// destinationSigner identify the remote user and device.
func NewAccountChannel(account *identity.LocalAccount, destinationAccount, destinationSigner identity.Address, sig signalling.Signaller, factory PeerConnectionFactory, options Options) *AccountChannel {
	addressing := &accountAddressing{
		account:            account,
		origin:             account.Address(),
		destinationAccount: destinationAccount,
		destinationSigner:  destinationSigner,
	}
	return &AccountChannel{
		Channel:            newChannel(addressing, sig, factory, options),
		destinationAccount: destinationAccount,
		destinationSigner:  destinationSigner,
	}
}

// DestinationAccount returns the remote account address.
func (c *AccountChannel) DestinationAccount() identity.Address {
	return c.destinationAccount
}

// DestinationSigner returns the remote device's signer address.
func (c *AccountChannel) DestinationSigner() identity.Address {
	return c.destinationSigner
}
